package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orders"

type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	BreakerEvents   *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
	Published       *prometheus.CounterVec
	BrokerRequestMS *prometheus.HistogramVec
}

// New builds the collectors on a private registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		BreakerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "events_total",
			Help:      "Circuit breaker transitions and fallback invocations.",
		}, []string{"dependency", "event"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "open",
			Help:      "1 while the breaker rejects calls, 0.5 while half-open, 0 when closed.",
		}, []string{"dependency"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "published_total",
			Help:      "Messages emitted to the broker by topic and result.",
		}, []string{"topic", "result"}),
		BrokerRequestMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "request_duration_ms",
			Help:      "Request/response round trip over the broker in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 3000},
		}, []string{"topic", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.LatencyMS, m.BreakerEvents, m.BreakerState, m.Published, m.BrokerRequestMS,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(handler string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(handler, http.StatusText(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(elapsed.Milliseconds()))
}

// ObserveBreaker records one breaker event and moves the state gauge on transitions.
func (m *Metrics) ObserveBreaker(dependency, event string) {
	m.BreakerEvents.WithLabelValues(dependency, event).Inc()
	switch event {
	case "opened":
		m.BreakerState.WithLabelValues(dependency).Set(1)
	case "halfOpen":
		m.BreakerState.WithLabelValues(dependency).Set(0.5)
	case "closed":
		m.BreakerState.WithLabelValues(dependency).Set(0)
	}
}

func (m *Metrics) ObservePublish(topic string, err error) {
	m.Published.WithLabelValues(topic, result(err)).Inc()
}

func (m *Metrics) ObserveRequest(topic string, elapsed time.Duration, err error) {
	m.BrokerRequestMS.WithLabelValues(topic, result(err)).Observe(float64(elapsed.Milliseconds()))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
