package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"order-service/config"
	"order-service/infrastructure/resilience/circuitbreaker"

	"github.com/gin-gonic/gin"
)

// BrokerStatus is the part of the messaging gateway health checks need.
type BrokerStatus interface {
	Connected() bool
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Controller Health check controller
type Controller struct {
	config    *config.Config
	broker    BrokerStatus
	breakers  *circuitbreaker.Registry
	db        Pinger
	startTime time.Time
}

// NewController Create health check controller. db may be nil when orders are kept in memory.
func NewController(cfg *config.Config, broker BrokerStatus, breakers *circuitbreaker.Registry, db Pinger) *Controller {
	return &Controller{
		config:    cfg,
		broker:    broker,
		breakers:  breakers,
		db:        db,
		startTime: time.Now(),
	}
}

// RegisterRoutes Register health check routes
func (c *Controller) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", c.Health)
	router.GET("/health/live", c.Liveness)
	router.GET("/health/ready", c.Readiness)
}

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse Health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]Check  `json:"checks,omitempty"`
	Breakers  map[string]string `json:"circuit_breakers,omitempty"`
	System    *SystemInfo       `json:"system,omitempty"`
}

// Check Check item
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo System information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
}

// Health reports broker and database checks plus breaker states. An open
// breaker degrades the service without making it unhealthy.
func (c *Controller) Health(ctx *gin.Context) {
	checks := map[string]Check{"broker": c.checkBroker()}
	if c.db != nil {
		checks["database"] = c.checkDatabase(ctx.Request.Context())
	}

	overall := statusHealthy
	for _, check := range checks {
		if check.Status != statusHealthy {
			overall = statusUnhealthy
		}
	}

	breakers := make(map[string]string)
	if c.breakers != nil {
		for dep, state := range c.breakers.States() {
			breakers[string(dep)] = state.String()
			if state != circuitbreaker.StateClosed && overall == statusHealthy {
				overall = statusDegraded
			}
		}
	}

	resp := HealthResponse{
		Status:    overall,
		Version:   c.config.App.Version,
		Uptime:    time.Since(c.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Breakers:  breakers,
	}

	// Only expose system info in development mode
	if c.config.IsDevelopment() {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		resp.System = &SystemInfo{
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     memStats.Alloc,
		}
	}

	statusCode := http.StatusOK
	if overall == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	ctx.JSON(statusCode, resp)
}

// Liveness Liveness check (Kubernetes liveness probe)
func (c *Controller) Liveness(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Readiness Readiness check (Kubernetes readiness probe)
func (c *Controller) Readiness(ctx *gin.Context) {
	if check := c.checkBroker(); check.Status != statusHealthy {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "message": check.Message})
		return
	}
	if c.db != nil {
		if check := c.checkDatabase(ctx.Request.Context()); check.Status != statusHealthy {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "message": "database not available"})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (c *Controller) checkBroker() Check {
	if c.broker == nil || !c.broker.Connected() {
		return Check{Status: statusUnhealthy, Message: "broker not connected"}
	}
	return Check{Status: statusHealthy}
}

func (c *Controller) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: statusHealthy, Latency: latency.String()}
}
