package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Envelope is what callers publish: a partition key and a JSON-encodable value.
type Envelope struct {
	Key   string
	Value any
}

// Observer is notified about every publish and request, for metrics.
type Observer interface {
	ObservePublish(topic string, err error)
	ObserveRequest(topic string, elapsed time.Duration, err error)
}

type GatewayOption func(*Gateway)

func WithObserver(o Observer) GatewayOption {
	return func(g *Gateway) { g.observer = o }
}

// Gateway wraps a Broker with JSON encoding and response-subscription bookkeeping.
type Gateway struct {
	broker   Broker
	log      *zap.Logger
	observer Observer

	mu         sync.Mutex
	subscribed map[string]struct{}
	connected  bool
	closed     bool
}

func NewGateway(broker Broker, log *zap.Logger, opts ...GatewayOption) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		broker:     broker,
		log:        log,
		subscribed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SubscribeToResponseOf declares response subscriptions ahead of Connect.
func (g *Gateway) SubscribeToResponseOf(topics ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, topic := range topics {
		if _, ok := g.subscribed[topic]; ok {
			continue
		}
		g.broker.SubscribeToResponseOf(topic)
		g.subscribed[topic] = struct{}{}
	}
}

// Connect connects the broker once. Later calls are no-ops.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	if g.connected {
		return nil
	}
	if err := g.broker.Connect(ctx); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	g.connected = true
	g.log.Info("message broker connected", zap.Strings("response_topics", g.subscribedTopicsLocked()))
	return nil
}

// Close closes the broker once.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	g.connected = false
	if err := g.broker.Close(); err != nil {
		return fmt.Errorf("close broker: %w", err)
	}
	g.log.Info("message broker closed")
	return nil
}

func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// SubscribedTopics returns the response topics in sorted order.
func (g *Gateway) SubscribedTopics() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscribedTopicsLocked()
}

func (g *Gateway) subscribedTopicsLocked() []string {
	topics := make([]string, 0, len(g.subscribed))
	for t := range g.subscribed {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Publish emits an event without waiting for consumers.
func (g *Gateway) Publish(ctx context.Context, topic string, env Envelope) error {
	value, err := json.Marshal(env.Value)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}

	err = g.broker.Emit(ctx, topic, Message{Key: env.Key, Value: value})
	if g.observer != nil {
		g.observer.ObservePublish(topic, err)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	g.log.Debug("message published", zap.String("topic", topic), zap.String("key", env.Key))
	return nil
}

// SendAndReceive sends request on topic and decodes the first reply into response.
func (g *Gateway) SendAndReceive(ctx context.Context, topic string, request, response any) error {
	if err := g.ensureSubscribed(ctx, topic); err != nil {
		return err
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", topic, err)
	}

	start := time.Now()
	reply, err := g.broker.Request(ctx, topic, payload)
	if g.observer != nil {
		g.observer.ObserveRequest(topic, time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("request %s: %w", topic, err)
	}
	if len(reply) == 0 {
		return fmt.Errorf("request %s: %w", topic, ErrNoResponse)
	}

	if err := json.Unmarshal(reply, response); err != nil {
		return fmt.Errorf("decode %s response: %w", topic, err)
	}
	return nil
}

// ensureSubscribed covers a topic nobody declared at startup: subscribe and
// reconnect so the reply consumer exists. The gateway lock serializes this so
// concurrent first calls subscribe once.
func (g *Gateway) ensureSubscribed(ctx context.Context, topic string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.subscribed[topic]; ok {
		return nil
	}
	if g.closed {
		return ErrClosed
	}

	g.log.Warn("subscribing to response topic lazily", zap.String("topic", topic))
	g.broker.SubscribeToResponseOf(topic)
	g.subscribed[topic] = struct{}{}

	if !g.connected {
		return nil
	}
	if err := g.broker.Connect(ctx); err != nil {
		delete(g.subscribed, topic)
		return fmt.Errorf("reconnect broker for %s: %w", topic, err)
	}
	return nil
}

// Request is SendAndReceive with a typed response.
func Request[Resp any](ctx context.Context, g *Gateway, topic string, request any) (Resp, error) {
	var resp Resp
	err := g.SendAndReceive(ctx, topic, request, &resp)
	return resp, err
}

