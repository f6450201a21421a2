// Package rabbitmq implements the messaging broker on RabbitMQ.
//
// Topics map to routing keys on one topic exchange. Requests use direct
// reply-to: replies arrive on the amq.rabbitmq.reply-to pseudo queue of the
// publishing channel and are matched by correlation id.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"order-service/infrastructure/messaging"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	directReplyQueue = "amq.rabbitmq.reply-to"
	// HeaderMessageKey carries the partition key, which AMQP has no slot for.
	HeaderMessageKey = "x-message-key"
	// HeaderError is set by responders that failed.
	HeaderError = "x-error"
)

type Config struct {
	URL            string
	Exchange       string
	ConnectionName string
}

type reply struct {
	value []byte
	err   error
}

type Broker struct {
	cfg Config
	log *zap.Logger

	mu            sync.Mutex
	conn          *amqp.Connection
	channel       *amqp.Channel
	subscriptions map[string]struct{}
	consuming     bool
	closed        bool

	pendingMu sync.Mutex
	pending   map[string]chan reply
}

func NewBroker(cfg Config, log *zap.Logger) *Broker {
	if cfg.Exchange == "" {
		cfg.Exchange = "orders"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		cfg:           cfg,
		log:           log.With(zap.String("component", "rabbitmq")),
		subscriptions: make(map[string]struct{}),
		pending:       make(map[string]chan reply),
	}
}

func (b *Broker) SubscribeToResponseOf(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[topic] = struct{}{}
}

// Connect dials (or redials a dropped connection), declares the exchange and,
// once any response subscription exists, starts the direct reply-to consumer.
func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return messaging.ErrClosed
	}

	if b.conn == nil || b.conn.IsClosed() {
		props := amqp.NewConnectionProperties()
		if b.cfg.ConnectionName != "" {
			props.SetClientConnectionName(b.cfg.ConnectionName)
		}
		conn, err := amqp.DialConfig(b.cfg.URL, amqp.Config{Properties: props, Heartbeat: 10 * time.Second})
		if err != nil {
			return fmt.Errorf("rabbitmq: dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("rabbitmq: open channel: %w", err)
		}
		if err := ch.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("rabbitmq: declare exchange %s: %w", b.cfg.Exchange, err)
		}
		b.conn, b.channel, b.consuming = conn, ch, false
	}

	if len(b.subscriptions) > 0 && !b.consuming {
		deliveries, err := b.channel.Consume(directReplyQueue, "", true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("rabbitmq: consume replies: %w", err)
		}
		b.consuming = true
		go b.dispatch(deliveries)
		b.log.Info("reply consumer started", zap.Int("topics", len(b.subscriptions)))
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conn := b.conn
	b.conn, b.channel, b.consuming = nil, nil, false
	b.mu.Unlock()

	b.failPending(messaging.ErrClosed)
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

func (b *Broker) Emit(ctx context.Context, topic string, msg messaging.Message) error {
	headers := amqp.Table{HeaderMessageKey: msg.Key}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return b.publish(ctx, topic, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ulid.Make().String(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         msg.Value,
	})
}

func (b *Broker) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	b.mu.Lock()
	_, subscribed := b.subscriptions[topic]
	ready := b.consuming
	b.mu.Unlock()
	if !subscribed || !ready {
		return nil, messaging.ErrNotSubscribed
	}

	correlationID := ulid.Make().String()
	ch := make(chan reply, 1)
	b.pendingMu.Lock()
	b.pending[correlationID] = ch
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, correlationID)
		b.pendingMu.Unlock()
	}()

	err := b.publish(ctx, topic, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       directReplyQueue,
		Timestamp:     time.Now().UTC(),
		Body:          payload,
	})
	if err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// publish holds the lock so requests and emits share the one channel the
// reply consumer lives on.
func (b *Broker) publish(ctx context.Context, routingKey string, p amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel == nil || b.channel.IsClosed() {
		return messaging.ErrNotConnected
	}
	if err := b.channel.PublishWithContext(ctx, b.cfg.Exchange, routingKey, false, false, p); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", routingKey, err)
	}
	return nil
}

func (b *Broker) dispatch(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		b.pendingMu.Lock()
		ch, ok := b.pending[d.CorrelationId]
		b.pendingMu.Unlock()
		if !ok {
			b.log.Debug("late or foreign reply dropped", zap.String("correlation_id", d.CorrelationId))
			continue
		}
		select {
		case ch <- toReply(d):
		default:
		}
	}

	b.mu.Lock()
	b.consuming = false
	b.mu.Unlock()
	b.failPending(messaging.ErrNotConnected)
}

func toReply(d amqp.Delivery) reply {
	if msg, ok := d.Headers[HeaderError].(string); ok && msg != "" {
		return reply{err: &messaging.RemoteError{Topic: d.RoutingKey, Message: msg}}
	}
	if len(d.Body) == 0 {
		return reply{err: messaging.ErrNoResponse}
	}
	return reply{value: d.Body}
}

func (b *Broker) failPending(err error) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, ch := range b.pending {
		select {
		case ch <- reply{err: err}:
		default:
		}
		delete(b.pending, id)
	}
}

var _ messaging.Broker = (*Broker)(nil)
