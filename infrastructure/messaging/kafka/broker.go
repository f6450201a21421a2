// Package kafka implements the messaging broker on Kafka.
//
// Emits are plain keyed records. Requests follow the NestJS microservice
// convention so the user service can answer them unchanged: the request carries
// a correlation id, the reply topic and the reply partition in headers, and the
// reply comes back there with the same correlation id.
//
// Every instance owns its reply topic (<topic>.reply.<instance>) and reads its
// single partition without a consumer group, so a reply always reaches the
// process that sent the request, however many replicas run.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"order-service/infrastructure/messaging"

	"github.com/oklog/ulid/v2"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	HeaderCorrelationID  = "kafka_correlationId"
	HeaderReplyTopic     = "kafka_replyTopic"
	HeaderReplyPartition = "kafka_replyPartition"
	HeaderError          = "kafka_nest-err"
	HeaderDisposed       = "kafka_nest-is-disposed"

	replySuffix = ".reply"
	// replyPartition is the only partition reply readers consume and the one
	// advertised to responders.
	replyPartition = 0
)

type Config struct {
	Brokers  []string
	ClientID string
	// InstanceID names this process's reply topics. Defaults to the host name.
	InstanceID string
}

// ParseBrokers splits a comma separated broker list.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ReplyTopic is the topic replies to topic arrive on for one instance.
func ReplyTopic(topic, instanceID string) string {
	return topic + replySuffix + "." + topicSafe(instanceID)
}

func topicSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

func defaultInstanceID(clientID string) string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return clientID + "-" + strings.ToLower(ulid.Make().String())
}

// replyReaderConfig pins the reader to replyPartition. No GroupID: a group
// would hand the partition to one member and starve the others.
func replyReaderConfig(brokers []string, replyTopic string) kafkago.ReaderConfig {
	return kafkago.ReaderConfig{
		Brokers:   brokers,
		Topic:     replyTopic,
		Partition: replyPartition,
		MinBytes:  1,
		MaxBytes:  10e6,
	}
}

type reply struct {
	value []byte
	err   error
}

type Broker struct {
	cfg Config
	log *zap.Logger

	mu            sync.Mutex
	writer        *kafkago.Writer
	readers       map[string]*kafkago.Reader // by request topic
	subscriptions map[string]struct{}
	connected     bool
	closed        bool
	readCtx       context.Context
	stopReaders   context.CancelFunc
	wg            sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string]chan reply
}

func NewBroker(cfg Config, log *zap.Logger) *Broker {
	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID(cfg.ClientID)
	}
	if log == nil {
		log = zap.NewNop()
	}
	readCtx, cancel := context.WithCancel(context.Background())
	return &Broker{
		cfg:           cfg,
		log:           log.With(zap.String("component", "kafka")),
		readers:       make(map[string]*kafkago.Reader),
		subscriptions: make(map[string]struct{}),
		readCtx:       readCtx,
		stopReaders:   cancel,
		pending:       make(map[string]chan reply),
	}
}

func (b *Broker) SubscribeToResponseOf(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[topic] = struct{}{}
}

// Connect checks that a broker is reachable, then starts a reply reader for
// every subscription that has none yet.
func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return messaging.ErrClosed
	}
	if len(b.cfg.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	if !b.connected {
		if err := b.ping(ctx); err != nil {
			return err
		}
		b.writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(b.cfg.Brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		}
		b.connected = true
	}

	for topic := range b.subscriptions {
		if _, ok := b.readers[topic]; ok {
			continue
		}
		replyTopic := ReplyTopic(topic, b.cfg.InstanceID)
		r := kafkago.NewReader(replyReaderConfig(b.cfg.Brokers, replyTopic))
		b.readers[topic] = r
		b.wg.Add(1)
		go b.consumeReplies(r, topic)
		b.log.Info("reply reader started",
			zap.String("topic", replyTopic),
			zap.Int("partition", replyPartition))
	}
	return nil
}

func (b *Broker) ping(ctx context.Context) error {
	var lastErr error
	for _, addr := range b.cfg.Brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("kafka: no reachable broker: %w", lastErr)
}

func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.connected = false
	b.stopReaders()
	readers := b.readers
	writer := b.writer
	b.readers = map[string]*kafkago.Reader{}
	b.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.failPending(messaging.ErrClosed)
	return errors.Join(errs...)
}

func (b *Broker) currentWriter() (*kafkago.Writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected || b.writer == nil {
		return nil, messaging.ErrNotConnected
	}
	return b.writer, nil
}

func (b *Broker) Emit(ctx context.Context, topic string, msg messaging.Message) error {
	w, err := b.currentWriter()
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafkago.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: toHeaders(msg.Headers),
		Time:    time.Now().UTC(),
	})
}

func (b *Broker) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	w, err := b.currentWriter()
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	_, live := b.readers[topic]
	b.mu.Unlock()
	if !live {
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

	err = w.WriteMessages(ctx, kafkago.Message{
		Topic:   topic,
		Key:     []byte(correlationID),
		Value:   payload,
		Headers: RequestHeaders(correlationID, ReplyTopic(topic, b.cfg.InstanceID)),
		Time:    time.Now().UTC(),
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

func (b *Broker) consumeReplies(r *kafkago.Reader, requestTopic string) {
	defer b.wg.Done()
	topic := r.Config().Topic
	for {
		m, err := r.ReadMessage(b.readCtx)
		if err != nil {
			if b.readCtx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			b.log.Warn("reply read failed", zap.String("topic", topic), zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-b.readCtx.Done():
				return
			}
			continue
		}

		correlationID, rep, ok := parseReply(m, requestTopic)
		if !ok {
			continue
		}
		b.pendingMu.Lock()
		ch, found := b.pending[correlationID]
		b.pendingMu.Unlock()
		if !found {
			b.log.Debug("late or foreign reply dropped", zap.String("topic", topic), zap.String("correlation_id", correlationID))
			continue
		}
		select {
		case ch <- rep:
		default:
		}
	}
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

// RequestHeaders are the headers a NestJS responder needs to route its reply.
// The partition is the one the reply reader is pinned to.
func RequestHeaders(correlationID, replyTopic string) []kafkago.Header {
	return []kafkago.Header{
		{Key: HeaderCorrelationID, Value: []byte(correlationID)},
		{Key: HeaderReplyTopic, Value: []byte(replyTopic)},
		{Key: HeaderReplyPartition, Value: []byte(strconv.Itoa(replyPartition))},
	}
}

// parseReply extracts the correlation id and outcome of a reply record.
// ok is false for records without a correlation id.
func parseReply(m kafkago.Message, requestTopic string) (correlationID string, r reply, ok bool) {
	var remoteErr, disposed string
	for _, h := range m.Headers {
		switch h.Key {
		case HeaderCorrelationID:
			correlationID = string(h.Value)
		case HeaderError:
			remoteErr = string(h.Value)
		case HeaderDisposed:
			disposed = string(h.Value)
		}
	}
	if correlationID == "" {
		return "", reply{}, false
	}

	switch {
	case remoteErr != "":
		r.err = &messaging.RemoteError{Topic: requestTopic, Message: remoteErr}
	case len(m.Value) == 0 && disposed != "":
		r.err = messaging.ErrNoResponse
	default:
		r.value = m.Value
	}
	return correlationID, r, true
}

func toHeaders(h map[string]string) []kafkago.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafkago.Header, 0, len(h))
	for k, v := range h {
		out = append(out, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return out
}

var _ messaging.Broker = (*Broker)(nil)
