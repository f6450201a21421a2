// Package messaging is the gateway between the order service and the message broker.
//
// Two interaction styles go through it: fire-and-forget emits of domain events and
// request/response calls whose replies arrive on a per-topic response subscription.
// The transport itself sits behind Broker; kafka, rabbitmq and memory provide one each.
package messaging

import (
	"context"
	"errors"
)

var (
	ErrNotConnected  = errors.New("messaging: broker not connected")
	ErrNotSubscribed = errors.New("messaging: no response subscription for topic")
	ErrNoResponse    = errors.New("messaging: request completed without a response")
	ErrClosed        = errors.New("messaging: broker closed")
)

// Message is a single broker record. Value is already encoded.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Broker is the transport port.
//
// SubscribeToResponseOf only records the wish to receive replies for a topic;
// the subscription becomes live on the next Connect. Connect is idempotent and
// picks up subscriptions added since the previous call.
type Broker interface {
	Connect(ctx context.Context) error
	Close() error
	Emit(ctx context.Context, topic string, msg Message) error
	SubscribeToResponseOf(topic string)
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)
}

// RemoteError is an error reported by the responding service.
type RemoteError struct {
	Topic   string
	Message string
}

func (e *RemoteError) Error() string {
	return "messaging: " + e.Topic + " responder failed: " + e.Message
}
