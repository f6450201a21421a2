// Package memory is an in-process broker. Replies come from registered
// responders instead of remote services.
package memory

import (
	"context"
	"sync"

	"order-service/infrastructure/messaging"
)

// Responder answers a request payload.
type Responder func(ctx context.Context, payload []byte) ([]byte, error)

// Emitted is one recorded emit.
type Emitted struct {
	Topic   string
	Message messaging.Message
}

type Broker struct {
	mu            sync.Mutex
	connected     bool
	connects      int
	subscriptions map[string]int
	live          map[string]bool
	responders    map[string]Responder
	emitted       []Emitted
	emitErr       error
	connectErr    error
	connectFails  int
	attempts      int
}

func New() *Broker {
	return &Broker{
		subscriptions: make(map[string]int),
		live:          make(map[string]bool),
		responders:    make(map[string]Responder),
	}
}

// Handle registers the responder for topic, replacing any previous one.
func (b *Broker) Handle(topic string, r Responder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responders[topic] = r
}

// FailEmits makes every following Emit return err. nil restores normal behaviour.
func (b *Broker) FailEmits(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitErr = err
}

// FailConnects makes every following Connect return err.
func (b *Broker) FailConnects(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectErr = err
	b.connectFails = 0
}

// FailNextConnects makes the next n Connect calls return err.
func (b *Broker) FailNextConnects(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectFails = n
	b.connectErr = err
}

func (b *Broker) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if b.connectErr != nil {
		if b.connectFails > 0 {
			b.connectFails--
			err := b.connectErr
			if b.connectFails == 0 {
				b.connectErr = nil
			}
			return err
		}
		return b.connectErr
	}
	b.connected = true
	b.connects++
	for topic := range b.subscriptions {
		b.live[topic] = true
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *Broker) SubscribeToResponseOf(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[topic]++
}

func (b *Broker) Emit(_ context.Context, topic string, msg messaging.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return messaging.ErrNotConnected
	}
	if b.emitErr != nil {
		return b.emitErr
	}
	b.emitted = append(b.emitted, Emitted{Topic: topic, Message: msg})
	return nil
}

func (b *Broker) Request(ctx context.Context, topic string, payload []byte) ([]byte, error) {
	b.mu.Lock()
	connected, live, responder := b.connected, b.live[topic], b.responders[topic]
	b.mu.Unlock()

	if !connected {
		return nil, messaging.ErrNotConnected
	}
	if !live {
		return nil, messaging.ErrNotSubscribed
	}
	if responder == nil {
		return nil, messaging.ErrNoResponse
	}
	return responder(ctx, payload)
}

func (b *Broker) Emitted() []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Emitted(nil), b.emitted...)
}

// ResetEmitted forgets everything emitted so far.
func (b *Broker) ResetEmitted() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = nil
}

func (b *Broker) EmittedTo(topic string) []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Emitted
	for _, e := range b.emitted {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// ConnectAttempts counts every Connect call, failed ones included.
func (b *Broker) ConnectAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func (b *Broker) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// SubscriptionCount is how many times topic was subscribed.
func (b *Broker) SubscriptionCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscriptions[topic]
}

var _ messaging.Broker = (*Broker)(nil)
