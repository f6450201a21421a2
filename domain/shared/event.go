package shared

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DomainEvent is a fact recorded by an aggregate.
type DomainEvent interface {
	EventName() string
	OccurredOn() time.Time
	GetAggregateID() string
}

// EventHandler reacts to domain events dispatched on the local bus.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	Name() string
}

func ValidateEvent(event DomainEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	if event.EventName() == "" {
		return errors.New("event name cannot be empty")
	}
	if event.GetAggregateID() == "" {
		return errors.New("aggregate ID cannot be empty")
	}
	if event.OccurredOn().IsZero() {
		return errors.New("occurred on time cannot be zero")
	}
	return nil
}

// EventBus dispatches events to in-process handlers synchronously.
// Handlers run in subscription order; every handler runs even if an earlier one fails.
type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[string][]EventHandler),
	}
}

func (bus *EventBus) Publish(ctx context.Context, event DomainEvent) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}

	bus.mu.RLock()
	handlers := append([]EventHandler(nil), bus.handlers[event.EventName()]...)
	bus.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handler %s: %w", handler.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("event %s: %w", event.EventName(), errors.Join(errs...))
	}
	return nil
}

func (bus *EventBus) Subscribe(eventName string, handler EventHandler) error {
	if eventName == "" {
		return errors.New("event name cannot be empty")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	for _, h := range bus.handlers[eventName] {
		if h.Name() == handler.Name() {
			return fmt.Errorf("handler %s already subscribed to %s", handler.Name(), eventName)
		}
	}

	bus.handlers[eventName] = append(bus.handlers[eventName], handler)
	return nil
}

// FuncHandler adapts a function to EventHandler.
type FuncHandler struct {
	name string
	fn   func(context.Context, DomainEvent) error
}

func NewFuncHandler(name string, fn func(context.Context, DomainEvent) error) *FuncHandler {
	if name == "" {
		name = fmt.Sprintf("func-handler-%d", time.Now().UnixNano())
	}
	return &FuncHandler{name: name, fn: fn}
}

func (h *FuncHandler) Handle(ctx context.Context, event DomainEvent) error {
	return h.fn(ctx, event)
}

func (h *FuncHandler) Name() string {
	return h.name
}
