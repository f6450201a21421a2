package messaging

import (
	"context"
	"errors"
	"fmt"

	"order-service/domain/order"
	"order-service/domain/shared"
	"order-service/pkg/contracts"
)

var ErrUnsupportedEvent = errors.New("messaging: unsupported domain event")

// Publisher is the part of Gateway the event pipeline needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}

// OrderEventPublisher maps order domain events onto broker topics.
// Messages are keyed by order id so one order's events stay in sequence on a partition.
type OrderEventPublisher struct {
	publisher Publisher
}

func NewOrderEventPublisher(publisher Publisher) *OrderEventPublisher {
	return &OrderEventPublisher{publisher: publisher}
}

func (p *OrderEventPublisher) Publish(ctx context.Context, event shared.DomainEvent) error {
	topic, env, err := ToEnvelope(event)
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, topic, env)
}

// ToEnvelope returns the topic and message for a domain event.
func ToEnvelope(event shared.DomainEvent) (string, Envelope, error) {
	switch e := event.(type) {
	case *order.OrderCreatedEvent:
		items := make([]contracts.OrderCreatedItem, 0, len(e.Items()))
		for _, it := range e.Items() {
			items = append(items, contracts.OrderCreatedItem{
				ProductID: it.ProductID.String(),
				Quantity:  it.Quantity,
				Price:     it.Price.Float64(),
			})
		}
		return contracts.TopicOrderCreated, Envelope{
			Key: e.OrderID().String(),
			Value: contracts.OrderCreated{
				OrderID:     e.OrderID().String(),
				UserID:      e.UserID().String(),
				TotalAmount: e.TotalAmount().Float64(),
				Items:       items,
				CreatedAt:   e.CreatedAt(),
			},
		}, nil

	case *order.OrderStatusChangedEvent:
		return contracts.TopicOrderStatusChanged, Envelope{
			Key: e.OrderID().String(),
			Value: contracts.OrderStatusChanged{
				OrderID:   e.OrderID().String(),
				UserID:    e.UserID().String(),
				OldStatus: e.OldStatus().String(),
				NewStatus: e.NewStatus().String(),
				UpdatedAt: e.UpdatedAt(),
			},
		}, nil

	default:
		name := "<nil>"
		if event != nil {
			name = event.EventName()
		}
		return "", Envelope{}, fmt.Errorf("%w: %s", ErrUnsupportedEvent, name)
	}
}

var _ order.EventPublisher = (*OrderEventPublisher)(nil)
