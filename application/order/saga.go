package order

import (
	"context"
	"fmt"

	"order-service/domain/order"
	"order-service/domain/shared"
	"order-service/pkg/logger"

	"go.uber.org/zap"
)

// OrderSaga reacts to order events in process. It only logs today; follow-up
// commands such as inventory reservation would be issued from these handlers.
type OrderSaga struct {
	log *zap.Logger
}

func NewOrderSaga(log *zap.Logger) *OrderSaga {
	if log == nil {
		log = logger.Get()
	}
	return &OrderSaga{log: log.Named("saga")}
}

// Register subscribes the saga handlers to bus.
func (s *OrderSaga) Register(bus *shared.EventBus) error {
	if err := bus.Subscribe(order.EventNameOrderCreated, shared.NewFuncHandler("saga.order_created", s.onCreated)); err != nil {
		return err
	}
	return bus.Subscribe(order.EventNameOrderStatusChanged, shared.NewFuncHandler("saga.order_status_changed", s.onStatusChanged))
}

func (s *OrderSaga) onCreated(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*order.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("saga: unexpected event %T", event)
	}
	logger.FromContext(ctx, s.log).Info("saga: order created",
		zap.String("order_id", e.OrderID().String()),
		zap.String("user_id", e.UserID().String()))
	return nil
}

func (s *OrderSaga) onStatusChanged(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*order.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("saga: unexpected event %T", event)
	}
	logger.FromContext(ctx, s.log).Info("saga: order status changed",
		zap.String("order_id", e.OrderID().String()),
		zap.String("from", e.OldStatus().String()),
		zap.String("to", e.NewStatus().String()))
	return nil
}
