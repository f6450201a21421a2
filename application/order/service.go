/*
Package order Application Layer - Order Business Process Orchestration

Responsibilities of Application Layer:
1. Receive external requests (usually from Controller)
2. Verify the ordering user through the remote user service (behind a circuit breaker)
3. Call aggregate root methods to execute business operations
4. Persist the aggregate, then drain its events and hand them to the publisher
5. Return results to caller

Events are published after the save succeeds. A failed publication is logged
and does not fail the command: the order is already stored.
*/
package order

import (
	"context"
	"errors"

	"order-service/domain/order"
	"order-service/domain/shared"
	apperrors "order-service/pkg/errors"
	"order-service/pkg/logger"

	"go.uber.org/zap"
)

// ApplicationService Order application service - coordinates order-related business processes
type ApplicationService struct {
	orderRepo order.Repository
	verifier  order.UserVerifier
	publisher order.EventPublisher
	localBus  *shared.EventBus
	tx        Transactor
	log       *zap.Logger
}

// Transactor runs fn so that repository calls made with the context it is
// given share one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Option func(*ApplicationService)

func WithLogger(log *zap.Logger) Option {
	return func(s *ApplicationService) { s.log = log }
}

// WithLocalBus also dispatches drained events to in-process handlers such as the saga.
func WithLocalBus(bus *shared.EventBus) Option {
	return func(s *ApplicationService) { s.localBus = bus }
}

// WithTransactor loads, changes and saves an order inside one transaction on
// status changes. Without it each repository call stands alone.
func WithTransactor(tx Transactor) Option {
	return func(s *ApplicationService) { s.tx = tx }
}

// NewApplicationService Create order application service
func NewApplicationService(
	orderRepo order.Repository,
	verifier order.UserVerifier,
	publisher order.EventPublisher,
	opts ...Option,
) *ApplicationService {
	s := &ApplicationService{
		orderRepo: orderRepo,
		verifier:  verifier,
		publisher: publisher,
		tx:        noTx{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get()
	}
	s.log = s.log.Named("order.app")
	return s
}

// CreateOrder verifies the user, builds the aggregate, saves it and publishes order.created.
func (s *ApplicationService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	log := logger.FromContext(ctx, s.log)

	userID, err := order.NewUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyUser(ctx, log, userID); err != nil {
		return nil, err
	}

	items, err := toOrderItems(req.Items)
	if err != nil {
		return nil, err
	}
	orderID, err := order.NextOrderID()
	if err != nil {
		return nil, err
	}
	o, err := order.NewOrder(orderID, userID, items)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.Save(ctx, o); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, log, o)

	log.Info("order created",
		zap.String("order_id", o.ID()),
		zap.String("user_id", userID.String()),
		zap.String("total", o.TotalAmount().String()))
	return &CreateOrderResponse{OrderID: o.ID()}, nil
}

// verifyUser maps a negative or degraded answer to NotFound and any other
// verification failure to BadRequest.
func (s *ApplicationService) verifyUser(ctx context.Context, log *zap.Logger, userID order.UserID) error {
	log.Debug("verifying user", zap.String("user_id", userID.String()))

	exists, err := s.verifier.UserExists(ctx, userID)
	if err != nil {
		log.Error("user verification failed", zap.String("user_id", userID.String()), zap.Error(err))
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return apperrors.Wrap(err, apperrors.CodeBadRequest, "failed to verify user")
	}
	if !exists {
		return order.NewUserNotFoundError(userID)
	}
	return nil
}

// UpdateOrderStatus moves an order to the requested status.
func (s *ApplicationService) UpdateOrderStatus(ctx context.Context, id string, req UpdateOrderStatusRequest) (*OrderResponse, error) {
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(o *order.Order) error { return o.UpdateStatus(status) })
}

// CancelOrder is UpdateOrderStatus to CANCELLED.
func (s *ApplicationService) CancelOrder(ctx context.Context, id string) (*OrderResponse, error) {
	return s.mutate(ctx, id, func(o *order.Order) error { return o.Cancel() })
}

func (s *ApplicationService) mutate(ctx context.Context, id string, change func(*order.Order) error) (*OrderResponse, error) {
	log := logger.FromContext(ctx, s.log)

	orderID, err := order.NewOrderID(id)
	if err != nil {
		return nil, err
	}

	var (
		o      *order.Order
		before order.Status
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		found, err := s.orderRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		before = found.Status()
		if err := change(found); err != nil {
			log.Info("order status change rejected", zap.String("order_id", id), zap.Error(err))
			return err
		}
		if err := s.orderRepo.Save(ctx, found); err != nil {
			return err
		}
		o = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	// published only once the transaction has committed
	s.publishEvents(ctx, log, o)

	if before != o.Status() {
		log.Info("order status changed",
			zap.String("order_id", id),
			zap.String("from", before.String()),
			zap.String("to", o.Status().String()))
	}
	return toOrderResponse(o), nil
}

// GetOrder Get order
func (s *ApplicationService) GetOrder(ctx context.Context, id string) (*OrderResponse, error) {
	orderID, err := order.NewOrderID(id)
	if err != nil {
		return nil, err
	}
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return toOrderResponse(o), nil
}

// GetUserOrders lists a user's orders, newest first. activeOnly drops cancelled and returned orders.
func (s *ApplicationService) GetUserOrders(ctx context.Context, userID string, activeOnly bool) ([]*OrderResponse, error) {
	uid, err := order.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	spec := order.NewByUserIDSpecification(uid)
	if activeOnly {
		spec = shared.And(spec, order.ActiveSpecification())
	}
	orders, err := s.orderRepo.FindBySpecification(ctx, spec)
	if err != nil {
		return nil, err
	}
	return toOrderResponses(orders), nil
}

func (s *ApplicationService) publishEvents(ctx context.Context, log *zap.Logger, o *order.Order) {
	for _, event := range o.PullEvents() {
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Error("failed to publish order event",
				zap.String("event", event.EventName()),
				zap.String("order_id", event.GetAggregateID()),
				zap.Error(err))
		}
		if s.localBus == nil {
			continue
		}
		if err := s.localBus.Publish(ctx, event); err != nil {
			log.Warn("local event handler failed",
				zap.String("event", event.EventName()),
				zap.Error(err))
		}
	}
}
