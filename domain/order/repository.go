package order

import (
	"context"

	"order-service/domain/shared"
)

// Repository Order repository interface
type Repository interface {
	// Save inserts or updates the aggregate, items included.
	// It never touches the aggregate's pending events.
	Save(ctx context.Context, order *Order) error

	// FindByID returns ErrOrderNotFound when no order has the id.
	FindByID(ctx context.Context, id OrderID) (*Order, error)

	// FindByUserID returns the user's orders, newest first. No orders is not an error.
	FindByUserID(ctx context.Context, userID UserID) ([]*Order, error)

	// FindBySpecification returns the orders satisfying spec, newest first.
	FindBySpecification(ctx context.Context, spec shared.Specification[*Order]) ([]*Order, error)

	// Delete removes the order and its items. Deleting a missing order returns ErrOrderNotFound.
	Delete(ctx context.Context, id OrderID) error
}
