package order

import (
	"context"

	"order-service/domain/shared"
)

// UserVerifier answers whether a user exists.
// Implementations sit behind a circuit breaker; a degraded answer is false, not an error.
type UserVerifier interface {
	UserExists(ctx context.Context, userID UserID) (bool, error)
}

// EventPublisher hands drained domain events to the outside world.
type EventPublisher interface {
	Publish(ctx context.Context, event shared.DomainEvent) error
}
