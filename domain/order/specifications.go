package order

import (
	"context"
	"time"

	"order-service/domain/shared"
)

// ByUserIDSpecification filters orders by user ID
type ByUserIDSpecification struct {
	UserID UserID
}

func (spec ByUserIDSpecification) IsSatisfiedBy(_ context.Context, entity *Order) bool {
	return entity.UserID() == spec.UserID
}

// ByStatusSpecification filters orders by status
type ByStatusSpecification struct {
	Status Status
}

func (spec ByStatusSpecification) IsSatisfiedBy(_ context.Context, entity *Order) bool {
	return entity.Status() == spec.Status
}

// ByDateRangeSpecification filters orders by creation date range.
// Zero bounds are ignored.
type ByDateRangeSpecification struct {
	Start time.Time
	End   time.Time
}

func (spec ByDateRangeSpecification) IsSatisfiedBy(_ context.Context, entity *Order) bool {
	createdAt := entity.CreatedAt()
	if !spec.Start.IsZero() && createdAt.Before(spec.Start) {
		return false
	}
	if !spec.End.IsZero() && createdAt.After(spec.End) {
		return false
	}
	return true
}

func NewByUserIDSpecification(userID UserID) shared.Specification[*Order] {
	return ByUserIDSpecification{UserID: userID}
}

func NewByStatusSpecification(status Status) shared.Specification[*Order] {
	return ByStatusSpecification{Status: status}
}

func NewByDateRangeSpecification(start, end time.Time) shared.Specification[*Order] {
	return ByDateRangeSpecification{Start: start, End: end}
}

// ActiveSpecification matches orders whose lifecycle has not ended.
func ActiveSpecification() shared.Specification[*Order] {
	return shared.And[*Order](
		shared.Not(NewByStatusSpecification(StatusCancelled)),
		shared.Not(NewByStatusSpecification(StatusReturned)),
	)
}
