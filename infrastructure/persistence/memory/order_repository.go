// Package memory keeps orders in process memory. It backs the default
// configuration, the feature suite and application tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"order-service/domain/order"
	"order-service/domain/shared"
)

// OrderRepository stores snapshots rather than the caller's pointers, so an
// aggregate modified after Save does not leak into storage until saved again.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[order.OrderID]order.ReconstructionDTO
	saves  int
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[order.OrderID]order.ReconstructionDTO)}
}

func snapshot(o *order.Order) order.ReconstructionDTO {
	return order.ReconstructionDTO{
		ID:          o.OrderID(),
		UserID:      o.UserID(),
		Items:       o.Items(),
		TotalAmount: o.TotalAmount(),
		Status:      o.Status(),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
	}
}

func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.OrderID()] = snapshot(o)
	r.saves++
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id order.OrderID) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dto, ok := r.orders[id]
	if !ok {
		return nil, order.NewOrderNotFoundError(id)
	}
	return order.RebuildFromDTO(dto), nil
}

func (r *OrderRepository) FindByUserID(ctx context.Context, userID order.UserID) ([]*order.Order, error) {
	return r.FindBySpecification(ctx, order.NewByUserIDSpecification(userID))
}

// FindBySpecification returns matches newest first.
func (r *OrderRepository) FindBySpecification(ctx context.Context, spec shared.Specification[*order.Order]) ([]*order.Order, error) {
	r.mu.RLock()
	all := make([]*order.Order, 0, len(r.orders))
	for _, dto := range r.orders {
		all = append(all, order.RebuildFromDTO(dto))
	}
	r.mu.RUnlock()

	matched := shared.Filter(ctx, spec, all)
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].ID() > matched[j].ID()
		}
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})
	return matched, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id order.OrderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return order.NewOrderNotFoundError(id)
	}
	delete(r.orders, id)
	return nil
}

// Saves counts successful Save calls.
func (r *OrderRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

func (r *OrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

var _ order.Repository = (*OrderRepository)(nil)
