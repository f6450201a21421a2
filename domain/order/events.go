package order

import (
	"time"

	"order-service/domain/shared"
)

const (
	EventNameOrderCreated       = "order.created"
	EventNameOrderStatusChanged = "order.status.changed"
)

// CreatedItem is the per-item snapshot carried by OrderCreatedEvent.
type CreatedItem struct {
	ProductID ProductID
	Quantity  int
	Price     shared.Money
}

type OrderCreatedEvent struct {
	orderID     OrderID
	userID      UserID
	totalAmount shared.Money
	items       []CreatedItem
	createdAt   time.Time
}

func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	items := make([]CreatedItem, len(o.items))
	for i, it := range o.items {
		items[i] = CreatedItem{ProductID: it.productID, Quantity: it.quantity, Price: it.unitPrice}
	}
	return &OrderCreatedEvent{
		orderID:     o.id,
		userID:      o.userID,
		totalAmount: o.totalAmount,
		items:       items,
		createdAt:   o.createdAt,
	}
}

func (e *OrderCreatedEvent) EventName() string         { return EventNameOrderCreated }
func (e *OrderCreatedEvent) OccurredOn() time.Time     { return e.createdAt }
func (e *OrderCreatedEvent) GetAggregateID() string    { return e.orderID.String() }
func (e *OrderCreatedEvent) OrderID() OrderID          { return e.orderID }
func (e *OrderCreatedEvent) UserID() UserID            { return e.userID }
func (e *OrderCreatedEvent) TotalAmount() shared.Money { return e.totalAmount }
func (e *OrderCreatedEvent) CreatedAt() time.Time      { return e.createdAt }

func (e *OrderCreatedEvent) Items() []CreatedItem {
	return append([]CreatedItem(nil), e.items...)
}

type OrderStatusChangedEvent struct {
	orderID   OrderID
	userID    UserID
	oldStatus Status
	newStatus Status
	updatedAt time.Time
}

func NewOrderStatusChangedEvent(orderID OrderID, userID UserID, oldStatus, newStatus Status, updatedAt time.Time) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		orderID:   orderID,
		userID:    userID,
		oldStatus: oldStatus,
		newStatus: newStatus,
		updatedAt: updatedAt,
	}
}

func (e *OrderStatusChangedEvent) EventName() string      { return EventNameOrderStatusChanged }
func (e *OrderStatusChangedEvent) OccurredOn() time.Time  { return e.updatedAt }
func (e *OrderStatusChangedEvent) GetAggregateID() string { return e.orderID.String() }
func (e *OrderStatusChangedEvent) OrderID() OrderID       { return e.orderID }
func (e *OrderStatusChangedEvent) UserID() UserID         { return e.userID }
func (e *OrderStatusChangedEvent) OldStatus() Status      { return e.oldStatus }
func (e *OrderStatusChangedEvent) NewStatus() Status      { return e.newStatus }
func (e *OrderStatusChangedEvent) UpdatedAt() time.Time   { return e.updatedAt }
