/*
Package order is the order subdomain: the Order aggregate root, its items,
the status lifecycle and the domain events recorded on every change.

All fields are private and mutated only through aggregate methods, so an
Order is always in a state the lifecycle allows. Events accumulate on the
aggregate until the application layer pulls them after persisting.
*/
package order

import (
	"time"

	"order-service/domain/shared"
)

// Order aggregate root
// All modifications to Order and OrderItem must go through the Order aggregate root
type Order struct {
	id          OrderID
	userID      UserID
	items       []OrderItem
	totalAmount shared.Money
	status      Status
	createdAt   time.Time
	updatedAt   time.Time

	events []shared.DomainEvent
}

// OrderItem Entity within the aggregate, only reachable through Order
type OrderItem struct {
	id        string
	productID ProductID
	quantity  int
	unitPrice shared.Money
}

// NewOrderItem validates and builds a line item. The id is unique within the order.
func NewOrderItem(id string, productID ProductID, quantity int, unitPrice shared.Money) (OrderItem, error) {
	if _, err := validateIdentifier("order item id", id); err != nil {
		return OrderItem{}, err
	}
	if _, err := validateIdentifier("product id", productID.String()); err != nil {
		return OrderItem{}, err
	}
	if quantity <= 0 {
		return OrderItem{}, NewInvalidQuantityError(quantity)
	}
	return OrderItem{
		id:        id,
		productID: productID,
		quantity:  quantity,
		unitPrice: unitPrice,
	}, nil
}

// NewOrder Create new Order aggregate root
// The order starts PENDING with its total computed from the items, and records OrderCreated.
func NewOrder(id OrderID, userID UserID, items []OrderItem) (*Order, error) {
	if _, err := validateIdentifier("order id", id.String()); err != nil {
		return nil, err
	}
	if _, err := validateIdentifier("user id", userID.String()); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, NewEmptyOrderItemsError()
	}

	total := shared.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}

	now := time.Now().UTC()
	order := &Order{
		id:          id,
		userID:      userID,
		items:       append([]OrderItem(nil), items...),
		totalAmount: total,
		status:      StatusPending,
		createdAt:   now,
		updatedAt:   now,
	}
	order.events = append(order.events, NewOrderCreatedEvent(order))

	return order, nil
}

// ReconstructionDTO Order reconstruction data transfer object
// ⚠️ Note: only repository implementations rebuild aggregates from storage
type ReconstructionDTO struct {
	ID          OrderID
	UserID      UserID
	Items       []OrderItem
	TotalAmount shared.Money
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RebuildFromDTO Reconstruct Order aggregate root from DTO. No events are recorded.
func RebuildFromDTO(dto ReconstructionDTO) *Order {
	return &Order{
		id:          dto.ID,
		userID:      dto.UserID,
		items:       append([]OrderItem(nil), dto.Items...),
		totalAmount: dto.TotalAmount,
		status:      dto.Status,
		createdAt:   dto.CreatedAt,
		updatedAt:   dto.UpdatedAt,
	}
}

// ItemReconstructionDTO Order item reconstruction data transfer object
type ItemReconstructionDTO struct {
	ID        string
	ProductID ProductID
	Quantity  int
	UnitPrice shared.Money
}

// RebuildItemFromDTO Rebuild OrderItem from DTO
func RebuildItemFromDTO(dto ItemReconstructionDTO) OrderItem {
	return OrderItem{
		id:        dto.ID,
		productID: dto.ProductID,
		quantity:  dto.Quantity,
		unitPrice: dto.UnitPrice,
	}
}

// UpdateStatus moves the order along the lifecycle.
// Setting the current status again is a no-op: no event, updatedAt untouched.
// An illegal transition leaves the aggregate unchanged.
func (o *Order) UpdateStatus(newStatus Status) error {
	if !newStatus.IsValid() {
		return NewInvalidStatusError(newStatus.String())
	}
	if newStatus == o.status {
		return nil
	}
	if !o.status.CanTransitionTo(newStatus) {
		return NewInvalidStatusTransitionError(o.status, newStatus)
	}

	oldStatus := o.status
	o.status = newStatus
	o.updatedAt = time.Now().UTC()
	o.events = append(o.events, NewOrderStatusChangedEvent(o.id, o.userID, oldStatus, newStatus, o.updatedAt))

	return nil
}

// Cancel Cancel order
func (o *Order) Cancel() error {
	return o.UpdateStatus(StatusCancelled)
}

func (o *Order) ID() string                { return o.id.String() }
func (o *Order) OrderID() OrderID          { return o.id }
func (o *Order) UserID() UserID            { return o.userID }
func (o *Order) TotalAmount() shared.Money { return o.totalAmount }
func (o *Order) Status() Status            { return o.status }
func (o *Order) CreatedAt() time.Time      { return o.createdAt }
func (o *Order) UpdatedAt() time.Time      { return o.updatedAt }

// Items Return copy of order items
func (o *Order) Items() []OrderItem {
	items := make([]OrderItem, len(o.items))
	copy(items, o.items)
	return items
}

// PullEvents returns the recorded events in order and clears them.
// A second call without intervening changes returns an empty slice.
func (o *Order) PullEvents() []shared.DomainEvent {
	events := o.events
	o.events = nil
	if events == nil {
		return []shared.DomainEvent{}
	}
	return events
}

func (item OrderItem) ID() string              { return item.id }
func (item OrderItem) ProductID() ProductID    { return item.productID }
func (item OrderItem) Quantity() int           { return item.quantity }
func (item OrderItem) UnitPrice() shared.Money { return item.unitPrice }

// Subtotal is unitPrice × quantity, rounded to two decimals.
func (item OrderItem) Subtotal() shared.Money {
	// quantity is validated positive on construction
	sub, _ := item.unitPrice.Multiply(item.quantity)
	return sub
}

var _ shared.AggregateRoot = (*Order)(nil)
