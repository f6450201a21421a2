package po

import (
	"fmt"
	"time"

	"order-service/domain/order"
	"order-service/domain/shared"

	"github.com/shopspring/decimal"
)

// OrderPO Order persistence object
// Note: Only used for database mapping, does not contain any business logic
// Defining GORM associations is prohibited here
type OrderPO struct {
	ID          string          `gorm:"primaryKey;size:64"`
	UserID      string          `gorm:"size:64;index:idx_orders_user_created,priority:1;not null"`
	Status      string          `gorm:"size:20;not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt   time.Time       `gorm:"index:idx_orders_user_created,priority:2;not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName Specify table name
func (OrderPO) TableName() string {
	return "orders"
}

// OrderItemPO Order item persistence object
type OrderItemPO struct {
	ID        string          `gorm:"primaryKey;size:64"`
	OrderID   string          `gorm:"size:64;index;not null"` // Only store ID, no GORM association
	ProductID string          `gorm:"size:64;not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Position  int             `gorm:"not null;default:0"`
}

// TableName Specify table name
func (OrderItemPO) TableName() string {
	return "order_items"
}

// FromOrderDomain Convert domain model to persistence object
func FromOrderDomain(o *order.Order) (*OrderPO, []OrderItemPO) {
	orderPO := &OrderPO{
		ID:          o.ID(),
		UserID:      o.UserID().String(),
		Status:      o.Status().String(),
		TotalAmount: o.TotalAmount().Amount(),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
	}

	items := o.Items()
	itemPOs := make([]OrderItemPO, len(items))
	for i, item := range items {
		itemPOs[i] = OrderItemPO{
			ID:        item.ID(),
			OrderID:   o.ID(),
			ProductID: item.ProductID().String(),
			Quantity:  item.Quantity(),
			Price:     item.UnitPrice().Amount(),
			Position:  i,
		}
	}

	return orderPO, itemPOs
}

// ToDomain Convert persistence object to domain model. itemPOs must be ordered by Position.
func (p *OrderPO) ToDomain(itemPOs []OrderItemPO) (*order.Order, error) {
	items := make([]order.OrderItem, len(itemPOs))
	for i, itemPO := range itemPOs {
		price, err := shared.NewMoneyFromDecimal(itemPO.Price)
		if err != nil {
			return nil, fmt.Errorf("order item %s: %w", itemPO.ID, err)
		}
		items[i] = order.RebuildItemFromDTO(order.ItemReconstructionDTO{
			ID:        itemPO.ID,
			ProductID: order.ProductID(itemPO.ProductID),
			Quantity:  itemPO.Quantity,
			UnitPrice: price,
		})
	}
	total, err := shared.NewMoneyFromDecimal(p.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", p.ID, err)
	}

	return order.RebuildFromDTO(order.ReconstructionDTO{
		ID:          order.OrderID(p.ID),
		UserID:      order.UserID(p.UserID),
		Items:       items,
		TotalAmount: total,
		Status:      order.Status(p.Status),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}), nil
}
