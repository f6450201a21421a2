// Package contracts holds the wire shapes exchanged with other services over the broker.
// Field names are part of the contract and must not change.
package contracts

import "time"

const (
	TopicUserVerify         = "user.verify"
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
)

// UserVerifyRequest is sent on TopicUserVerify.
type UserVerifyRequest struct {
	UserID string `json:"userId"`
}

// UserVerifyResponse is the reply to UserVerifyRequest.
type UserVerifyResponse struct {
	Exists bool `json:"exists"`
}

type OrderCreatedItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderCreated is the value of a TopicOrderCreated message keyed by order id.
type OrderCreated struct {
	OrderID     string             `json:"orderId"`
	UserID      string             `json:"userId"`
	TotalAmount float64            `json:"totalAmount"`
	Items       []OrderCreatedItem `json:"items"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// OrderStatusChanged is the value of a TopicOrderStatusChanged message keyed by order id.
type OrderStatusChanged struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	UpdatedAt time.Time `json:"updatedAt"`
}
