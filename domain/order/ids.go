package order

import (
	"strings"

	"order-service/domain/shared"

	"github.com/google/uuid"
)

// OrderID identifies an order. Every identifier type shares one rule:
// it must not be empty after trimming surrounding whitespace.
type OrderID string

// UserID identifies the customer owning an order.
type UserID string

// ProductID identifies a catalogue product.
type ProductID string

func NewOrderID(value string) (OrderID, error) {
	v, err := validateIdentifier("order id", value)
	return OrderID(v), err
}

// NextOrderID generates a fresh time-ordered identifier.
func NextOrderID() (OrderID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return OrderID(id.String()), nil
}

func NewUserID(value string) (UserID, error) {
	v, err := validateIdentifier("user id", value)
	return UserID(v), err
}

func NewProductID(value string) (ProductID, error) {
	v, err := validateIdentifier("product id", value)
	return ProductID(v), err
}

func (id OrderID) String() string   { return string(id) }
func (id UserID) String() string    { return string(id) }
func (id ProductID) String() string { return string(id) }

func validateIdentifier(name, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", shared.NewValidationError("order", name, name+" cannot be empty")
	}
	return trimmed, nil
}
