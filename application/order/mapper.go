package order

import (
	"order-service/domain/order"
	"order-service/domain/shared"

	"github.com/google/uuid"
)

func toOrderItems(items []OrderItemRequest) ([]order.OrderItem, error) {
	result := make([]order.OrderItem, 0, len(items))
	for _, item := range items {
		productID, err := order.NewProductID(item.ProductID)
		if err != nil {
			return nil, err
		}
		price, err := shared.NewMoney(item.Price)
		if err != nil {
			return nil, err
		}
		orderItem, err := order.NewOrderItem(uuid.NewString(), productID, item.Quantity, price)
		if err != nil {
			return nil, err
		}
		result = append(result, orderItem)
	}
	return result, nil
}

func toOrderResponse(o *order.Order) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items()))
	for _, item := range o.Items() {
		items = append(items, OrderItemResponse{
			ID:        item.ID(),
			ProductID: item.ProductID().String(),
			Quantity:  item.Quantity(),
			Price:     item.UnitPrice().Float64(),
			Subtotal:  item.Subtotal().Float64(),
		})
	}

	return &OrderResponse{
		ID:          o.ID(),
		UserID:      o.UserID().String(),
		Items:       items,
		TotalAmount: o.TotalAmount().Float64(),
		Status:      o.Status().String(),
		CreatedAt:   o.CreatedAt(),
		UpdatedAt:   o.UpdatedAt(),
	}
}

func toOrderResponses(orders []*order.Order) []*OrderResponse {
	result := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toOrderResponse(o))
	}
	return result
}
