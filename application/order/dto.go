package order

import "time"

// CreateOrderRequest 表示创建订单的入参。
type CreateOrderRequest struct {
	UserID string             `json:"userId" binding:"required"`
	Items  []OrderItemRequest `json:"items"`
}

// OrderItemRequest 表示创建订单时的单个商品项，数量和价格由领域层校验。
type OrderItemRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// UpdateOrderStatusRequest 表示更新订单状态入参。
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateOrderResponse 创建成功只返回订单号。
type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
}

// OrderResponse 表示订单返回模型。
type OrderResponse struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	Items       []OrderItemResponse `json:"items"`
	TotalAmount float64             `json:"totalAmount"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// OrderItemResponse 表示订单项返回模型。
type OrderItemResponse struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}
