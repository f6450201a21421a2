/*
Package order - 订单 API 控制器

职责:
1. 接收 HTTP 请求，解析参数
2. 调用应用服务处理业务逻辑
3. 使用 response 包统一处理响应和错误

参数绑定错误走 response.HandleBindError (400)，业务错误走 response.HandleAppError，
由 errors.FromDomainError 映射状态码。
*/
package order

import (
	"strconv"

	"order-service/api/response"
	orderapp "order-service/application/order"

	"github.com/gin-gonic/gin"
)

// Controller 订单控制器
type Controller struct {
	orderService *orderapp.ApplicationService
}

// NewController 创建订单控制器
func NewController(orderService *orderapp.ApplicationService) *Controller {
	return &Controller{orderService: orderService}
}

// RegisterRoutes 注册订单路由
func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	orderGroup := router.Group("/orders")
	{
		orderGroup.POST("", c.CreateOrder)
		orderGroup.GET("/:id", c.GetOrder)
		orderGroup.GET("/user/:userId", c.GetUserOrders)
		orderGroup.PUT("/:id/status", c.UpdateOrderStatus)
		orderGroup.PUT("/:id/cancel", c.CancelOrder)
	}
}

// CreateOrder 创建订单
// POST /api/v1/orders
func (c *Controller) CreateOrder(ctx *gin.Context) {
	var req orderapp.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleBindError(ctx, err, "invalid request parameters")
		return
	}

	created, err := c.orderService.CreateOrder(ctx.Request.Context(), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	response.HandleCreated(ctx, created, "order created successfully")
}

// GetOrder 获取订单信息
// GET /api/v1/orders/:id
func (c *Controller) GetOrder(ctx *gin.Context) {
	order, err := c.orderService.GetOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	response.HandleSuccess(ctx, order, "order retrieved successfully")
}

// GetUserOrders 获取用户的订单，?active=true 时只返回未取消、未退货的订单
// GET /api/v1/orders/user/:userId
func (c *Controller) GetUserOrders(ctx *gin.Context) {
	activeOnly := false
	if raw := ctx.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.HandleBindError(ctx, err, "active must be a boolean")
			return
		}
		activeOnly = v
	}

	orders, err := c.orderService.GetUserOrders(ctx.Request.Context(), ctx.Param("userId"), activeOnly)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	response.HandleSuccess(ctx, orders, "user orders retrieved successfully")
}

// UpdateOrderStatus 更新订单状态
// PUT /api/v1/orders/:id/status
func (c *Controller) UpdateOrderStatus(ctx *gin.Context) {
	var req orderapp.UpdateOrderStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleBindError(ctx, err, "invalid request parameters")
		return
	}

	order, err := c.orderService.UpdateOrderStatus(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	response.HandleSuccess(ctx, order, "order status updated successfully")
}

// CancelOrder 取消订单
// PUT /api/v1/orders/:id/cancel
func (c *Controller) CancelOrder(ctx *gin.Context) {
	order, err := c.orderService.CancelOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	response.HandleSuccess(ctx, order, "order cancelled successfully")
}
