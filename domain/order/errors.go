/*
Package order - 订单领域错误定义

设计原则:
1. 使用哨兵错误(sentinel errors)支持 errors.Is() 类型安全判断
2. 每个错误同时归属一个 shared 分类（NotFound / Conflict / InvalidInput），
   上层只需判断分类即可映射响应码
3. 错误构造函数在创建时捕获堆栈，便于定位错误发生点

堆栈捕获:
- NewXxxError 构造函数内部调用 shared.CaptureStack(3)
- skip=3 跳过：runtime.Callers, CaptureStack, NewXxxError
*/
package order

import (
	"errors"
	"strconv"

	"order-service/domain/shared"
)

var (
	// ErrOrderNotFound 订单未找到
	ErrOrderNotFound = errors.New("order not found")

	// ErrUserNotFound 下单用户不存在（或校验服务不可用时的降级结果）
	ErrUserNotFound = errors.New("user not found")

	// ErrEmptyOrderItems 订单项为空
	ErrEmptyOrderItems = errors.New("order must have at least one item")

	// ErrInvalidQuantity 无效的订单项数量
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// ErrInvalidStatus 未知的状态字面量
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrInvalidStatusTransition 状态迁移不在迁移表内
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// NewOrderNotFoundError 创建订单未找到错误（带堆栈）
// 返回的错误支持:
//   - errors.Is(err, ErrOrderNotFound)
//   - errors.Is(err, shared.ErrNotFound)
//   - err.(shared.Stacker).Stack() 获取堆栈
func NewOrderNotFoundError(orderID OrderID) error {
	return &orderDomainError{
		sentinel: ErrOrderNotFound,
		category: shared.ErrNotFound,
		entity:   "order",
		message:  "order not found: " + orderID.String(),
		stack:    shared.CaptureStack(3),
	}
}

// NewUserNotFoundError 创建用户不存在错误
func NewUserNotFoundError(userID UserID) error {
	return &orderDomainError{
		sentinel: ErrUserNotFound,
		category: shared.ErrNotFound,
		entity:   "user",
		message:  "user not found: " + userID.String(),
		stack:    shared.CaptureStack(3),
	}
}

// NewEmptyOrderItemsError 创建订单项为空错误
func NewEmptyOrderItemsError() error {
	return &orderDomainError{
		sentinel: ErrEmptyOrderItems,
		category: shared.ErrInvalidInput,
		entity:   "order",
		field:    "items",
		message:  "order must have at least one item",
		stack:    shared.CaptureStack(3),
	}
}

// NewInvalidQuantityError 创建数量非法错误
func NewInvalidQuantityError(quantity int) error {
	return &orderDomainError{
		sentinel: ErrInvalidQuantity,
		category: shared.ErrInvalidInput,
		entity:   "order_item",
		field:    "quantity",
		message:  "quantity must be greater than zero, got " + strconv.Itoa(quantity),
		stack:    shared.CaptureStack(3),
	}
}

// NewInvalidStatusError 创建未知状态错误
func NewInvalidStatusError(value string) error {
	return &orderDomainError{
		sentinel: ErrInvalidStatus,
		category: shared.ErrInvalidInput,
		entity:   "order",
		field:    "status",
		message:  "invalid order status: " + value,
		stack:    shared.CaptureStack(3),
	}
}

// NewInvalidStatusTransitionError 创建非法状态迁移错误
// 消息同时包含旧状态和新状态
func NewInvalidStatusTransitionError(from, to Status) error {
	return &orderDomainError{
		sentinel: ErrInvalidStatusTransition,
		category: shared.ErrConflict,
		entity:   "order",
		field:    "status",
		message:  "invalid status transition from " + from.String() + " to " + to.String(),
		stack:    shared.CaptureStack(3),
	}
}

// orderDomainError 订单领域错误（带堆栈）
type orderDomainError struct {
	sentinel error     // 具体哨兵错误
	category error     // shared 分类
	entity   string    // 实体名
	field    string    // 字段名（可选）
	message  string    // 错误消息
	stack    []uintptr // 调用栈
}

func (e *orderDomainError) Error() string {
	return e.message
}

func (e *orderDomainError) Unwrap() []error {
	return []error{e.sentinel, e.category}
}

// Field 返回出错字段（可能为空）
func (e *orderDomainError) Field() string {
	return e.field
}

// Stack 实现 shared.Stacker 接口
func (e *orderDomainError) Stack() []string {
	if len(e.stack) == 0 {
		return nil
	}
	return shared.FormatStack(e.stack)
}
