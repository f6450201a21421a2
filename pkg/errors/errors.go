package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"order-service/domain/order"
	"order-service/domain/shared"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 通用错误码
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
	CodeBadRequest         ErrorCode = "BAD_REQUEST"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeTooManyRequest     ErrorCode = "TOO_MANY_REQUESTS"
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeTimeout            ErrorCode = "TIMEOUT"

	// 业务错误码
	CodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	CodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	CodeInvalidOrderState ErrorCode = "INVALID_ORDER_STATE"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode 返回对应的HTTP状态码
func (e *AppError) HTTPStatusCode() int {
	switch e.Code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound, CodeUserNotFound, CodeOrderNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidOrderState:
		return http.StatusConflict
	case CodeTooManyRequest:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// New 创建新错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 常用错误构造函数

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}

func TooManyRequests(message string) *AppError {
	return New(CodeTooManyRequest, message)
}

func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

func ServiceUnavailable(message string) *AppError {
	return New(CodeServiceUnavailable, message)
}

// Is 检查是否为特定错误码
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "internal server error")
}

type fielder interface{ Field() string }

// FromDomainError 按领域错误类别映射为应用错误，具体哨兵优先于类别
func FromDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	msg, field := err.Error(), ""
	var de *shared.DomainError
	var f fielder
	if errors.As(err, &de) {
		msg, field = de.Message, de.Field
	} else if errors.As(err, &f) {
		field = f.Field()
	}

	var mapped *AppError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		mapped = New(CodeOrderNotFound, msg)
	case errors.Is(err, order.ErrUserNotFound):
		mapped = New(CodeUserNotFound, msg)
	case errors.Is(err, order.ErrInvalidStatusTransition):
		mapped = New(CodeInvalidOrderState, msg)
	case errors.Is(err, shared.ErrNotFound):
		mapped = NotFound(msg)
	case errors.Is(err, shared.ErrInvalidInput):
		mapped = Validation(msg)
	case errors.Is(err, shared.ErrConflict):
		mapped = Conflict(msg)
	case errors.Is(err, shared.ErrUnavailable):
		mapped = ServiceUnavailable("service temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		mapped = New(CodeTimeout, "request timed out")
	default:
		mapped = Internal("internal server error")
	}
	mapped.Field = field
	mapped.Err = err
	return mapped
}
