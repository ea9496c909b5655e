package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Structural error codes, returned to the caller of a public entry point.
const (
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrConfiguration     ErrorCode = "CONFIGURATION"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrToolValidation    ErrorCode = "TOOL_VALIDATION"
)

// Generation-time error codes. These are usually absorbed into message
// content rather than returned.
const (
	ErrTransport     ErrorCode = "TRANSPORT"
	ErrParse         ErrorCode = "PARSE"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// NotFound 未知的会话、任务、模板或工具
func NotFound(kind, id string) *Error {
	return NewError(ErrNotFound, fmt.Sprintf("%s not found: %s", kind, id)).
		WithHTTPStatus(http.StatusNotFound)
}

// Configuration 团队或任务配置无效
func Configuration(message string) *Error {
	return NewError(ErrConfiguration, message).WithHTTPStatus(http.StatusBadRequest)
}

// Transport LLM 调用失败（HTTP 状态或网络错误）
func Transport(message string) *Error {
	return NewError(ErrTransport, message).WithHTTPStatus(http.StatusBadGateway)
}

// Parse 流式片段或响应体无法解析
func Parse(message string) *Error {
	return NewError(ErrParse, message)
}

// InvalidTransition 非法的状态迁移
func InvalidTransition(message string) *Error {
	return NewError(ErrInvalidTransition, message).WithHTTPStatus(http.StatusConflict)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// HTTPStatusOf returns the HTTP status attached to err, or 500.
func HTTPStatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	switch GetErrorCode(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConfiguration, ErrToolValidation:
		return http.StatusBadRequest
	case ErrInvalidTransition:
		return http.StatusConflict
	case ErrTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
