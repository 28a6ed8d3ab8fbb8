package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType classifies application errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeDatabase   ErrorType = "database_error"
	ErrorTypeNotFound   ErrorType = "not_found_error"
	ErrorTypeConflict   ErrorType = "conflict_error"
	ErrorTypeRateLimit  ErrorType = "rate_limit_error"
	ErrorTypeTimeout    ErrorType = "timeout_error"
	ErrorTypeSearch     ErrorType = "search_error"
	ErrorTypeConfig     ErrorType = "configuration_error"
)

// CustomError represents a classified application error.
type CustomError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code"`
	StatusCode int                    `json:"status_code"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *CustomError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the caller may usefully retry the failed
// operation.
func (e *CustomError) Retryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeSearch:
		return true
	}
	return false
}

// NewCustomError creates a new classified error.
func NewCustomError(errorType ErrorType, message, code string, statusCode int) *CustomError {
	return &CustomError{
		Type:       errorType,
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Details:    make(map[string]interface{}),
	}
}

// WithCause attaches the underlying error.
func (e *CustomError) WithCause(cause error) *CustomError {
	e.Cause = cause
	return e
}

// WithDetail attaches a key/value detail.
func (e *CustomError) WithDetail(key string, value interface{}) *CustomError {
	e.Details[key] = value
	return e
}

// NewValidationError reports invalid input on a named field.
func NewValidationError(message, field string) *CustomError {
	return NewCustomError(ErrorTypeValidation, message, "VALIDATION_FAILED", http.StatusBadRequest).
		WithDetail("field", field)
}

// DatabaseError wraps a failed datastore operation.
func DatabaseError(message string, cause error) *CustomError {
	return NewCustomError(ErrorTypeDatabase, message, "DATABASE_ERROR", http.StatusInternalServerError).
		WithCause(cause)
}

// NotFoundError reports a missing resource.
func NotFoundError(resource, id string) *CustomError {
	return NewCustomError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), "NOT_FOUND", http.StatusNotFound).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// ConflictError reports a uniqueness or state conflict.
func ConflictError(message, resource string) *CustomError {
	return NewCustomError(ErrorTypeConflict, message, "CONFLICT", http.StatusConflict).
		WithDetail("resource", resource)
}

// RateLimitError reports an exhausted request budget.
func RateLimitError(limit int, window string) *CustomError {
	return NewCustomError(ErrorTypeRateLimit, "Rate limit exceeded", "RATE_LIMITED", http.StatusTooManyRequests).
		WithDetail("limit", limit).
		WithDetail("window", window)
}

// TimeoutError reports an operation that exceeded its time budget.
func TimeoutError(operation string, timeout time.Duration) *CustomError {
	return NewCustomError(ErrorTypeTimeout, "Operation timed out", "TIMEOUT", http.StatusRequestTimeout).
		WithDetail("operation", operation).
		WithDetail("timeout", timeout.String())
}

// NewAllSourcesFailedError reports a search where every enabled source
// failed. Partial failures are zero-filled upstream and never raise.
func NewAllSourcesFailedError(cause error) *CustomError {
	return NewCustomError(ErrorTypeSearch, "all search sources failed", "ALL_SOURCES_FAILED", http.StatusBadGateway).
		WithCause(cause)
}

// ConfigError reports an invalid configuration value.
func ConfigError(key, message string) *CustomError {
	return NewCustomError(ErrorTypeConfig, message, "CONFIG_ERROR", http.StatusInternalServerError).
		WithDetail("config_key", key)
}
