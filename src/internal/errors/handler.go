package errors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// ErrorHandler renders application errors as standardized JSON
// responses. In production internals are masked behind the request id.
type ErrorHandler struct {
	production bool
	logger     *slog.Logger
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(config *viper.Viper, logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		production: config.GetString("environment") == "production",
		logger:     logger,
	}
}

// ErrorResponse is the standardized error payload.
type ErrorResponse struct {
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Retryable  bool                   `json:"retryable,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	RequestID  string                 `json:"request_id,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Method     string                 `json:"method,omitempty"`
	StatusCode int                    `json:"status_code"`
}

// HTTPErrorHandler handles HTTP errors for Echo.
func (h *ErrorHandler) HTTPErrorHandler(err error, c echo.Context) {
	var (
		code      = http.StatusInternalServerError
		message   = "Internal server error"
		details   = make(map[string]interface{})
		errCode   = "INTERNAL_ERROR"
		retryable = false
	)

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = c.Request().Header.Get("X-Request-ID")
	}
	path := c.Request().URL.Path
	method := c.Request().Method

	switch e := err.(type) {
	case *CustomError:
		code = e.StatusCode
		message = e.Message
		errCode = e.Code
		details = e.Details
		retryable = e.Retryable()

		h.logger.Warn("request failed",
			"code", errCode,
			"status", code,
			"request_id", requestID,
			"path", path,
			"method", method,
			"error", err)

	case *echo.HTTPError:
		code = e.Code
		message = fmt.Sprintf("%v", e.Message)

		switch code {
		case http.StatusNotFound:
			errCode = "NOT_FOUND"
			message = "Resource not found"
		case http.StatusMethodNotAllowed:
			errCode = "METHOD_NOT_ALLOWED"
			message = "Method not allowed"
		case http.StatusBadRequest:
			errCode = "BAD_REQUEST"
		}

	case *json.SyntaxError:
		code = http.StatusBadRequest
		message = "Invalid JSON format"
		errCode = "INVALID_JSON"
		details["offset"] = e.Offset

	default:
		h.logger.Error("unexpected error",
			"request_id", requestID,
			"path", path,
			"method", method,
			"error", err,
			"stack", string(debug.Stack()))

		if strings.Contains(err.Error(), "connection refused") {
			code = http.StatusBadGateway
			message = "Service temporarily unavailable"
			errCode = "SERVICE_UNAVAILABLE"
			retryable = true
		} else if strings.Contains(err.Error(), "timeout") {
			code = http.StatusRequestTimeout
			message = "Request timeout"
			errCode = "TIMEOUT"
			retryable = true
		}
	}

	// Don't expose internals in production.
	if h.production && code == http.StatusInternalServerError {
		message = "Internal server error"
		details = map[string]interface{}{
			"error_id": requestID,
		}
	}

	errorResponse := ErrorResponse{
		Error:      message,
		Message:    message,
		Code:       errCode,
		Retryable:  retryable,
		Details:    details,
		Timestamp:  time.Now(),
		RequestID:  requestID,
		Path:       path,
		Method:     method,
		StatusCode: code,
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, errorResponse)
		}
		if err != nil {
			h.logger.Error("failed to send error response", "error", err)
		}
	}
}

// DatabaseErrorWrapper converts raw datastore errors into classified
// application errors.
func DatabaseErrorWrapper(operation string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if err == gorm.ErrRecordNotFound {
		return NotFoundError("Resource", "")
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key") {
		return ConflictError("Resource already exists", "")
	}
	return DatabaseError(fmt.Sprintf("Database operation failed: %s", operation), err)
}
