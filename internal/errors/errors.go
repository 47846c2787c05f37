// Package errors defines the service error type shared by HTTP middleware
// and handlers. A ServiceError carries a stable machine-readable code, a
// human-readable message and the HTTP status it maps to.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

const (
	CodeMalformed         ErrorCode = "MALFORMED"
	CodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeInternal          ErrorCode = "INTERNAL"
	CodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	CodeQueueFull         ErrorCode = "QUEUE_FULL"
	CodePayloadTooLarge   ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeMethodNotAllowed  ErrorCode = "METHOD_NOT_ALLOWED"
	CodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
)

// ServiceError is the canonical error shape returned by the gateway.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a key/value pair to the error and returns it.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, status int, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		cause:      cause,
	}
}

// BadRequest creates a 400 error for malformed payloads.
func BadRequest(message string) *ServiceError {
	return newError(CodeMalformed, http.StatusBadRequest, message, nil)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthenticated, http.StatusUnauthorized, message, nil)
}

// NotFound creates a 404 error.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// InvalidToken creates a 401 error for bearer token failures.
func InvalidToken(cause error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", cause)
}

// RateLimitExceeded creates a 429 error describing the limit that was hit.
func RateLimitExceeded(limit int, window string) *ServiceError {
	e := newError(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded", nil)
	e.WithDetails("limit", limit)
	e.WithDetails("window", window)
	return e
}

// QueueFull creates a 500 error for a saturated transaction queue.
func QueueFull(cause error) *ServiceError {
	return newError(CodeQueueFull, http.StatusInternalServerError, "Transaction queue is full", cause)
}

// Internal creates a 500 error wrapping an unexpected failure.
func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
