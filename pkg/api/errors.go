package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError         ErrorType = "server_error"
	ErrorTypeInvalidRequest      ErrorType = "invalid_request"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeModelError          ErrorType = "model_error"
	ErrorTypeTooManyRequests     ErrorType = "too_many_requests"
	ErrorTypeAuthenticationError ErrorType = "authentication_error"
)

// APIError represents a structured API error with type, code, param, and message.
//
// StatusCode and RetryAfter describe the backend response that produced the
// error, when there was one. They are not serialized.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	StatusCode int           `json:"-"`
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewModelError creates an APIError for model-related errors.
func NewModelError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeModelError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:       ErrorTypeTooManyRequests,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewAuthenticationError creates an APIError for rejected credentials.
func NewAuthenticationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthenticationError,
		Message: message,
	}
}

// IsRetryable reports whether err is a rate-limit failure. These are retried
// by default; other failures only when the retry policy opts into all errors.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Type == ErrorTypeTooManyRequests || apiErr.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is likely to succeed on a later attempt:
// rate limits, request timeouts, 5xx responses, and connection failures.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch {
	case IsRetryable(err):
		return true
	case apiErr.StatusCode == http.StatusRequestTimeout:
		return true
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return true
	case apiErr.StatusCode == 0 && apiErr.Type == ErrorTypeServerError:
		// Connection-level failures carry no status code.
		return true
	}
	return false
}

// RetryAfterOf returns the server-requested delay carried by err, or zero.
func RetryAfterOf(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
