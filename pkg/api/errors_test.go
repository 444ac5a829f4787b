package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with param",
			&APIError{Type: ErrorTypeInvalidRequest, Param: "model", Message: "is required"},
			"invalid_request: is required (param: model)",
		},
		{
			"without param",
			&APIError{Type: ErrorTypeServerError, Message: "internal failure"},
			"server_error: internal failure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *APIError
		wantType  ErrorType
		wantParam string
	}{
		{"invalid request", NewInvalidRequestError("model", "is required"), ErrorTypeInvalidRequest, "model"},
		{"not found", NewNotFoundError("model not found"), ErrorTypeNotFound, ""},
		{"server error", NewServerError("internal failure"), ErrorTypeServerError, ""},
		{"model error", NewModelError("model overloaded"), ErrorTypeModelError, ""},
		{"too many requests", NewTooManyRequestsError("rate limit exceeded"), ErrorTypeTooManyRequests, ""},
		{"authentication", NewAuthenticationError("bad key"), ErrorTypeAuthenticationError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantParam, tt.err.Param)
		})
	}
}

func TestAPIErrorJSONOmitsTransportDetails(t *testing.T) {
	err := &APIError{
		Type:       ErrorTypeTooManyRequests,
		Message:    "slow down",
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: 3 * time.Second,
	}

	data, mErr := json.Marshal(ErrorResponse{Error: err})
	require.NoError(t, mErr)
	assert.JSONEq(t, `{"error":{"type":"too_many_requests","message":"slow down"}}`, string(data))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"rate limit", NewTooManyRequestsError("slow down"), true},
		{"wrapped rate limit", fmt.Errorf("opening stream: %w", NewTooManyRequestsError("slow down")), true},
		{"429 status on server error", &APIError{Type: ErrorTypeServerError, StatusCode: 429}, true},
		{"server error", &APIError{Type: ErrorTypeServerError, StatusCode: 503}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("reading: %w", context.DeadlineExceeded), false},
		{"rate limit", NewTooManyRequestsError("slow down"), true},
		{"timeout status", &APIError{Type: ErrorTypeServerError, StatusCode: http.StatusRequestTimeout}, true},
		{"bad gateway", &APIError{Type: ErrorTypeServerError, StatusCode: http.StatusBadGateway}, true},
		{"connection failure", NewServerError("backend connection error: refused"), true},
		{"bad request", &APIError{Type: ErrorTypeInvalidRequest, StatusCode: http.StatusBadRequest}, false},
		{"unauthorized", &APIError{Type: ErrorTypeAuthenticationError, StatusCode: http.StatusUnauthorized}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryAfterOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &APIError{Type: ErrorTypeTooManyRequests, RetryAfter: 2 * time.Second})
	assert.Equal(t, 2*time.Second, RetryAfterOf(err))
	assert.Zero(t, RetryAfterOf(errors.New("plain")))
}
