package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/confwhisper/pkg/api"
)

// HTTPStatusFromError maps an APIError to the status the gateway answers
// with. Server errors that carry a backend status are reported as 502,
// since the gateway itself worked.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeAuthenticationError:
		if err.StatusCode != 0 {
			return http.StatusBadGateway
		}
		return http.StatusUnauthorized
	case api.ErrorTypeServerError:
		if err.StatusCode != 0 {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AsAPIError returns err as an APIError, wrapping foreign errors as server
// errors.
func AsAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError(err.Error())
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error. A Retry-After delay carried by the error is forwarded.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", retryAfterSeconds(apiErr))
	}
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// retryAfterSeconds rounds the delay up to whole seconds.
func retryAfterSeconds(err *api.APIError) string {
	secs := int64((err.RetryAfter + time.Second - 1) / time.Second)
	return strconv.FormatInt(secs, 10)
}
