package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/observability"
)

// DefaultBypassEndpoints are served without authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

const defaultRetryAfter = time.Minute

// Middleware authenticates every request except those for the bypass paths.
// Rejected callers get 401, callers over their limit get 429 with a
// Retry-After header, and accepted requests continue with the identity in
// their context. A nil limiter disables rate limiting.
func Middleware(chain *Chain, limiter RateLimiter, bypassPaths []string) func(http.Handler) http.Handler {
	bypass := make(map[string]struct{}, len(bypassPaths))
	for _, p := range bypassPaths {
		bypass[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bypass[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Vote != Yes || res.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"vote", res.Vote.String(),
					"error", res.Err,
				)
				writeError(w, http.StatusUnauthorized, api.NewAuthenticationError("authentication required"))
				return
			}
			id := res.Identity
			if id.Subject == "" {
				slog.Error("authenticator accepted an identity without subject", "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, api.NewServerError("internal authentication error"))
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					rejectLimited(w, id, err)
					return
				}
			}

			slog.Debug("authenticated", "subject", id.Subject, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func rejectLimited(w http.ResponseWriter, id *Identity, err error) {
	tier := id.ServiceTier
	if tier == "" {
		tier = "default"
	}
	retryAfter := defaultRetryAfter
	var limitErr *LimitError
	if errors.As(err, &limitErr) && limitErr.RetryAfter > 0 {
		retryAfter = limitErr.RetryAfter
	}
	slog.Warn("rate limit exceeded",
		"subject", id.Subject,
		"tier", tier,
		"retry_after", retryAfter.String(),
	)
	observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()

	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	apiErr := api.NewTooManyRequestsError("rate limit exceeded")
	apiErr.RetryAfter = retryAfter
	writeError(w, http.StatusTooManyRequests, apiErr)
}

func writeError(w http.ResponseWriter, status int, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}
