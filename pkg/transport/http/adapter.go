package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/auth"
	"github.com/rhuss/confwhisper/pkg/observability"
	"github.com/rhuss/confwhisper/pkg/provider"
	"github.com/rhuss/confwhisper/pkg/transport"
	"github.com/rhuss/confwhisper/pkg/usage"
)

// Service is the backend of the HTTP adapter. gateway.Gateway implements it.
type Service interface {
	transport.MessageCreator
	Model() provider.Model
	ListModels(ctx context.Context) ([]string, error)
	Usage(ctx context.Context) (usage.Totals, error)
}

// StreamIDHeader carries the ID used to cancel a stream through
// DELETE /v1/messages/{id}.
const StreamIDHeader = "X-Stream-ID"

// Adapter serves the confwhisper gateway API over HTTP.
type Adapter struct {
	service  Service
	creator  transport.MessageCreator
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64

	// Auth guards every endpoint except the bypass list. Nil admits all
	// requests as anonymous.
	Auth        *auth.Chain
	RateLimiter auth.RateLimiter

	// MetricsHandler is mounted at MetricsPath when both are set.
	MetricsHandler http.Handler
	MetricsPath    string

	Logger *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		MetricsPath: "/metrics",
	}
}

// NewAdapter creates an HTTP adapter for svc. Middleware is applied to the
// message creator in the given order.
func NewAdapter(svc Service, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	var creator transport.MessageCreator = svc
	if len(middlewares) > 0 {
		creator = transport.Chain(middlewares...)(creator)
	}

	a := &Adapter{
		service:  svc,
		creator:  creator,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("POST /v1/messages", a.handleCreateMessage)
	a.mux.HandleFunc("DELETE /v1/messages/{id}", a.handleCancelMessage)
	a.mux.HandleFunc("GET /v1/model", a.handleGetModel)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)
	a.mux.HandleFunc("GET /v1/usage", a.handleGetUsage)
	a.mux.HandleFunc("GET /healthz", handleHealth)
	a.mux.HandleFunc("GET /readyz", handleHealth)
	if cfg.MetricsHandler != nil && cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, cfg.MetricsHandler)
	}

	return a
}

// Handler returns the http.Handler for this adapter, wrapped with metrics,
// request ID propagation and authentication.
func (a *Adapter) Handler() http.Handler {
	var h http.Handler = a.mux
	chain := a.config.Auth
	if chain == nil {
		chain = auth.Open()
	}
	bypass := auth.DefaultBypassEndpoints
	if a.config.MetricsPath != "" {
		bypass = append([]string{a.config.MetricsPath}, bypass...)
	}
	h = auth.Middleware(chain, a.config.RateLimiter, bypass)(h)
	h = httpRequestIDMiddleware(h)
	return observability.MetricsMiddleware(h)
}

// httpRequestIDMiddleware takes the X-Request-ID header or generates an ID,
// stores it in the context and echoes it in the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// handleCreateMessage handles POST /v1/messages.
func (a *Adapter) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req transport.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}
	if apiErr := req.Validate(); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := transport.RequestIDFromContext(ctx)
	streamID := transport.NewStreamID()
	if !a.inflight.Register(streamID, auth.Subject(ctx), cancel) {
		transport.WriteErrorResponse(w,
			api.NewServerError("stream id "+streamID+" already in use"),
			http.StatusConflict,
		)
		return
	}
	defer a.inflight.Remove(streamID)
	w.Header().Set(StreamIDHeader, streamID)

	sw := newSSEEventWriter(w)
	if err := a.creator.CreateMessage(ctx, &req, sw); err != nil {
		a.writeHandlerError(r, w, sw, err)
		return
	}
	if err := sw.Close(); err != nil {
		a.config.Logger.Debug("failed to finish stream", "request_id", id, "error", err)
	}
}

// handleCancelMessage handles DELETE /v1/messages/{id}, where id is the
// X-Stream-ID of the stream. Only the subject that started a stream may
// cancel it.
func (a *Adapter) handleCancelMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if a.inflight.Cancel(id, auth.Subject(r.Context())) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	transport.WriteAPIError(w, api.NewNotFoundError("no active stream "+id))
}

// handleGetModel handles GET /v1/model.
func (a *Adapter) handleGetModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.service.Model())
}

// modelList is the body of GET /v1/models.
type modelList struct {
	Object string   `json:"object"`
	Data   []string `json:"data"`
}

// handleListModels handles GET /v1/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.service.ListModels(r.Context())
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	writeJSON(w, modelList{Object: "list", Data: models})
}

// handleGetUsage handles GET /v1/usage.
func (a *Adapter) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	totals, err := a.service.Usage(r.Context())
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}
	writeJSON(w, totals)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeHandlerError reports a failure of the message creator. Before the
// first event it is a JSON error response; afterwards an error event.
func (a *Adapter) writeHandlerError(r *http.Request, w http.ResponseWriter, sw *sseEventWriter, err error) {
	if r.Context().Err() != nil {
		// Client went away; nobody is listening.
		return
	}

	apiErr := transport.AsAPIError(err)
	if errors.Is(err, context.Canceled) {
		apiErr = &api.APIError{Type: api.ErrorTypeInvalidRequest, Code: "cancelled", Message: "stream cancelled"}
	}

	// A cancelled stream is reported in-stream even without prior events.
	if sw.hasStartedStreaming() || apiErr.Code == "cancelled" {
		if werr := sw.Fail(apiErr); werr != nil {
			a.config.Logger.Debug("failed to write error event", "error", werr)
		}
		return
	}
	transport.WriteAPIError(w, apiErr)
}
