package confwhisper

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/debug"
	"github.com/rhuss/confwhisper/pkg/format"
	"github.com/rhuss/confwhisper/pkg/observability"
	"github.com/rhuss/confwhisper/pkg/ohttp"
	"github.com/rhuss/confwhisper/pkg/provider"
	"github.com/rhuss/confwhisper/pkg/provider/openaicompat"
	"github.com/rhuss/confwhisper/pkg/retry"
)

// Ensure Handler implements provider.Handler.
var (
	_ provider.Handler     = (*Handler)(nil)
	_ provider.ModelLister = (*Handler)(nil)
)

const defaultReasoningEffort = "medium"

// Handler streams completions from one configured backend. It is safe for
// concurrent use; its configuration is fixed at construction.
type Handler struct {
	opts   Options
	policy retry.Policy
	client *openaicompat.Client
	ohttp  *ohttp.Pending
	logger *slog.Logger
}

// New creates a Handler. When OHTTP is configured, building the OHTTP
// client starts immediately in the background; with OHTTP.Wrap set, the
// first backend request waits for it. Without OHTTP there is no key
// source to build a client from, so none is started and OHTTP reports
// nil.
func New(opts Options) *Handler {
	opts = opts.clone()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy := retry.DefaultPolicy()
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	h := &Handler{opts: opts, policy: policy, logger: logger}

	transport := opts.Transport
	if opts.OHTTP != nil {
		h.ohttp = ohttp.Builder{Config: *opts.OHTTP, Logger: logger}.Start(context.Background())
		if opts.OHTTP.Wrap {
			transport = &ohttp.Transport{Pending: h.ohttp, Base: transport}
		}
	}

	h.client = openaicompat.NewClient(openaicompat.ClientConfig{
		BaseURL:   opts.BaseURL,
		APIKey:    opts.APIKey,
		Headers:   opts.Headers,
		Transport: transport,
		Logger:    logger,
	})
	return h
}

// Name returns the provider identifier.
func (h *Handler) Name() string {
	return "confwhisper"
}

// GetModel returns the configured model, falling back to api.DefaultModelID
// and api.SaneModelInfoDefaults.
func (h *Handler) GetModel() provider.Model {
	m := provider.Model{ID: h.opts.ModelID, Info: api.SaneModelInfoDefaults()}
	if m.ID == "" {
		m.ID = api.DefaultModelID
	}
	if h.opts.ModelInfo != nil {
		m.Info = *h.opts.ModelInfo
	}
	return m
}

// OHTTP returns the pending OHTTP client, or nil when OHTTP is off.
func (h *Handler) OHTTP() *ohttp.Pending {
	return h.ohttp
}

func isReasonerFamily(modelID string) bool {
	return strings.Contains(modelID, "deepseek-reasoner")
}

func isReasoningFamily(modelID string) bool {
	return strings.Contains(modelID, "o1") || strings.Contains(modelID, "o3") || strings.Contains(modelID, "o4")
}

// BuildRequest returns the streaming request CreateMessage sends. It does
// no I/O.
func (h *Handler) BuildRequest(systemPrompt string, messages []api.Message) openaicompat.ChatCompletionRequest {
	modelID := h.opts.ModelID
	info := h.opts.ModelInfo

	req := openaicompat.ChatCompletionRequest{
		Model:         modelID,
		Stream:        true,
		StreamOptions: &openaicompat.ChatStreamOptions{IncludeUsage: true},
	}

	req.Messages = append([]openaicompat.ChatMessage{{Role: openaicompat.RoleSystem, Content: systemPrompt}}, format.ToOpenAI(messages)...)

	temperature := *api.SaneModelInfoDefaults().Temperature
	if info != nil && info.Temperature != nil {
		temperature = *info.Temperature
	}
	req.Temperature = &temperature

	if info != nil && info.MaxTokens > 0 {
		maxTokens := info.MaxTokens
		req.MaxTokens = &maxTokens
	}

	if isReasonerFamily(modelID) || (info != nil && info.IsR1FormatRequired) {
		req.Messages = format.ToR1(append([]api.Message{api.NewTextMessage(api.RoleUser, systemPrompt)}, messages...))
	}

	// Reasoning models take a developer prompt and no temperature. This
	// overrides the R1 layout.
	if isReasoningFamily(modelID) {
		req.Messages = append([]openaicompat.ChatMessage{{Role: openaicompat.RoleDeveloper, Content: systemPrompt}}, format.ToOpenAI(messages)...)
		req.Temperature = nil
		effort := h.opts.ReasoningEffort
		if effort == "" {
			effort = defaultReasoningEffort
		}
		req.ReasoningEffort = &effort
	}

	return req
}

// CreateMessage streams a completion. Nothing is sent until the caller
// starts ranging over the result. Opening the stream is retried according
// to the handler's policy; once the first chunk has been received, failures
// end the sequence with an error and are not retried.
func (h *Handler) CreateMessage(ctx context.Context, systemPrompt string, messages []api.Message) iter.Seq2[api.StreamEvent, error] {
	return func(yield func(api.StreamEvent, error) bool) {
		model := h.GetModel().ID
		start := time.Now()

		policy := h.policy
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			observability.ProviderRetriesTotal.WithLabelValues(model).Inc()
			h.logger.Warn("retrying backend request",
				"model", model,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err.Error(),
			)
			if h.policy.OnRetry != nil {
				h.policy.OnRetry(attempt, err, delay)
			}
		}

		stream, err := retry.Do(ctx, policy, func(ctx context.Context) (*openaicompat.ChunkStream, error) {
			req := h.BuildRequest(systemPrompt, messages)
			debug.Log("providers", "opening stream",
				"model", req.Model,
				"messages", len(req.Messages),
				"url", h.client.BaseURL()+"/chat/completions",
			)
			return h.client.OpenStream(ctx, &req)
		})
		observability.ProviderLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
		if err != nil {
			observability.ProviderRequestsTotal.WithLabelValues(model, "error").Inc()
			yield(api.StreamEvent{}, err)
			return
		}
		defer stream.Close()

		for chunk, err := range stream.Chunks() {
			if err != nil {
				observability.ProviderRequestsTotal.WithLabelValues(model, "error").Inc()
				yield(api.StreamEvent{}, err)
				return
			}
			for _, ev := range openaicompat.ChunkEvents(chunk) {
				debug.Log("streaming", "event", "type", ev.Type)
				observability.RecordStreamEvent(model, ev)
				if !yield(ev, nil) {
					return
				}
			}
		}
		observability.ProviderRequestsTotal.WithLabelValues(model, "success").Inc()
	}
}

// ListModels returns the model IDs advertised by the backend.
func (h *Handler) ListModels(ctx context.Context) ([]string, error) {
	models, err := h.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids, nil
}

// Close releases idle connections.
func (h *Handler) Close() error {
	return h.client.Close()
}

