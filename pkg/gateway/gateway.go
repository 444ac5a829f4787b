package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/auth"
	"github.com/rhuss/confwhisper/pkg/observability"
	"github.com/rhuss/confwhisper/pkg/provider"
	"github.com/rhuss/confwhisper/pkg/transport"
	"github.com/rhuss/confwhisper/pkg/usage"
)

// Gateway implements transport.MessageCreator on top of a provider handler.
type Gateway struct {
	handler provider.Handler
	ledger  usage.Ledger
	logger  *slog.Logger
	now     func() time.Time
}

var _ transport.MessageCreator = (*Gateway)(nil)

// New creates a Gateway. The handler must not be nil. A nil ledger
// disables usage accounting.
func New(h provider.Handler, ledger usage.Ledger, logger *slog.Logger) (*Gateway, error) {
	if h == nil {
		return nil, fmt.Errorf("gateway: handler must not be nil")
	}
	if ledger == nil {
		ledger = usage.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{handler: h, ledger: ledger, logger: logger, now: time.Now}, nil
}

// CreateMessage streams the completion for req into w. Usage reported by
// the backend is recorded even when the client goes away mid-stream.
func (g *Gateway) CreateMessage(ctx context.Context, req *transport.MessageRequest, w transport.EventWriter) error {
	if apiErr := req.Validate(); apiErr != nil {
		return apiErr
	}

	var (
		last    api.StreamEvent
		hasUsed bool
	)
	defer func() {
		if hasUsed {
			g.record(ctx, last)
		}
	}()

	for ev, err := range g.handler.CreateMessage(ctx, req.System, req.Messages) {
		if err != nil {
			return err
		}
		if ev.Type == api.EventUsage {
			last, hasUsed = ev, true
		}
		if err := w.WriteEvent(ctx, ev); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (g *Gateway) record(ctx context.Context, ev api.StreamEvent) {
	rec := usage.Record{
		Subject:      auth.Subject(ctx),
		Model:        g.handler.GetModel().ID,
		InputTokens:  ev.InputTokens,
		OutputTokens: ev.OutputTokens,
		At:           g.now(),
	}
	if err := g.ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		observability.UsageRecordErrorsTotal.Inc()
		g.logger.Warn("failed to record usage",
			"request_id", transport.RequestIDFromContext(ctx),
			"subject", rec.Subject,
			"error", err,
		)
	}
}

// Model returns the configured backend model.
func (g *Gateway) Model() provider.Model {
	return g.handler.GetModel()
}

// ListModels returns the backend's model IDs, or just the configured model
// when the handler cannot enumerate them.
func (g *Gateway) ListModels(ctx context.Context) ([]string, error) {
	if lister, ok := g.handler.(provider.ModelLister); ok {
		return lister.ListModels(ctx)
	}
	return []string{g.handler.GetModel().ID}, nil
}

// Usage returns the accumulated usage of the caller.
func (g *Gateway) Usage(ctx context.Context) (usage.Totals, error) {
	return g.ledger.Totals(ctx, auth.Subject(ctx))
}
