package gateway

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/auth"
	"github.com/rhuss/confwhisper/pkg/observability"
	"github.com/rhuss/confwhisper/pkg/provider"
	"github.com/rhuss/confwhisper/pkg/transport"
	"github.com/rhuss/confwhisper/pkg/usage"
	"github.com/rhuss/confwhisper/pkg/usage/memory"
)

type fakeHandler struct {
	events []api.StreamEvent
	err    error

	gotSystem   string
	gotMessages []api.Message
}

func (h *fakeHandler) CreateMessage(_ context.Context, system string, messages []api.Message) iter.Seq2[api.StreamEvent, error] {
	h.gotSystem, h.gotMessages = system, messages
	return func(yield func(api.StreamEvent, error) bool) {
		for _, ev := range h.events {
			if !yield(ev, nil) {
				return
			}
		}
		if h.err != nil {
			yield(api.StreamEvent{}, h.err)
		}
	}
}

func (h *fakeHandler) GetModel() provider.Model {
	return provider.Model{ID: "deepseek-ai/DeepSeek-R1", Info: api.SaneModelInfoDefaults()}
}

type listingHandler struct{ fakeHandler }

func (h *listingHandler) ListModels(context.Context) ([]string, error) {
	return []string{"a", "b"}, nil
}

type sliceWriter struct {
	events  []api.StreamEvent
	flushed bool
	failAt  int
}

func (w *sliceWriter) WriteEvent(_ context.Context, ev api.StreamEvent) error {
	if w.failAt > 0 && len(w.events) == w.failAt {
		return errors.New("client gone")
	}
	w.events = append(w.events, ev)
	return nil
}

func (w *sliceWriter) Flush() error {
	w.flushed = true
	return nil
}

type failingLedger struct{ usage.Nop }

func (failingLedger) Record(context.Context, usage.Record) error { return errors.New("db down") }

func aliceCtx() context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{Subject: "alice"})
}

func request() *transport.MessageRequest {
	return &transport.MessageRequest{
		System:   "be brief",
		Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hello")},
	}
}

func TestNew_NilHandler(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestCreateMessage_StreamsAndRecordsUsage(t *testing.T) {
	h := &fakeHandler{events: []api.StreamEvent{
		api.ReasoningEvent("thinking"),
		api.TextEvent("Hel"),
		api.TextEvent("lo"),
		api.UsageEvent(12, 3),
	}}
	ledger := memory.New()
	g, err := New(h, ledger, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w := &sliceWriter{}
	if err := g.CreateMessage(aliceCtx(), request(), w); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if len(w.events) != 4 {
		t.Fatalf("events = %d, want 4", len(w.events))
	}
	if !w.flushed {
		t.Error("writer not flushed")
	}
	if h.gotSystem != "be brief" || len(h.gotMessages) != 1 {
		t.Errorf("handler got system=%q messages=%d", h.gotSystem, len(h.gotMessages))
	}

	totals, err := g.Usage(aliceCtx())
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if totals.Requests != 1 || totals.InputTokens != 12 || totals.OutputTokens != 3 {
		t.Errorf("totals = %+v", totals)
	}
	if len(totals.Models) != 1 || totals.Models[0].Model != "deepseek-ai/DeepSeek-R1" {
		t.Errorf("models = %+v", totals.Models)
	}
}

func TestCreateMessage_AnonymousSubject(t *testing.T) {
	h := &fakeHandler{events: []api.StreamEvent{api.UsageEvent(1, 1)}}
	ledger := memory.New()
	g, _ := New(h, ledger, nil)

	if err := g.CreateMessage(context.Background(), request(), &sliceWriter{}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	totals, _ := ledger.Totals(context.Background(), auth.Anonymous)
	if totals.Requests != 1 {
		t.Errorf("anonymous requests = %d, want 1", totals.Requests)
	}
}

func TestCreateMessage_InvalidRequest(t *testing.T) {
	h := &fakeHandler{}
	g, _ := New(h, nil, nil)

	err := g.CreateMessage(aliceCtx(), &transport.MessageRequest{}, &sliceWriter{})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Fatalf("err = %v, want invalid_request", err)
	}
	if h.gotMessages != nil {
		t.Error("handler must not be called for an invalid request")
	}
}

func TestCreateMessage_BackendErrorAfterUsage(t *testing.T) {
	h := &fakeHandler{
		events: []api.StreamEvent{api.TextEvent("partial"), api.UsageEvent(5, 1)},
		err:    api.NewServerError("stream broke"),
	}
	ledger := memory.New()
	g, _ := New(h, ledger, nil)

	w := &sliceWriter{}
	err := g.CreateMessage(aliceCtx(), request(), w)
	if err == nil {
		t.Fatal("expected backend error")
	}
	if w.flushed {
		t.Error("failed stream should not be flushed as complete")
	}
	totals, _ := ledger.Totals(context.Background(), "alice")
	if totals.InputTokens != 5 {
		t.Errorf("usage seen before the failure should be recorded, got %+v", totals)
	}
}

func TestCreateMessage_ClientGone(t *testing.T) {
	h := &fakeHandler{events: []api.StreamEvent{api.TextEvent("a"), api.TextEvent("b"), api.UsageEvent(1, 2)}}
	ledger := memory.New()
	g, _ := New(h, ledger, nil)

	w := &sliceWriter{failAt: 1}
	if err := g.CreateMessage(aliceCtx(), request(), w); err == nil {
		t.Fatal("expected write error")
	}
	totals, _ := ledger.Totals(context.Background(), "alice")
	if totals.Requests != 0 {
		t.Errorf("no usage was reported before the client left, got %+v", totals)
	}
}

func TestCreateMessage_LedgerFailureIsNotFatal(t *testing.T) {
	before := testutil.ToFloat64(observability.UsageRecordErrorsTotal)

	h := &fakeHandler{events: []api.StreamEvent{api.TextEvent("ok"), api.UsageEvent(1, 1)}}
	g, _ := New(h, failingLedger{}, nil)

	if err := g.CreateMessage(aliceCtx(), request(), &sliceWriter{}); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if got := testutil.ToFloat64(observability.UsageRecordErrorsTotal); got != before+1 {
		t.Errorf("usage record errors = %v, want %v", got, before+1)
	}
}

func TestListModels(t *testing.T) {
	g, _ := New(&fakeHandler{}, nil, nil)
	models, err := g.ListModels(context.Background())
	if err != nil || len(models) != 1 || models[0] != "deepseek-ai/DeepSeek-R1" {
		t.Errorf("ListModels = %v, %v", models, err)
	}

	g, _ = New(&listingHandler{}, nil, nil)
	models, err = g.ListModels(context.Background())
	if err != nil || len(models) != 2 {
		t.Errorf("ListModels = %v, %v", models, err)
	}
}
