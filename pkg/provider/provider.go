package provider

import (
	"context"
	"iter"

	"github.com/rhuss/confwhisper/pkg/api"
)

// Handler abstracts a model backend that streams chat completions. Each
// adapter handles its own backend protocol internally and yields normalized
// stream events.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Handler interface {
	// CreateMessage streams a completion for the given system prompt and
	// conversation. The returned sequence is lazy: no network call is made
	// until the caller starts ranging over it, and stopping the range
	// releases the underlying connection. A non-nil error is always the
	// final element.
	CreateMessage(ctx context.Context, systemPrompt string, messages []api.Message) iter.Seq2[api.StreamEvent, error]

	// GetModel returns the model this handler is configured for.
	GetModel() Model
}

// Model identifies the backend model and its metadata.
type Model struct {
	ID   string        `json:"id" yaml:"id"`
	Info api.ModelInfo `json:"info" yaml:"info"`
}

// ModelLister is implemented by handlers that can enumerate backend models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
