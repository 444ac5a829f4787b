package transport

import (
	"context"
	"fmt"

	"github.com/rhuss/confwhisper/pkg/api"
)

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	System   string        `json:"system"`
	Messages []api.Message `json:"messages"`
}

// Validate checks that the conversation is usable.
func (r *MessageRequest) Validate() *api.APIError {
	if len(r.Messages) == 0 {
		return api.NewInvalidRequestError("messages", "at least one message is required")
	}
	for i, m := range r.Messages {
		if len(m.Content) == 0 {
			return api.NewInvalidRequestError(fmt.Sprintf("messages[%d].content", i), "content must not be empty")
		}
	}
	return nil
}

// MessageCreator streams the completion for a request into w. An error
// returned before the first WriteEvent is reported as a plain error
// response; afterwards it is reported in-stream.
type MessageCreator interface {
	CreateMessage(ctx context.Context, req *MessageRequest, w EventWriter) error
}

// MessageCreatorFunc is an adapter that allows using an ordinary function
// as a MessageCreator.
type MessageCreatorFunc func(ctx context.Context, req *MessageRequest, w EventWriter) error

// CreateMessage calls f(ctx, req, w).
func (f MessageCreatorFunc) CreateMessage(ctx context.Context, req *MessageRequest, w EventWriter) error {
	return f(ctx, req, w)
}

// EventWriter abstracts the outgoing event stream.
type EventWriter interface {
	// WriteEvent sends one event. It fails after Close or once the client
	// has gone away.
	WriteEvent(ctx context.Context, event api.StreamEvent) error

	// Flush ensures buffered data is sent to the client.
	Flush() error
}
