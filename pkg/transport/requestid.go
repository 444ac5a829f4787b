package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type requestIDKey struct{}

// ContextWithRequestID returns a context carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID, or "" when none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID returns middleware that ensures each request carries an ID.
// An ID already in the context (from the X-Request-ID header) is kept.
func RequestID() Middleware {
	return func(next MessageCreator) MessageCreator {
		return MessageCreatorFunc(func(ctx context.Context, req *MessageRequest, w EventWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.CreateMessage(ctx, req, w)
		})
	}
}

// NewRequestID creates a random "msg_" prefixed hex ID.
func NewRequestID() string {
	return randomID("msg_")
}

// NewStreamID creates a random "stream_" prefixed hex ID. Unlike request
// IDs, stream IDs never come from the client.
func NewStreamID() string {
	return randomID("stream_")
}

func randomID(prefix string) string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return prefix + hex.EncodeToString(b[:])
}
