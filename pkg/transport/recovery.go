package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/confwhisper/pkg/api"
)

// Recovery returns middleware that converts a panic in the handler into a
// server error. The gateway keeps serving other requests.
func Recovery() Middleware {
	return func(next MessageCreator) MessageCreator {
		return MessageCreatorFunc(func(ctx context.Context, req *MessageRequest, w EventWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in message handler",
						"request_id", RequestIDFromContext(ctx),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.CreateMessage(ctx, req, w)
		})
	}
}
