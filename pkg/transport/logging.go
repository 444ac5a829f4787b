package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/confwhisper/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// completion with request ID, conversation length, event count and
// duration.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next MessageCreator) MessageCreator {
		return MessageCreatorFunc(func(ctx context.Context, req *MessageRequest, w EventWriter) error {
			start := time.Now()
			cw := &countingWriter{EventWriter: w}

			err := next.CreateMessage(ctx, req, cw)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.Int("messages", len(req.Messages)),
				slog.Int("events", cw.events),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "message failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "message completed", attrs...)
			}
			return err
		})
	}
}

type countingWriter struct {
	EventWriter
	events int
}

func (w *countingWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	err := w.EventWriter.WriteEvent(ctx, event)
	if err == nil {
		w.events++
	}
	return err
}
