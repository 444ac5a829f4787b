package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/openai/openai-go/packages/ssestream"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/debug"
)

var doneSentinel = []byte("[DONE]")

// ChunkStream is an open streaming Chat Completions response. Chunks are
// decoded lazily as the caller pulls them; nothing is read ahead.
type ChunkStream struct {
	ctx     context.Context
	resp    *http.Response
	decoder ssestream.Decoder
	logger  *slog.Logger

	closeOnce sync.Once
}

func newChunkStream(ctx context.Context, resp *http.Response, logger *slog.Logger) *ChunkStream {
	return &ChunkStream{
		ctx:     ctx,
		resp:    resp,
		decoder: ssestream.NewDecoder(resp),
		logger:  logger,
	}
}

// Chunks returns the decoded chunks as a single-use sequence. The sequence
// ends at the [DONE] sentinel or at end of body. The stream is closed when
// the sequence finishes or the caller stops iterating.
//
// Frames that are not valid JSON are logged and skipped. A frame carrying an
// "error" object ends the sequence with an error.
func (s *ChunkStream) Chunks() iter.Seq2[*ChatCompletionChunk, error] {
	return func(yield func(*ChatCompletionChunk, error) bool) {
		defer s.Close()

		if s.decoder == nil {
			return
		}

		for s.decoder.Next() {
			if err := s.ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			data := bytes.TrimSpace(s.decoder.Event().Data)
			if len(data) == 0 {
				continue
			}
			debug.Trace("streaming", "sse frame", "data", string(data))
			if bytes.Equal(data, doneSentinel) {
				return
			}

			var frame streamErrorFrame
			if json.Unmarshal(data, &frame) == nil && frame.Error != nil {
				yield(nil, api.NewServerError(fmt.Sprintf("backend stream error: %s", ExtractStreamErrorMessage(*frame.Error))))
				return
			}

			var chunk ChatCompletionChunk
			if err := json.Unmarshal(data, &chunk); err != nil {
				s.logger.Warn("skipping malformed SSE chunk",
					"error", err.Error(),
					"data", debug.Truncate(string(data), 200),
				)
				continue
			}

			if !yield(&chunk, nil) {
				return
			}
		}

		if err := s.decoder.Err(); err != nil {
			// Context cancellation is not a decoding failure from our perspective.
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				yield(nil, ctxErr)
				return
			}
			yield(nil, MapNetworkError(err))
		}
	}
}

// Close releases the response body. It is safe to call more than once.
func (s *ChunkStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.decoder != nil {
			err = s.decoder.Close()
			return
		}
		if s.resp != nil && s.resp.Body != nil {
			err = s.resp.Body.Close()
		}
	})
	return err
}

// ChunkEvents classifies one chunk into zero or more stream events. The
// checks are independent and run in a fixed order: text, reasoning, usage.
// Missing fields are treated as empty and missing token counts as zero.
func ChunkEvents(chunk *ChatCompletionChunk) []api.StreamEvent {
	if chunk == nil {
		return nil
	}

	var events []api.StreamEvent
	if len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		if delta.Content != nil && *delta.Content != "" {
			events = append(events, api.TextEvent(*delta.Content))
		}
		if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
			events = append(events, api.ReasoningEvent(*delta.ReasoningContent))
		}
	}
	if chunk.Usage != nil {
		events = append(events, api.UsageEvent(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens))
	}
	return events
}

// ExtractStreamErrorMessage pulls a message out of an in-stream error
// object, which backends send either as a string or as {"message": ...}.
func ExtractStreamErrorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

