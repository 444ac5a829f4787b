package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/transport"
)

// writerState tracks the state of an SSE event writer.
type writerState int

const (
	writerIdle      writerState = iota // no bytes written yet
	writerStreaming                    // headers sent, events may follow
	writerCompleted                    // [DONE] sent
)

// errorEventType is the SSE event name of in-stream failures.
const errorEventType = "error"

// sseEventWriter implements transport.EventWriter over Server-Sent Events.
type sseEventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.EventWriter = (*sseEventWriter)(nil)

func newSSEEventWriter(w http.ResponseWriter) *sseEventWriter {
	return &sseEventWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteEvent sends a single event formatted as:
//
//	event: {type}\n
//	data: {json}\n
//	\n
func (s *sseEventWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFrame(string(event.Type), data)
}

// Flush ensures buffered data is sent to the client. It does nothing before
// the first event so an idle writer never commits headers without the SSE
// content type.
func (s *sseEventWriter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == writerIdle {
		return nil
	}
	return s.rc.Flush()
}

// Close terminates a successful stream with data: [DONE]. A stream without
// events still gets SSE headers so the client sees an empty, completed
// stream.
func (s *sseEventWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done()
}

// Fail reports apiErr inside the stream and terminates it.
func (s *sseEventWriter) Fail(apiErr *api.APIError) error {
	data, err := json.Marshal(api.ErrorResponse{Error: apiErr})
	if err != nil {
		return fmt.Errorf("failed to marshal error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeFrame(errorEventType, data); err != nil {
		return err
	}
	return s.done()
}

// hasStartedStreaming reports whether SSE headers have been sent.
func (s *sseEventWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}

func (s *sseEventWriter) start() {
	if s.state != writerIdle {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.state = writerStreaming
}

func (s *sseEventWriter) writeFrame(eventType string, data []byte) error {
	if s.state == writerCompleted {
		return errors.New("cannot write event: stream is completed")
	}
	s.start()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

func (s *sseEventWriter) done() error {
	if s.state == writerCompleted {
		return nil
	}
	s.start()
	s.state = writerCompleted
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("failed to write [DONE]: %w", err)
	}
	return s.rc.Flush()
}
