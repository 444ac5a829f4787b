package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks streaming requests by a server-generated stream ID
// so a client can cancel a stream it no longer needs through a separate
// request.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]inflight
}

type inflight struct {
	subject string
	cancel  context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{entries: make(map[string]inflight)}
}

// Register adds a stream owned by subject. It returns false and leaves the
// registry unchanged when id is already taken.
func (r *InFlightRegistry) Register(id, subject string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.entries[id]; taken {
		return false
	}
	r.entries[id] = inflight{subject: subject, cancel: cancel}
	return true
}

// Cancel cancels the stream if it exists and belongs to subject.
func (r *InFlightRegistry) Cancel(id, subject string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.subject != subject {
		return false
	}
	e.cancel()
	delete(r.entries, id)
	return true
}

// Remove drops a stream that finished on its own.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of registered streams.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
