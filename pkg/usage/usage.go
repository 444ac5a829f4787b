// Package usage accounts token usage reported by the backend to the
// authenticated subject that requested it.
//
// Ledger implementations (memory, postgres) live in subpackages. This
// package holds the shared types and the no-op ledger.
package usage

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrInvalidRecord is returned for records without subject or with
// negative token counts.
var ErrInvalidRecord = errors.New("invalid usage record")

// Record is one usage report of a completed (or abandoned) stream.
type Record struct {
	Subject      string
	Model        string
	InputTokens  int
	OutputTokens int
	At           time.Time
}

// Validate checks the record invariants.
func (r Record) Validate() error {
	if r.Subject == "" || r.InputTokens < 0 || r.OutputTokens < 0 {
		return ErrInvalidRecord
	}
	return nil
}

// ModelTotals aggregates usage of one model.
type ModelTotals struct {
	Model        string `json:"model" yaml:"model"`
	Requests     int64  `json:"requests" yaml:"requests"`
	InputTokens  int64  `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int64  `json:"output_tokens" yaml:"output_tokens"`
}

// Totals aggregates all usage of a subject.
type Totals struct {
	Subject      string        `json:"subject" yaml:"subject"`
	Requests     int64         `json:"requests" yaml:"requests"`
	InputTokens  int64         `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int64         `json:"output_tokens" yaml:"output_tokens"`
	Models       []ModelTotals `json:"models" yaml:"models"`
}

// Sum fills the subject-wide counters from Models and orders Models by name.
func (t *Totals) Sum() {
	t.Requests, t.InputTokens, t.OutputTokens = 0, 0, 0
	sort.Slice(t.Models, func(i, j int) bool { return t.Models[i].Model < t.Models[j].Model })
	for _, m := range t.Models {
		t.Requests += m.Requests
		t.InputTokens += m.InputTokens
		t.OutputTokens += m.OutputTokens
	}
}

// Ledger stores usage records and reports per-subject totals. Totals of an
// unknown subject are zero, not an error.
type Ledger interface {
	Record(ctx context.Context, rec Record) error
	Totals(ctx context.Context, subject string) (Totals, error)
	Close() error
}

// Nop discards all records.
type Nop struct{}

func (Nop) Record(_ context.Context, rec Record) error { return rec.Validate() }

func (Nop) Totals(_ context.Context, subject string) (Totals, error) {
	return Totals{Subject: subject, Models: []ModelTotals{}}, nil
}

func (Nop) Close() error { return nil }
