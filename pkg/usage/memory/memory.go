// Package memory provides an in-memory usage ledger. Totals are lost when
// the process restarts.
package memory

import (
	"context"
	"sync"

	"github.com/rhuss/confwhisper/pkg/usage"
)

// Ledger keeps per-subject, per-model counters.
type Ledger struct {
	mu       sync.RWMutex
	subjects map[string]map[string]*usage.ModelTotals
}

var _ usage.Ledger = (*Ledger)(nil)

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{subjects: make(map[string]map[string]*usage.ModelTotals)}
}

// Record adds rec to the subject's totals.
func (l *Ledger) Record(_ context.Context, rec usage.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	models, ok := l.subjects[rec.Subject]
	if !ok {
		models = make(map[string]*usage.ModelTotals)
		l.subjects[rec.Subject] = models
	}
	m, ok := models[rec.Model]
	if !ok {
		m = &usage.ModelTotals{Model: rec.Model}
		models[rec.Model] = m
	}
	m.Requests++
	m.InputTokens += int64(rec.InputTokens)
	m.OutputTokens += int64(rec.OutputTokens)
	return nil
}

// Totals returns a snapshot of the subject's totals.
func (l *Ledger) Totals(_ context.Context, subject string) (usage.Totals, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t := usage.Totals{Subject: subject, Models: []usage.ModelTotals{}}
	for _, m := range l.subjects[subject] {
		t.Models = append(t.Models, *m)
	}
	t.Sum()
	return t, nil
}

// Close is a no-op.
func (l *Ledger) Close() error { return nil }
