package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/confwhisper/pkg/usage"
)

func TestLedger_Totals(t *testing.T) {
	ctx := context.Background()
	l := New()

	require.NoError(t, l.Record(ctx, usage.Record{Subject: "alice", Model: "deepseek-reasoner", InputTokens: 10, OutputTokens: 5}))
	require.NoError(t, l.Record(ctx, usage.Record{Subject: "alice", Model: "deepseek-reasoner", InputTokens: 3, OutputTokens: 2}))
	require.NoError(t, l.Record(ctx, usage.Record{Subject: "alice", Model: "o3-mini", InputTokens: 1, OutputTokens: 1}))
	require.NoError(t, l.Record(ctx, usage.Record{Subject: "bob", Model: "o3-mini", InputTokens: 100}))

	got, err := l.Totals(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, usage.Totals{
		Subject:      "alice",
		Requests:     3,
		InputTokens:  14,
		OutputTokens: 8,
		Models: []usage.ModelTotals{
			{Model: "deepseek-reasoner", Requests: 2, InputTokens: 13, OutputTokens: 7},
			{Model: "o3-mini", Requests: 1, InputTokens: 1, OutputTokens: 1},
		},
	}, got)
}

func TestLedger_UnknownSubject(t *testing.T) {
	got, err := New().Totals(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", got.Subject)
	assert.Zero(t, got.Requests)
	assert.Empty(t, got.Models)
}

func TestLedger_InvalidRecord(t *testing.T) {
	l := New()
	for _, rec := range []usage.Record{
		{Model: "m", InputTokens: 1},
		{Subject: "alice", InputTokens: -1},
		{Subject: "alice", OutputTokens: -1},
	} {
		err := l.Record(context.Background(), rec)
		assert.True(t, errors.Is(err, usage.ErrInvalidRecord), "record %+v: err = %v", rec, err)
	}
}

func TestLedger_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Record(ctx, usage.Record{Subject: "alice", Model: "m", InputTokens: 2, OutputTokens: 1})
		}()
	}
	wg.Wait()

	got, err := l.Totals(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Requests)
	assert.Equal(t, int64(100), got.InputTokens)
	assert.Equal(t, int64(50), got.OutputTokens)
}
