package usage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotals_Sum(t *testing.T) {
	tot := Totals{Models: []ModelTotals{
		{Model: "b", Requests: 1, InputTokens: 2, OutputTokens: 3},
		{Model: "a", Requests: 2, InputTokens: 4, OutputTokens: 6},
	}}
	tot.Sum()

	assert.Equal(t, "a", tot.Models[0].Model)
	assert.Equal(t, int64(3), tot.Requests)
	assert.Equal(t, int64(6), tot.InputTokens)
	assert.Equal(t, int64(9), tot.OutputTokens)
}

func TestNop(t *testing.T) {
	var l Ledger = Nop{}
	require.NoError(t, l.Record(context.Background(), Record{Subject: "alice", InputTokens: 1}))
	assert.ErrorIs(t, l.Record(context.Background(), Record{}), ErrInvalidRecord)

	tot, err := l.Totals(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, tot.Requests)
	assert.NoError(t, l.Close())
}
