package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistory_RecentNewestFirst(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Record(ctx, RunRecord{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	recs, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "a", recs[2].ID)

	recs, err = h.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestMemoryHistory_Wraps(t *testing.T) {
	h := NewMemoryHistory(2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, h.Record(ctx, RunRecord{ID: id}))
	}

	recs, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestMemoryHistory_Prune(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()
	now := time.Now()

	// Wrap the ring so pruning has to handle a rotated buffer.
	for i, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour, time.Minute} {
		require.NoError(t, h.Record(ctx, RunRecord{ID: string(rune('a' + i)), CreatedAt: now.Add(-age)}))
	}

	removed, err := h.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	recs, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "d", recs[0].ID)
	assert.Equal(t, "c", recs[1].ID)

	// The ring keeps accepting records after a prune.
	require.NoError(t, h.Record(ctx, RunRecord{ID: "e", CreatedAt: now}))
	recs, _ = h.Recent(ctx, 10)
	assert.Equal(t, []string{"e", "d", "c"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
}

func TestParseIPAddress(t *testing.T) {
	assert.Nil(t, parseIPAddress(""))
	assert.Nil(t, parseIPAddress("not-an-ip"))

	addr := parseIPAddress("203.0.113.7:54321")
	require.NotNil(t, addr)
	assert.Equal(t, "203.0.113.7", addr.String())

	addr = parseIPAddress("::1")
	require.NotNil(t, addr)
	assert.Equal(t, "::1", addr.String())
}
