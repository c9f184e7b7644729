package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestIndex(t *testing.T) *Chromem {
	t.Helper()
	idx, err := NewChromem(Config{VectorSize: 3}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func unit(x, y, z float32) []float32 { return []float32{x, y, z} }

func TestChromemQueryNearestFirst(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "near", Vector: unit(1, 0, 0), ErrorType: "TypeError", SolutionCount: 2}))
	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "far", Vector: unit(0, 1, 0), ErrorType: "TypeError", SolutionCount: 1}))

	hits, err := idx.Query(ctx, unit(0.9, 0.1, 0), 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].BugID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestChromemQuerySkipsUnsolvedBugs(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "solved", Vector: unit(1, 0, 0), ErrorType: "TypeError", SolutionCount: 1}))
	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "unsolved", Vector: unit(1, 0, 0), ErrorType: "TypeError", SolutionCount: 0}))

	hits, err := idx.Query(ctx, unit(1, 0, 0), 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "solved", hits[0].BugID)
}

func TestChromemQueryErrorTypeFilter(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "te", Vector: unit(1, 0, 0), ErrorType: "TypeError", SolutionCount: 1}))
	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "ie", Vector: unit(1, 0, 0), ErrorType: "ImportError", SolutionCount: 1}))

	hits, err := idx.Query(ctx, unit(1, 0, 0), 10, "ImportError")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ie", hits[0].BugID)
}

func TestChromemUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "b", Vector: unit(1, 0, 0), ErrorType: "TypeError", SolutionCount: 0}))

	hits, err := idx.Query(ctx, unit(1, 0, 0), 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits, "bug with no solutions must not surface")

	// First solution arrives; the entry is re-upserted with the new count.
	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "b", Vector: unit(1, 0, 0), ErrorType: "TypeError", SolutionCount: 1}))

	hits, err = idx.Query(ctx, unit(1, 0, 0), 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].BugID)
}

func TestChromemDelete(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upsert(ctx, Entry{BugID: "b", Vector: unit(1, 0, 0), ErrorType: "TypeError", SolutionCount: 1}))
	require.NoError(t, idx.Delete(ctx, "b"))

	hits, err := idx.Query(ctx, unit(1, 0, 0), 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChromemRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	err := idx.Upsert(ctx, Entry{BugID: "b", Vector: []float32{1, 0}, SolutionCount: 1})
	assert.ErrorIs(t, err, ErrInvalidVector)

	_, err = idx.Query(ctx, []float32{1, 0}, 10, "")
	assert.ErrorIs(t, err, ErrInvalidVector)
}

func TestChromemEmptyIndexQuery(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Query(context.Background(), unit(1, 0, 0), 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "bogus"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
