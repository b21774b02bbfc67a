package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/vector"
)

func entry(id string, vec []float32) vector.Entry {
	return vector.Entry{
		Chunk:  knowledge.Chunk{ID: id, Text: "text-" + id, Source: "https://example.edu/" + id},
		Vector: vec,
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Entry{entry("a", []float32{1, 0})}))
	require.NoError(t, s.Upsert(ctx, []vector.Entry{entry("a", []float32{0, 1})}))

	assert.Equal(t, 1, s.Len())

	results, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	s := NewStore(3)
	err := s.Upsert(context.Background(), []vector.Entry{entry("a", []float32{1, 0})})
	assert.Error(t, err)
}

func TestSearchOrdersByScoreDescending(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Entry{
		entry("far", []float32{0, 1}),
		entry("near", []float32{1, 0}),
		entry("between", []float32{0.7071, 0.7071}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Chunk.ID)
	assert.Equal(t, "between", results[1].Chunk.ID)
	assert.Equal(t, "far", results[2].Chunk.ID)
}

func TestSearchBreaksTiesByChunkID(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Entry{
		entry("b", []float32{1, 0}),
		entry("a", []float32{1, 0}),
		entry("c", []float32{1, 0}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "b", results[1].Chunk.ID)
	assert.Equal(t, "c", results[2].Chunk.ID)
}

func TestSearchLimitsToK(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []vector.Entry{
		entry("a", []float32{1, 0}),
		entry("b", []float32{0.9, 0.1}),
		entry("c", []float32{0, 1}),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	none, err := s.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchEmptyStore(t *testing.T) {
	s := NewStore(2)
	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
