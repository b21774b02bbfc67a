// Package memory is a brute-force in-process Store used by tests and local
// development. It honors the same ordering and replace-by-id contract as
// the Milvus-backed store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/vector"
)

type Store struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]vector.Entry
}

func NewStore(dim int) *Store {
	return &Store{
		dim:     dim,
		entries: make(map[string]vector.Entry),
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Upsert(_ context.Context, entries []vector.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != s.dim {
			return fmt.Errorf("vector dimension mismatch for chunk %s: got %d, expected %d", e.Chunk.ID, len(e.Vector), s.dim)
		}
		s.entries[e.Chunk.ID] = e
	}
	return nil
}

func (s *Store) Search(_ context.Context, vec []float32, k int) ([]knowledge.ScoredChunk, error) {
	if len(vec) != s.dim {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d, expected %d", len(vec), s.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]knowledge.ScoredChunk, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, knowledge.ScoredChunk{
			Chunk: e.Chunk,
			Score: dot(e.Vector, vec),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
