// Package vector defines the Knowledge Store contract: persistence of
// chunk text, metadata and embedding vectors with nearest-neighbor lookup.
package vector

import (
	"context"
	"errors"

	"github.com/agu-rag/backend/internal/knowledge"
)

// ErrUnavailable wraps any condition under which the store cannot serve.
// Queries must abort on it: answering without the store would mean guessing.
var ErrUnavailable = errors.New("knowledge store unavailable")

// Entry is one persisted (chunk, vector) tuple. The vector dimension is
// fixed for the lifetime of the store; changing the embedding model means
// re-ingesting from scratch.
type Entry struct {
	Chunk  knowledge.Chunk
	Vector []float32
}

// Store persists entries keyed by chunk id and serves similarity search.
//
// Ordering contract: Search returns results by descending cosine similarity
// (vectors are L2-normalized, so inner product is cosine); equal scores are
// broken by ascending chunk id. Result count is at most k and at most the
// number of stored entries, with no duplicate chunk ids.
//
// Upsert replaces an existing chunk id atomically: a concurrent reader sees
// either the old entry or the new one, never a mix.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]knowledge.ScoredChunk, error)
}
