package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/chunker"
	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/metrics"
	"github.com/agu-rag/backend/internal/storage/models"
	"github.com/agu-rag/backend/internal/storage/sqlite"
	"github.com/agu-rag/backend/internal/vector"
	"github.com/agu-rag/backend/pkg/logger"
	"github.com/agu-rag/backend/pkg/utils"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type LanguageDetector interface {
	Detect(text string) language.Tag
}

// Stats summarizes one indexing run.
type Stats struct {
	Documents int
	Chunks    int
	Skipped   int
}

// Processor turns loaded documents into indexed knowledge: chunk, tag
// language, embed, upsert. Chunk ids are derived from document origins, so
// running the same corpus twice overwrites instead of duplicating.
type Processor struct {
	chunker  *chunker.Chunker
	detector LanguageDetector
	embedder Embedder
	store    vector.Store
	registry *sqlite.Client
}

func NewProcessor(ch *chunker.Chunker, detector LanguageDetector, embedder Embedder, store vector.Store, registry *sqlite.Client) *Processor {
	return &Processor{
		chunker:  ch,
		detector: detector,
		embedder: embedder,
		store:    store,
		registry: registry,
	}
}

// BuildIndex chunks and embeds every document and upserts the results into
// the knowledge store. Documents that yield no chunks are counted and
// skipped, never fatal.
func (p *Processor) BuildIndex(ctx context.Context, docs []knowledge.Document) (*Stats, error) {
	stats := &Stats{}
	var chunks []knowledge.Chunk

	for _, doc := range docs {
		docChunks, err := p.chunker.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk document %s: %w", doc.Origin(), err)
		}
		if len(docChunks) == 0 {
			logger.Debug("Document yielded no chunks", zap.String("origin", doc.Origin()))
			stats.Skipped++
			continue
		}

		for i := range docChunks {
			if docChunks[i].Lang == language.Unknown {
				docChunks[i].Lang = p.detector.Detect(docChunks[i].Text)
			}
		}

		stats.Documents++
		metrics.DocumentsIngested.WithLabelValues(string(doc.SourceType)).Inc()
		chunks = append(chunks, docChunks...)

		if p.registry != nil {
			p.recordDocument(doc, docChunks)
		}
	}

	if len(chunks) == 0 {
		logger.Warn("Indexing produced no chunks", zap.Int("documents", len(docs)))
		return stats, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	entries := make([]vector.Entry, len(chunks))
	for i := range chunks {
		entries[i] = vector.Entry{Chunk: chunks[i], Vector: vectors[i]}
	}

	if err := p.store.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to upsert chunks: %w", err)
	}

	stats.Chunks = len(chunks)
	metrics.ChunksIndexed.Add(float64(len(chunks)))

	logger.Info("Index built",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("skipped", stats.Skipped),
	)

	return stats, nil
}

// recordDocument mirrors the indexed content into the SQLite registry.
// Registry failures are logged, not fatal: the knowledge store is the
// system of record for retrieval.
func (p *Processor) recordDocument(doc knowledge.Document, chunks []knowledge.Chunk) {
	now := time.Now()
	docID := utils.HashString(doc.Origin())

	err := p.registry.UpsertDocument(&models.Document{
		ID:         docID,
		Source:     doc.Source,
		SourceType: string(doc.SourceType),
		Lang:       string(doc.Lang),
		Content:    doc.Content,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		logger.Warn("Failed to register document", zap.String("origin", doc.Origin()), zap.Error(err))
		return
	}

	for _, c := range chunks {
		err := p.registry.UpsertChunk(&models.DocumentChunk{
			ID:         c.ID,
			DocID:      docID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			CreatedAt:  now,
		})
		if err != nil {
			logger.Warn("Failed to register chunk", zap.String("chunk_id", c.ID), zap.Error(err))
		}
	}
}
