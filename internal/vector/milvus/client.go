// Package milvus is the persistent Knowledge Store implementation backed by
// a Milvus collection keyed by chunk id.
package milvus

import (
	"context"
	"fmt"
	"sort"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/vector"
	"github.com/agu-rag/backend/pkg/logger"
)

// noLocator is stored when a chunk has no page/paragraph locator; Milvus
// scalar fields cannot be null in this schema.
const noLocator = int64(-1)

var outputFields = []string{"chunk_id", "chunk_index", "text", "source", "source_type", "section_type", "lang", "page", "paragraph"}

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(ctx context.Context, endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to milvus: %v", vector.ErrUnavailable, err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

// EnsureCollection creates and loads the collection if it does not exist.
// The vector dimension is baked into the schema here; a different embedding
// model requires dropping the collection and re-ingesting.
func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("%w: failed to check collection: %v", vector.ErrUnavailable, err)
	}
	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return m.load(ctx)
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "University knowledge base chunks",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       "source",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "source_type",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "16"},
			},
			{
				Name:       "section_type",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "32"},
			},
			{
				Name:       "lang",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8"},
			},
			{
				Name:     "page",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "paragraph",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// IP over unit vectors is cosine similarity.
	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	logger.Info("Collection created", zap.String("collection", m.collectionName))
	return m.load(ctx)
}

func (m *Client) load(ctx context.Context) error {
	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("%w: failed to load collection: %v", vector.ErrUnavailable, err)
	}
	return nil
}

// Upsert writes entries, replacing any existing chunk ids. Milvus applies
// the replacement per primary key as delete+insert in one operation, so a
// concurrent search never observes a half-replaced entry.
func (m *Client) Upsert(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	texts := make([]string, len(entries))
	sources := make([]string, len(entries))
	sourceTypes := make([]string, len(entries))
	sectionTypes := make([]string, len(entries))
	langs := make([]string, len(entries))
	pages := make([]int64, len(entries))
	paragraphs := make([]int64, len(entries))
	indexes := make([]int64, len(entries))

	for i, e := range entries {
		if len(e.Vector) != m.vectorDim {
			return fmt.Errorf("vector dimension mismatch for chunk %s: got %d, expected %d", e.Chunk.ID, len(e.Vector), m.vectorDim)
		}
		chunkIDs[i] = e.Chunk.ID
		embeddings[i] = e.Vector
		texts[i] = e.Chunk.Text
		sources[i] = e.Chunk.Source
		sourceTypes[i] = string(e.Chunk.SourceType)
		sectionTypes[i] = e.Chunk.SectionType
		langs[i] = string(e.Chunk.Lang)
		pages[i] = locatorValue(e.Chunk.Page)
		paragraphs[i] = locatorValue(e.Chunk.Paragraph)
		indexes[i] = int64(e.Chunk.Index)
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("source_type", sourceTypes),
		entity.NewColumnVarChar("section_type", sectionTypes),
		entity.NewColumnVarChar("lang", langs),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnInt64("paragraph", paragraphs),
		entity.NewColumnInt64("chunk_index", indexes),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks upserted into knowledge store", zap.Int("count", len(entries)))
	return nil
}

func (m *Client) Search(ctx context.Context, queryVector []float32, k int) ([]knowledge.ScoredChunk, error) {
	if len(queryVector) != m.vectorDim {
		return nil, fmt.Errorf("query vector dimension mismatch: got %d, expected %d", len(queryVector), m.vectorDim)
	}
	if k <= 0 {
		return nil, nil
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(queryVector)},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", vector.ErrUnavailable, err)
	}

	seen := make(map[string]struct{})
	results := make([]knowledge.ScoredChunk, 0, k)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chunk, err := chunkFromFields(sr.Fields, i)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[chunk.ID]; dup {
				continue
			}
			seen[chunk.ID] = struct{}{}
			results = append(results, knowledge.ScoredChunk{
				Chunk: chunk,
				Score: sr.Scores[i],
			})
		}
	}

	// Milvus orders by score; pin the tie-break to chunk id so equal-score
	// results are deterministic across runs.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	logger.Debug("Vector search completed",
		zap.Int("top_k", k),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func chunkFromFields(fields client.ResultSet, i int) (knowledge.Chunk, error) {
	get := func(name string) (interface{}, error) {
		col := fields.GetColumn(name)
		if col == nil {
			return nil, fmt.Errorf("search result missing column %q", name)
		}
		return col.Get(i)
	}

	var chunk knowledge.Chunk
	for name, dst := range map[string]*string{
		"chunk_id":     &chunk.ID,
		"text":         &chunk.Text,
		"source":       &chunk.Source,
		"section_type": &chunk.SectionType,
	} {
		v, err := get(name)
		if err != nil {
			return knowledge.Chunk{}, err
		}
		*dst, _ = v.(string)
	}

	if v, err := get("source_type"); err == nil {
		if s, ok := v.(string); ok {
			chunk.SourceType = knowledge.SourceType(s)
		}
	}
	if v, err := get("lang"); err == nil {
		if s, ok := v.(string); ok {
			chunk.Lang = language.Tag(s)
		}
	}
	if v, err := get("page"); err == nil {
		chunk.Page = locatorPtr(v)
	}
	if v, err := get("paragraph"); err == nil {
		chunk.Paragraph = locatorPtr(v)
	}
	if v, err := get("chunk_index"); err == nil {
		if n, ok := v.(int64); ok {
			chunk.Index = int(n)
		}
	}

	return chunk, nil
}

func locatorValue(p *int) int64 {
	if p == nil {
		return noLocator
	}
	return int64(*p)
}

func locatorPtr(v interface{}) *int {
	n, ok := v.(int64)
	if !ok || n == noLocator {
		return nil
	}
	val := int(n)
	return &val
}
