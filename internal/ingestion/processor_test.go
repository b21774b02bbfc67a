package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agu-rag/backend/internal/chunker"
	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/vector/memory"
)

type stubEmbedder struct {
	dim   int
	calls int
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dim)
		vec[i%e.dim] = 1
		vectors[i] = vec
	}
	return vectors, nil
}

type stubDetector struct {
	result language.Tag
}

func (d *stubDetector) Detect(string) language.Tag {
	return d.result
}

func TestBuildIndex(t *testing.T) {
	ch, err := chunker.New(200, 20, 0.2)
	require.NoError(t, err)

	store := memory.NewStore(4)
	embedder := &stubEmbedder{dim: 4}
	processor := NewProcessor(ch, &stubDetector{result: language.English}, embedder, store, nil)

	para := 1
	docs := []knowledge.Document{
		{
			Source:     "https://example.edu/faq",
			Content:    strings.Repeat("Enrollment opens in September and closes in October. ", 10),
			SourceType: knowledge.SourceWeb,
			Paragraph:  &para,
		},
		{
			Source:     "https://example.edu/empty",
			Content:    "   ",
			SourceType: knowledge.SourceWeb,
		},
	}

	stats, err := processor.BuildIndex(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Skipped)
	assert.Greater(t, stats.Chunks, 1)
	assert.Equal(t, stats.Chunks, store.Len())
}

func TestBuildIndexIsIdempotent(t *testing.T) {
	ch, err := chunker.New(200, 20, 0.2)
	require.NoError(t, err)

	store := memory.NewStore(4)
	processor := NewProcessor(ch, &stubDetector{result: language.English}, &stubEmbedder{dim: 4}, store, nil)

	docs := []knowledge.Document{{
		Source:     "https://example.edu/faq",
		Content:    strings.Repeat("The library stays open until midnight during finals week. ", 10),
		SourceType: knowledge.SourceWeb,
	}}

	first, err := processor.BuildIndex(context.Background(), docs)
	require.NoError(t, err)
	second, err := processor.BuildIndex(context.Background(), docs)
	require.NoError(t, err)

	// Same origin, same chunk ids: the second run replaced, not duplicated.
	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Equal(t, first.Chunks, store.Len())
}

func TestBuildIndexTagsUnknownLanguages(t *testing.T) {
	ch, err := chunker.New(1000, 20, 0.2)
	require.NoError(t, err)

	store := memory.NewStore(4)
	processor := NewProcessor(ch, &stubDetector{result: language.Turkish}, &stubEmbedder{dim: 4}, store, nil)

	docs := []knowledge.Document{{
		Source:     "handbook.pdf",
		Content:    "Kayıt dönemi Eylül ayında başlar ve Ekim ayında sona erer.",
		SourceType: knowledge.SourcePDF,
	}}

	_, err = processor.BuildIndex(context.Background(), docs)
	require.NoError(t, err)

	results, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, language.Turkish, results[0].Chunk.Lang)
}

func TestBuildIndexEmptyCorpus(t *testing.T) {
	ch, err := chunker.New(1000, 20, 0.2)
	require.NoError(t, err)

	processor := NewProcessor(ch, &stubDetector{result: language.English}, &stubEmbedder{dim: 4}, memory.NewStore(4), nil)

	stats, err := processor.BuildIndex(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
}
