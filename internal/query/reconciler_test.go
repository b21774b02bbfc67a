package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
)

type fakeDetector struct {
	result language.Tag
}

func (d *fakeDetector) Detect(string) language.Tag {
	return d.result
}

type fakeTranslator struct {
	prefix string
	err    error
	calls  int
}

func (t *fakeTranslator) Translate(_ context.Context, text string, from, to language.Tag) (string, error) {
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	return t.prefix + text, nil
}

func scored(id, text string, lang language.Tag, score float32) knowledge.ScoredChunk {
	return knowledge.ScoredChunk{
		Chunk: knowledge.Chunk{ID: id, Text: text, Source: "https://example.edu/" + id, Lang: lang},
		Score: score,
	}
}

func TestReconcileSameLanguagePassthrough(t *testing.T) {
	translator := &fakeTranslator{prefix: "translated: "}
	r := NewReconciler(&fakeDetector{result: language.English}, translator)

	out := r.Reconcile(context.Background(), language.English, []knowledge.ScoredChunk{
		scored("a", "The GPA requirement is 3.0.", language.English, 0.9),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "The GPA requirement is 3.0.", out[0].Text)
	assert.Zero(t, translator.calls)
}

func TestReconcileTranslatesCrossLanguageChunks(t *testing.T) {
	translator := &fakeTranslator{prefix: "tr: "}
	r := NewReconciler(&fakeDetector{result: language.English}, translator)

	out := r.Reconcile(context.Background(), language.Turkish, []knowledge.ScoredChunk{
		scored("a", "The dorm application opens in August.", language.English, 0.9),
		scored("b", "Yurt başvuruları çevrimiçi yapılır.", language.Turkish, 0.8),
	})

	require.Len(t, out, 2)
	assert.Equal(t, "tr: The dorm application opens in August.", out[0].Text)
	assert.Equal(t, "Yurt başvuruları çevrimiçi yapılır.", out[1].Text)
	assert.Equal(t, 1, translator.calls)

	// The chunk's source identity is never rewritten by translation.
	assert.Equal(t, language.English, out[0].Chunk.Lang)
	assert.Equal(t, "The dorm application opens in August.", out[0].Chunk.Text)
}

func TestReconcileDetectsUnknownChunkLanguage(t *testing.T) {
	translator := &fakeTranslator{prefix: "en: "}
	r := NewReconciler(&fakeDetector{result: language.Turkish}, translator)

	out := r.Reconcile(context.Background(), language.English, []knowledge.ScoredChunk{
		scored("a", "Kayıt dönemi Eylül ayında başlar.", language.Unknown, 0.9),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "en: Kayıt dönemi Eylül ayında başlar.", out[0].Text)
}

func TestReconcileDropsChunksWhenTranslationFails(t *testing.T) {
	translator := &fakeTranslator{err: errors.New("gateway down")}
	r := NewReconciler(&fakeDetector{result: language.English}, translator)

	out := r.Reconcile(context.Background(), language.Turkish, []knowledge.ScoredChunk{
		scored("a", "English only fact.", language.English, 0.9),
		scored("b", "Türkçe bir bilgi.", language.Turkish, 0.8),
	})

	// The untranslatable chunk is dropped, not fatal; the same-language
	// chunk still flows through.
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Chunk.ID)
}

func TestReconcileDeduplicatesByLocation(t *testing.T) {
	r := NewReconciler(&fakeDetector{result: language.English}, &fakeTranslator{})

	page := 2
	first := scored("a", "High scoring duplicate.", language.English, 0.9)
	first.Chunk.Page = &page
	second := scored("b", "Low scoring duplicate.", language.English, 0.5)
	second.Chunk.Source = first.Chunk.Source
	second.Chunk.Page = &page

	out := r.Reconcile(context.Background(), language.English, []knowledge.ScoredChunk{first, second})

	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Chunk.ID)
	assert.InDelta(t, 0.9, float64(out[0].Score), 1e-6)
}

func TestReconcileDeduplicatesAdjacentChunksOnly(t *testing.T) {
	r := NewReconciler(&fakeDetector{result: language.English}, &fakeTranslator{})

	page := 7
	atIndex := func(id, text string, idx int, score float32) knowledge.ScoredChunk {
		sc := scored(id, text, language.English, score)
		sc.Chunk.Source = "https://example.edu/handbook.pdf"
		sc.Chunk.Page = &page
		sc.Chunk.Index = idx
		return sc
	}

	out := r.Reconcile(context.Background(), language.English, []knowledge.ScoredChunk{
		atIndex("a", "Scholarship deadlines.", 3, 0.9),
		atIndex("b", "Shares overlap with a.", 4, 0.8),
		atIndex("c", "Refund policy, same page.", 9, 0.7),
	})

	// b neighbours a and repeats its overlap region; c sits far away on the
	// same page and is distinct context.
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Chunk.ID)
	assert.Equal(t, "c", out[1].Chunk.ID)
}

func TestReconcilePreservesScoreOrder(t *testing.T) {
	r := NewReconciler(&fakeDetector{result: language.English}, &fakeTranslator{})

	out := r.Reconcile(context.Background(), language.English, []knowledge.ScoredChunk{
		scored("a", "First.", language.English, 0.9),
		scored("b", "Second.", language.English, 0.7),
		scored("c", "Third.", language.English, 0.5),
	})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Chunk.ID, out[1].Chunk.ID, out[2].Chunk.ID})
}
