package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agu-rag/backend/internal/generation"
	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/prompt"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return e.vec, e.err
}

type fakeStore struct {
	results []knowledge.ScoredChunk
	err     error
}

func (s *fakeStore) Search(context.Context, []float32, int) ([]knowledge.ScoredChunk, error) {
	return s.results, s.err
}

type fakeGenerator struct {
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (g *fakeGenerator) Generate(_ context.Context, p string) (string, error) {
	g.calls++
	g.lastPrompt = p
	return g.answer, g.err
}

type fakeRecorder struct {
	records []AuditRecord
}

func (r *fakeRecorder) Record(_ context.Context, record AuditRecord) {
	r.records = append(r.records, record)
}

func newTestEngine(detectorLang language.Tag, store Store, generator Generator, translator Translator) (*Engine, *fakeRecorder) {
	detector := &fakeDetector{result: detectorLang}
	if translator == nil {
		translator = &fakeTranslator{}
	}
	post := generation.NewPostProcessor(3, []string{
		"I don't have that information",
		"bu bilgi bilgi taban",
	})
	recorder := &fakeRecorder{}
	engine := NewEngine(
		detector,
		&fakeEmbedder{vec: []float32{1, 0}},
		store,
		NewReconciler(detector, translator),
		prompt.NewBuilder(6000),
		generator,
		post,
		5,
	).WithRecorder(recorder)
	return engine, recorder
}

func TestAnswerGroundedEnglishQuery(t *testing.T) {
	store := &fakeStore{results: []knowledge.ScoredChunk{
		scored("a", "Students must maintain a minimum GPA of 3.0 to keep the scholarship.", language.English, 0.92),
		scored("b", "Scholarship reviews happen every semester.", language.English, 0.71),
	}}
	generator := &fakeGenerator{answer: "Answer: The minimum GPA is 3.0."}

	engine, recorder := newTestEngine(language.English, store, generator, nil)

	resp, err := engine.Answer(context.Background(), "What is the minimum GPA to keep my scholarship?")
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "3.0")
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "https://example.edu/a", resp.Sources[0].Source)

	// The prompt carried the retrieved evidence.
	assert.Contains(t, generator.lastPrompt, "minimum GPA of 3.0")

	require.Len(t, recorder.records, 1)
	assert.Equal(t, OutcomeAnswered, recorder.records[0].Outcome)
	assert.Equal(t, language.English, recorder.records[0].Lang)
	assert.Len(t, recorder.records[0].Sources, 2)
}

func TestAnswerTurkishQueryOverEnglishSources(t *testing.T) {
	store := &fakeStore{results: []knowledge.ScoredChunk{
		scored("a", "The dormitory application opens in August.", language.English, 0.9),
	}}
	generator := &fakeGenerator{answer: "Yurt başvurusu Ağustos ayında açılır."}
	translator := &fakeTranslator{prefix: "çeviri: "}

	engine, recorder := newTestEngine(language.Turkish, store, generator, translator)

	resp, err := engine.Answer(context.Background(), "Yurt başvurusu ne zaman açılıyor?")
	require.NoError(t, err)

	assert.Equal(t, "Yurt başvurusu Ağustos ayında açılır.", resp.Answer)
	assert.Equal(t, 1, translator.calls)
	assert.Contains(t, generator.lastPrompt, "çeviri: The dormitory application opens in August.")
	assert.Contains(t, generator.lastPrompt, "Soru:")

	// Citations point at the original English source.
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "en", resp.Sources[0].Lang)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, OutcomeAnswered, recorder.records[0].Outcome)
}

func TestAnswerNoRetrievalResults(t *testing.T) {
	store := &fakeStore{}
	generator := &fakeGenerator{answer: "should never run"}

	engine, recorder := newTestEngine(language.English, store, generator, nil)

	resp, err := engine.Answer(context.Background(), "Does the university have a ski team?")
	require.NoError(t, err)

	assert.Equal(t, prompt.NoAnswerMessage(language.English), resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, generator.calls)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, OutcomeNoResults, recorder.records[0].Outcome)
}

func TestAnswerModelDeclines(t *testing.T) {
	store := &fakeStore{results: []knowledge.ScoredChunk{
		scored("a", "The cafeteria serves lunch from noon.", language.English, 0.4),
	}}
	generator := &fakeGenerator{answer: "I'm sorry, I don't have that information in my knowledge base."}

	engine, recorder := newTestEngine(language.English, store, generator, nil)

	resp, err := engine.Answer(context.Background(), "What is the tuition for the medical school?")
	require.NoError(t, err)

	assert.Equal(t, prompt.NoAnswerMessage(language.English), resp.Answer)
	// A declined answer cites nothing: no chunk grounded it.
	assert.Empty(t, resp.Sources)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, OutcomeNoAnswer, recorder.records[0].Outcome)
}

func TestAnswerTranslationFailureDegrades(t *testing.T) {
	store := &fakeStore{results: []knowledge.ScoredChunk{
		scored("a", "English-only chunk.", language.English, 0.9),
		scored("b", "Türkçe bilgi: son başvuru 30 Haziran.", language.Turkish, 0.8),
	}}
	generator := &fakeGenerator{answer: "Son başvuru tarihi 30 Haziran."}
	translator := &fakeTranslator{err: errors.New("translator gateway down")}

	engine, recorder := newTestEngine(language.Turkish, store, generator, translator)

	resp, err := engine.Answer(context.Background(), "Son başvuru tarihi nedir?")
	require.NoError(t, err)

	// The untranslatable English chunk was dropped; the Turkish one answered.
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://example.edu/b", resp.Sources[0].Source)
	assert.NotContains(t, generator.lastPrompt, "English-only chunk.")

	require.Len(t, recorder.records, 1)
	assert.Equal(t, OutcomeAnswered, recorder.records[0].Outcome)
}

func TestAnswerAllChunksDroppedResolvesNoResults(t *testing.T) {
	store := &fakeStore{results: []knowledge.ScoredChunk{
		scored("a", "English-only chunk.", language.English, 0.9),
	}}
	generator := &fakeGenerator{answer: "unused"}
	translator := &fakeTranslator{err: errors.New("translator gateway down")}

	engine, recorder := newTestEngine(language.Turkish, store, generator, translator)

	resp, err := engine.Answer(context.Background(), "Kampüste spor salonu var mı?")
	require.NoError(t, err)

	assert.Equal(t, prompt.NoAnswerMessage(language.Turkish), resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, generator.calls)
	assert.Equal(t, OutcomeNoResults, recorder.records[0].Outcome)
}

func TestAnswerEmbeddingFailure(t *testing.T) {
	detector := &fakeDetector{result: language.English}
	post := generation.NewPostProcessor(3, nil)
	recorder := &fakeRecorder{}
	engine := NewEngine(
		detector,
		&fakeEmbedder{err: errors.New("gateway unreachable")},
		&fakeStore{},
		NewReconciler(detector, &fakeTranslator{}),
		prompt.NewBuilder(6000),
		&fakeGenerator{},
		post,
		5,
	).WithRecorder(recorder)

	_, err := engine.Answer(context.Background(), "Anything?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbedding)

	var stageError *StageError
	require.ErrorAs(t, err, &stageError)
	assert.Equal(t, StageEmbedded, stageError.Stage)

	require.Len(t, recorder.records, 1)
	assert.Equal(t, OutcomeFailed, recorder.records[0].Outcome)
}

func TestAnswerStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("milvus connection refused")}
	engine, recorder := newTestEngine(language.English, store, &fakeGenerator{}, nil)

	_, err := engine.Answer(context.Background(), "Anything?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	var stageError *StageError
	require.ErrorAs(t, err, &stageError)
	assert.Equal(t, StageRetrieved, stageError.Stage)

	assert.Equal(t, OutcomeFailed, recorder.records[0].Outcome)
}

func TestAnswerGenerationTimeout(t *testing.T) {
	store := &fakeStore{results: []knowledge.ScoredChunk{
		scored("a", "Some fact.", language.English, 0.9),
	}}
	generator := &fakeGenerator{err: fmt.Errorf("deadline hit: %w", generation.ErrTimeout)}

	engine, recorder := newTestEngine(language.English, store, generator, nil)

	_, err := engine.Answer(context.Background(), "Anything?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.NotErrorIs(t, err, ErrGeneration)
	assert.Equal(t, OutcomeFailed, recorder.records[0].Outcome)
}

func TestAnswerGenerationFailure(t *testing.T) {
	store := &fakeStore{results: []knowledge.ScoredChunk{
		scored("a", "Some fact.", language.English, 0.9),
	}}
	generator := &fakeGenerator{err: errors.New("model crashed")}

	engine, recorder := newTestEngine(language.English, store, generator, nil)

	_, err := engine.Answer(context.Background(), "Anything?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)

	var stageError *StageError
	require.ErrorAs(t, err, &stageError)
	assert.Equal(t, StageGenerated, stageError.Stage)

	assert.Equal(t, OutcomeFailed, recorder.records[0].Outcome)
}
