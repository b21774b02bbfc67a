package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/generation"
	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/metrics"
	"github.com/agu-rag/backend/internal/prompt"
	"github.com/agu-rag/backend/pkg/logger"
)

// Consumer-side contracts for the pipeline's collaborators. Concrete
// implementations live in their own packages; fakes stand in for tests.
type (
	LanguageDetector interface {
		Detect(text string) language.Tag
	}

	Embedder interface {
		EmbedQuery(ctx context.Context, text string) ([]float32, error)
	}

	Store interface {
		Search(ctx context.Context, vector []float32, k int) ([]knowledge.ScoredChunk, error)
	}

	Translator interface {
		Translate(ctx context.Context, text string, from, to language.Tag) (string, error)
	}

	Generator interface {
		Generate(ctx context.Context, prompt string) (string, error)
	}
)

// Outcome classifies how a query resolved, for auditing and metrics.
const (
	OutcomeAnswered  = "answered"
	OutcomeNoAnswer  = "no_answer"
	OutcomeNoResults = "no_results"
	OutcomeFailed    = "failed"
)

// AuditSource is one cited location with the similarity score that earned it.
type AuditSource struct {
	Citation knowledge.Citation
	Score    float32
}

// AuditRecord is handed to the Recorder after every query, successful or not.
type AuditRecord struct {
	ID        string
	Query     string
	Lang      language.Tag
	Answer    string
	Outcome   string
	LatencyMS int64
	Sources   []AuditSource
}

// Recorder persists query audit records. Recording is best effort and never
// fails the query.
type Recorder interface {
	Record(ctx context.Context, record AuditRecord)
}

// Response is the assembled result of one question.
type Response struct {
	Answer  string               `json:"answer"`
	Sources []knowledge.Citation `json:"sources"`
}

type Engine struct {
	detector   LanguageDetector
	embedder   Embedder
	store      Store
	reconciler *Reconciler
	builder    *prompt.Builder
	generator  Generator
	post       *generation.PostProcessor
	recorder   Recorder
	topK       int
}

func NewEngine(
	detector LanguageDetector,
	embedder Embedder,
	store Store,
	reconciler *Reconciler,
	builder *prompt.Builder,
	generator Generator,
	post *generation.PostProcessor,
	topK int,
) *Engine {
	return &Engine{
		detector:   detector,
		embedder:   embedder,
		store:      store,
		reconciler: reconciler,
		builder:    builder,
		generator:  generator,
		post:       post,
		topK:       topK,
	}
}

// WithRecorder attaches an audit recorder to the engine.
func (e *Engine) WithRecorder(recorder Recorder) *Engine {
	e.recorder = recorder
	return e
}

// Answer runs the full pipeline for one question: detect language, embed,
// retrieve, reconcile, prompt, generate, assemble. Every path out of this
// function, including failures, produces an audit record.
func (e *Engine) Answer(ctx context.Context, queryText string) (*Response, error) {
	start := time.Now()
	queryID := uuid.New().String()

	lang := language.Unknown

	// fail audits the query and tags the error with the stage that broke.
	fail := func(stage Stage, err error) (*Response, error) {
		e.record(ctx, AuditRecord{
			ID:        queryID,
			Query:     queryText,
			Lang:      lang,
			Outcome:   OutcomeFailed,
			LatencyMS: time.Since(start).Milliseconds(),
		})
		metrics.QueryTotal.WithLabelValues(OutcomeFailed).Inc()
		return nil, stageErr(stage, err)
	}

	lang = e.detector.Detect(queryText)

	stageStart := time.Now()
	vector, err := e.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return fail(StageEmbedded, fmt.Errorf("%w: %v", ErrEmbedding, err))
	}
	metrics.StageDuration.WithLabelValues(string(StageEmbedded)).Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	retrieved, err := e.store.Search(ctx, vector, e.topK)
	if err != nil {
		return fail(StageRetrieved, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	metrics.StageDuration.WithLabelValues(string(StageRetrieved)).Observe(time.Since(stageStart).Seconds())
	metrics.RetrievalResultsCount.Observe(float64(len(retrieved)))

	if len(retrieved) == 0 {
		logger.Info("No chunks retrieved",
			zap.String("query_id", queryID),
			zap.String("lang", string(lang)),
		)
		return e.resolve(ctx, queryID, queryText, lang, prompt.NoAnswerMessage(lang), OutcomeNoResults, nil, start)
	}

	stageStart = time.Now()
	reconciled := e.reconciler.Reconcile(ctx, lang, retrieved)
	metrics.StageDuration.WithLabelValues(string(StageReconciled)).Observe(time.Since(stageStart).Seconds())

	if len(reconciled) == 0 {
		// Every retrieved chunk was dropped during reconciliation.
		return e.resolve(ctx, queryID, queryText, lang, prompt.NoAnswerMessage(lang), OutcomeNoResults, nil, start)
	}

	promptText, kept := e.builder.Build(queryText, lang, reconciled)

	stageStart = time.Now()
	raw, err := e.generator.Generate(ctx, promptText)
	if err != nil {
		if errors.Is(err, generation.ErrTimeout) {
			return fail(StageGenerated, fmt.Errorf("%w: %v", ErrGenerationTimeout, err))
		}
		return fail(StageGenerated, fmt.Errorf("%w: %v", ErrGeneration, err))
	}
	metrics.StageDuration.WithLabelValues(string(StageGenerated)).Observe(time.Since(stageStart).Seconds())

	answer := e.post.Clean(raw)
	if e.post.IsNoAnswer(answer) {
		return e.resolve(ctx, queryID, queryText, lang, prompt.NoAnswerMessage(lang), OutcomeNoAnswer, nil, start)
	}

	return e.resolve(ctx, queryID, queryText, lang, answer, OutcomeAnswered, kept, start)
}

// resolve finalizes the response, audits it, and records metrics. Citations
// are attached only for genuinely answered queries; a no-answer response
// cites nothing because no chunk grounded it.
func (e *Engine) resolve(ctx context.Context, queryID, queryText string, lang language.Tag, answer, outcome string, kept []knowledge.ContextChunk, start time.Time) (*Response, error) {
	citations := AssembleCitations(kept)

	sources := make([]AuditSource, 0, len(kept))
	for _, cc := range kept {
		sources = append(sources, AuditSource{
			Citation: knowledge.Citation{
				Source:    cc.Chunk.Source,
				Page:      cc.Chunk.Page,
				Paragraph: cc.Chunk.Paragraph,
				Type:      string(cc.Chunk.SourceType),
				Lang:      string(cc.Chunk.Lang),
			},
			Score: cc.Score,
		})
	}

	latency := time.Since(start)
	e.record(ctx, AuditRecord{
		ID:        queryID,
		Query:     queryText,
		Lang:      lang,
		Answer:    answer,
		Outcome:   outcome,
		LatencyMS: latency.Milliseconds(),
		Sources:   sources,
	})

	metrics.QueryTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.WithLabelValues(string(lang)).Observe(latency.Seconds())

	logger.Info("Query resolved",
		zap.String("query_id", queryID),
		zap.String("outcome", outcome),
		zap.String("lang", string(lang)),
		zap.Int("citations", len(citations)),
		zap.Duration("latency", latency),
	)

	return &Response{Answer: answer, Sources: citations}, nil
}

func (e *Engine) record(ctx context.Context, record AuditRecord) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, record)
}
