package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/metrics"
	"github.com/agu-rag/backend/pkg/logger"
)

// Reconciler brings retrieved chunks into the query's language. Retrieval is
// language-agnostic, so a Turkish question can surface English chunks and
// vice versa; those get translated before prompting. Chunks whose
// translation fails are dropped rather than failing the query.
type Reconciler struct {
	detector   LanguageDetector
	translator Translator
}

func NewReconciler(detector LanguageDetector, translator Translator) *Reconciler {
	return &Reconciler{detector: detector, translator: translator}
}

// Reconcile deduplicates and language-normalizes scored chunks. Input must
// already be ordered by descending score; output preserves that order.
// Chunks at the same location (source, page, paragraph) are near-duplicates
// only when their chunk indexes are adjacent, since neighbours share the
// splitter's overlap region; of those, the highest-scored one wins. Distant
// chunks of the same long page carry distinct context and are all kept.
func (r *Reconciler) Reconcile(ctx context.Context, queryLang language.Tag, retrieved []knowledge.ScoredChunk) []knowledge.ContextChunk {
	kept := make(map[string][]int, len(retrieved))
	result := make([]knowledge.ContextChunk, 0, len(retrieved))

	for _, sc := range retrieved {
		key := locationKey(sc.Chunk)
		if overlapsKept(kept[key], sc.Chunk.Index) {
			continue
		}
		kept[key] = append(kept[key], sc.Chunk.Index)

		chunkLang := sc.Chunk.Lang
		if chunkLang == language.Unknown {
			chunkLang = r.detector.Detect(sc.Chunk.Text)
		}

		text := sc.Chunk.Text
		if chunkLang != language.Unknown && chunkLang != queryLang {
			translated, err := r.translator.Translate(ctx, text, chunkLang, queryLang)
			if err != nil {
				// Translation failures degrade the context, never the request.
				metrics.TranslationDrops.Inc()
				logger.Warn("Dropping chunk after translation failure",
					zap.String("chunk_id", sc.Chunk.ID),
					zap.String("from", string(chunkLang)),
					zap.String("to", string(queryLang)),
					zap.Error(fmt.Errorf("%w: %v", ErrTranslation, err)),
				)
				continue
			}
			text = translated
		}

		result = append(result, knowledge.ContextChunk{
			Chunk: sc.Chunk,
			Text:  text,
			Score: sc.Score,
		})
	}

	return result
}

// overlapsKept reports whether idx equals or neighbours an already kept
// chunk index at the same location.
func overlapsKept(keptIndexes []int, idx int) bool {
	for _, k := range keptIndexes {
		if idx == k || idx == k-1 || idx == k+1 {
			return true
		}
	}
	return false
}

func locationKey(c knowledge.Chunk) string {
	page, paragraph := -1, -1
	if c.Page != nil {
		page = *c.Page
	}
	if c.Paragraph != nil {
		paragraph = *c.Paragraph
	}
	return fmt.Sprintf("%s|%d|%d", c.Source, page, paragraph)
}
