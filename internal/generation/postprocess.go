package generation

import (
	"strings"

	prose "github.com/jdkato/prose/v2"

	"go.uber.org/zap"

	"github.com/agu-rag/backend/pkg/logger"
)

// PostProcessor normalizes raw model output: strips instruction echo and
// wrapping quotes, caps the answer at a sentence budget, and recognizes the
// model's "no answer in context" signal so it can be surfaced as a distinct
// outcome instead of a fabricated answer.
type PostProcessor struct {
	maxSentences    int
	noAnswerPhrases []string
}

func NewPostProcessor(maxSentences int, noAnswerPhrases []string) *PostProcessor {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	phrases := make([]string, 0, len(noAnswerPhrases))
	for _, p := range noAnswerPhrases {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			phrases = append(phrases, strings.ToLower(trimmed))
		}
	}
	return &PostProcessor{
		maxSentences:    maxSentences,
		noAnswerPhrases: phrases,
	}
}

func (p *PostProcessor) Clean(raw string) string {
	text := strings.TrimSpace(raw)

	// Causal models echo the prompt; keep only what follows the last
	// answer marker, whichever language the prompt was built in.
	lower := strings.ToLower(text)
	for _, marker := range []string{"answer:", "yanıt:"} {
		if idx := strings.LastIndex(lower, marker); idx != -1 {
			text = strings.TrimSpace(text[idx+len(marker):])
			lower = strings.ToLower(text)
		}
	}

	text = stripQuotes(text)
	text = p.capSentences(text)

	return text
}

// IsNoAnswer reports whether the cleaned answer is the model declining to
// answer from the supplied context, in either language.
func (p *PostProcessor) IsNoAnswer(answer string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(answer))
	if trimmed == "" {
		return true
	}
	for _, phrase := range p.noAnswerPhrases {
		if strings.Contains(trimmed, phrase) {
			return true
		}
	}
	return false
}

func (p *PostProcessor) capSentences(text string) string {
	if text == "" {
		return text
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed, keeping answer as-is", zap.Error(err))
		return text
	}

	sentences := doc.Sentences()
	if len(sentences) <= p.maxSentences {
		return text
	}

	kept := make([]string, 0, p.maxSentences)
	for i := 0; i < p.maxSentences; i++ {
		kept = append(kept, strings.TrimSpace(sentences[i].Text))
	}
	return strings.Join(kept, " ")
}

func stripQuotes(text string) string {
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(text) >= len(pair[0])+len(pair[1]) &&
			strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) {
			return strings.TrimSpace(text[len(pair[0]) : len(text)-len(pair[1])])
		}
	}
	return text
}
