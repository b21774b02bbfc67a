package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/pkg/logger"
)

// Tag identifies one of the two languages the knowledge base speaks.
type Tag string

const (
	English Tag = "en"
	Turkish Tag = "tr"
	Unknown Tag = ""
)

func ParseTag(s string) Tag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "eng", "english":
		return English
	case "tr", "tur", "turkish":
		return Turkish
	default:
		return Unknown
	}
}

// Detector classifies text as English or Turkish. It is best-effort: short,
// colloquial or mixed input below the confidence threshold resolves to the
// configured fallback instead of an error.
type Detector struct {
	detector  lingua.LanguageDetector
	fallback  Tag
	threshold float64
}

func NewDetector(fallback Tag, threshold float64) *Detector {
	if fallback == Unknown {
		fallback = English
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.Turkish).
		WithPreloadedLanguageModels().
		Build()

	return &Detector{
		detector:  detector,
		fallback:  fallback,
		threshold: threshold,
	}
}

func (d *Detector) Detect(text string) Tag {
	text = strings.TrimSpace(text)
	if text == "" {
		return d.fallback
	}

	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return d.fallback
	}

	best := values[0]
	if best.Value() < d.threshold {
		logger.Debug("Language confidence below threshold, using fallback",
			zap.String("detected", best.Language().String()),
			zap.Float64("confidence", best.Value()),
			zap.String("fallback", string(d.fallback)),
		)
		return d.fallback
	}

	switch best.Language() {
	case lingua.Turkish:
		return Turkish
	case lingua.English:
		return English
	default:
		return d.fallback
	}
}
