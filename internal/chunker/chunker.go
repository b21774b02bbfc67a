package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/pkg/utils"
)

var newlinePattern = regexp.MustCompile(`\r\n|\r`)

// Chunker splits document text into retrieval-sized passages. Splitting
// prefers paragraph and sentence boundaries and only falls back to hard
// cuts when a unit still exceeds the maximum size. Adjacent chunks overlap
// by a fixed fraction of the maximum so facts spanning a boundary survive
// in at least one chunk.
type Chunker struct {
	maxSize  int
	minSize  int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

func New(maxSize, minSize int, overlapFraction float64) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("chunker: max size must be positive, got %d", maxSize)
	}
	if minSize < 0 || minSize > maxSize {
		return nil, fmt.Errorf("chunker: min size %d out of range [0, %d]", minSize, maxSize)
	}
	if overlapFraction < 0 || overlapFraction >= 1 {
		return nil, fmt.Errorf("chunker: overlap fraction %v out of range [0, 1)", overlapFraction)
	}

	overlap := int(float64(maxSize) * overlapFraction)
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxSize),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}),
	)

	return &Chunker{
		maxSize:  maxSize,
		minSize:  minSize,
		overlap:  overlap,
		splitter: splitter,
	}, nil
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk splits one document. Empty or whitespace-only content yields zero
// chunks and no error; the caller decides whether to log and skip. Chunk
// ids are pure functions of (document origin, chunk index), which makes
// re-ingestion of an unchanged document replace entries in place.
func (c *Chunker) Chunk(doc knowledge.Document) ([]knowledge.Chunk, error) {
	text := normalize(doc.Content)
	if text == "" {
		return nil, nil
	}

	var segments []string
	if len(text) <= c.maxSize {
		// Covers documents below the minimum size too: exactly one chunk.
		segments = []string{text}
	} else {
		var err error
		segments, err = c.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("failed to split document %q: %w", doc.Origin(), err)
		}
	}

	origin := doc.Origin()
	chunks := make([]knowledge.Chunk, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, knowledge.Chunk{
			ID:          ChunkID(origin, idx),
			Index:       idx,
			Text:        segment,
			Source:      doc.Source,
			SourceType:  doc.SourceType,
			SectionType: doc.SectionType,
			Lang:        doc.Lang,
			Page:        doc.Page,
			Paragraph:   doc.Paragraph,
		})
	}

	return chunks, nil
}

// ChunkID derives the stable id for the chunk at idx of the given origin.
func ChunkID(origin string, idx int) string {
	return utils.HashString(fmt.Sprintf("%s#%d", origin, idx))
}

func normalize(text string) string {
	text = newlinePattern.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
