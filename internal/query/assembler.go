package query

import (
	"fmt"

	"github.com/agu-rag/backend/internal/knowledge"
)

// AssembleCitations turns the chunks that actually made it into the prompt
// into citations, preserving their descending-similarity order and dropping
// exact duplicates.
func AssembleCitations(kept []knowledge.ContextChunk) []knowledge.Citation {
	seen := make(map[string]struct{}, len(kept))
	citations := make([]knowledge.Citation, 0, len(kept))

	for _, cc := range kept {
		citation := knowledge.Citation{
			Source:    cc.Chunk.Source,
			Page:      cc.Chunk.Page,
			Paragraph: cc.Chunk.Paragraph,
			Type:      string(cc.Chunk.SourceType),
			Lang:      string(cc.Chunk.Lang),
		}

		key := citationKey(citation)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		citations = append(citations, citation)
	}

	return citations
}

func citationKey(c knowledge.Citation) string {
	page, paragraph := -1, -1
	if c.Page != nil {
		page = *c.Page
	}
	if c.Paragraph != nil {
		paragraph = *c.Paragraph
	}
	return fmt.Sprintf("%s|%d|%d|%s|%s", c.Source, page, paragraph, c.Type, c.Lang)
}
