// Package knowledge holds the domain types shared by the ingestion and
// query pipelines.
package knowledge

import (
	"fmt"

	"github.com/agu-rag/backend/internal/language"
)

type SourceType string

const (
	SourceWeb  SourceType = "web"
	SourcePDF  SourceType = "pdf"
	SourceDOCX SourceType = "docx"
)

// Document is one raw source unit produced by a loader: a content block of a
// scraped page, a PDF paragraph or a DOCX paragraph. Immutable once loaded.
type Document struct {
	Source      string       `json:"source"`
	Content     string       `json:"content"`
	SourceType  SourceType   `json:"source_type,omitempty"`
	SectionType string       `json:"type,omitempty"`
	Lang        language.Tag `json:"lang,omitempty"`
	Page        *int         `json:"page,omitempty"`
	Paragraph   *int         `json:"paragraph,omitempty"`
}

// Origin uniquely identifies the document within its source so chunk ids
// derived from it stay stable across re-ingestion runs.
func (d Document) Origin() string {
	origin := d.Source
	if d.Page != nil {
		origin += fmt.Sprintf("|page:%d", *d.Page)
	}
	if d.Paragraph != nil {
		origin += fmt.Sprintf("|para:%d", *d.Paragraph)
	}
	return origin
}

// Chunk is a bounded span of normalized text derived from exactly one
// Document. Never mutated after creation; re-ingestion replaces it by ID.
type Chunk struct {
	ID          string
	Index       int
	Text        string
	Source      string
	SourceType  SourceType
	SectionType string
	Lang        language.Tag
	Page        *int
	Paragraph   *int
}

// ScoredChunk pairs a retrieved chunk with its similarity to the query.
// Similarity is cosine over L2-normalized vectors; higher is better.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// ContextChunk is a reconciled retrieval result: Text matches the query
// language while Chunk keeps the original, untranslated source identity
// that citations must point at.
type ContextChunk struct {
	Chunk Chunk
	Text  string
	Score float32
}

// Citation is one entry of the query response's sources list. Locators are
// nullable on purpose: web content has neither page nor paragraph.
type Citation struct {
	Source    string `json:"source"`
	Page      *int   `json:"page"`
	Paragraph *int   `json:"paragraph"`
	Type      string `json:"type,omitempty"`
	Lang      string `json:"lang,omitempty"`
}
