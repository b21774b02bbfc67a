package models

import "time"

// Document is the ingestion registry row for one loaded source unit
// (a web page, a PDF page, or a DOCX paragraph group).
type Document struct {
	ID         string
	Source     string
	SourceType string
	Lang       string
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentChunk mirrors a knowledge store entry so the registry can
// answer "what did we index, and when" without touching Milvus.
type DocumentChunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	Text       string
	CreatedAt  time.Time
}

// QueryRecord is one answered (or failed) question in the audit log.
type QueryRecord struct {
	ID        string
	QueryText string
	Lang      string
	Answer    string
	Outcome   string
	LatencyMS int64
	CreatedAt time.Time
}

// QuerySource is one citation attached to a query record.
type QuerySource struct {
	QueryID    string
	Source     string
	Page       *int
	Paragraph  *int
	SourceType string
	Lang       string
	Score      float64
}
