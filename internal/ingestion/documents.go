package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agu-rag/backend/internal/knowledge"
)

// Intermediate dumps decouple scraping and parsing from indexing, so a slow
// or flaky scrape can be rerun without touching the knowledge store.

func WriteDocuments(path string, docs []knowledge.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal documents: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write documents file: %w", err)
	}

	return nil
}

func ReadDocuments(path string) ([]knowledge.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read documents file: %w", err)
	}

	var docs []knowledge.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
	}

	return docs, nil
}
