package sqlite

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/query"
	"github.com/agu-rag/backend/internal/storage/models"
	"github.com/agu-rag/backend/pkg/logger"
)

// Recorder adapts the SQLite client to the query engine's audit contract.
// Failures are logged and swallowed; auditing never breaks a query.
type Recorder struct {
	client *Client
}

func NewRecorder(client *Client) *Recorder {
	return &Recorder{client: client}
}

func (r *Recorder) Record(ctx context.Context, record query.AuditRecord) {
	err := r.client.InsertQueryRecord(&models.QueryRecord{
		ID:        record.ID,
		QueryText: record.Query,
		Lang:      string(record.Lang),
		Answer:    record.Answer,
		Outcome:   record.Outcome,
		LatencyMS: record.LatencyMS,
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record query", zap.String("query_id", record.ID), zap.Error(err))
		return
	}

	for _, src := range record.Sources {
		err := r.client.InsertQuerySource(&models.QuerySource{
			QueryID:    record.ID,
			Source:     src.Citation.Source,
			Page:       src.Citation.Page,
			Paragraph:  src.Citation.Paragraph,
			SourceType: src.Citation.Type,
			Lang:       src.Citation.Lang,
			Score:      float64(src.Score),
		})
		if err != nil {
			logger.Warn("Failed to record query source", zap.String("query_id", record.ID), zap.Error(err))
		}
	}
}
