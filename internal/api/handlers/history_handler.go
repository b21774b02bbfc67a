package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/storage/sqlite"
	"github.com/agu-rag/backend/pkg/logger"
)

const defaultHistoryLimit = 50

type HistoryHandler struct {
	db *sqlite.Client
}

func NewHistoryHandler(db *sqlite.Client) *HistoryHandler {
	return &HistoryHandler{db: db}
}

func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}

	records, err := h.db.GetQueryHistory(limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"id":         r.ID,
			"query":      r.QueryText,
			"lang":       r.Lang,
			"answer":     r.Answer,
			"outcome":    r.Outcome,
			"latency_ms": r.LatencyMS,
			"created_at": r.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"history": history})
}
