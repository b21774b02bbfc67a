package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/metrics"
	"github.com/agu-rag/backend/internal/query"
	"github.com/agu-rag/backend/pkg/logger"
	"github.com/agu-rag/backend/pkg/utils"
)

// AnswerCache stores assembled responses keyed by query hash. Optional;
// a nil cache means every question runs the full pipeline.
type AnswerCache interface {
	GetAnswer(ctx context.Context, queryHash string, response interface{}) (bool, error)
	SetAnswer(ctx context.Context, queryHash string, response interface{}) error
}

type ChatHandler struct {
	engine *query.Engine
	cache  AnswerCache
}

func NewChatHandler(engine *query.Engine, cache AnswerCache) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		cache:  cache,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Query string `json:"query"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	queryHash := utils.HashString(req.Query)

	if h.cache != nil {
		var cached query.Response
		hit, err := h.cache.GetAnswer(c.Context(), queryHash, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	response, err := h.engine.Answer(c.Context(), req.Query)
	if err != nil {
		return h.mapError(c, err)
	}

	if h.cache != nil {
		if err := h.cache.SetAnswer(c.Context(), queryHash, response); err != nil {
			logger.Warn("Answer cache store failed", zap.Error(err))
		}
	}

	return c.JSON(response)
}

// mapError translates pipeline failures into HTTP status codes. Dependency
// outages are 503, a slow generator is 504, everything else is 500.
func (h *ChatHandler) mapError(c *fiber.Ctx, err error) error {
	logger.Error("Failed to answer query", zap.Error(err))

	switch {
	case errors.Is(err, query.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Knowledge store is unavailable, please retry later",
		})
	case errors.Is(err, query.ErrEmbedding):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Embedding service is unavailable, please retry later",
		})
	case errors.Is(err, query.ErrGenerationTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "Answer generation timed out, please retry",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate an answer",
		})
	}
}
