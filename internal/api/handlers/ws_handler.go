package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/query"
	"github.com/agu-rag/backend/pkg/logger"
)

// WebSocketHandler answers questions over a persistent connection. Each
// answer is sent whole once assembled; the generator gateway does not
// stream tokens.
type WebSocketHandler struct {
	engine *query.Engine
}

func NewWebSocketHandler(engine *query.Engine) *WebSocketHandler {
	return &WebSocketHandler{engine: engine}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type  string `json:"type"`
			Query string `json:"query"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" || msg.Query == "" {
			h.sendError(c, "Expected a query message with a non-empty query")
			continue
		}

		response, err := h.engine.Answer(context.Background(), msg.Query)
		if err != nil {
			logger.Error("Failed to answer WebSocket query", zap.Error(err))
			h.sendError(c, "Could not generate an answer")
			continue
		}

		err = c.WriteJSON(map[string]interface{}{
			"type":    "answer",
			"answer":  response.Answer,
			"sources": response.Sources,
		})
		if err != nil {
			logger.Error("Failed to write WebSocket response", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
