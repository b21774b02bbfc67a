package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/pkg/circuitbreaker"
	"github.com/agu-rag/backend/pkg/logger"
)

// Client translates between English and Turkish through two directional
// seq2seq models served by the OpenAI-compatible gateway. Any other pair
// passes text through unchanged.
type Client struct {
	api       *openai.Client
	modelTREN string
	modelENTR string
	timeout   time.Duration
	cb        *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, modelTREN, modelENTR string, timeoutSec int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeoutSec <= 0 {
		timeoutSec = 20
	}

	cb := circuitbreaker.New("translation", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Translation client initialized",
		zap.String("model_tr_en", modelTREN),
		zap.String("model_en_tr", modelENTR),
	)

	return &Client{
		api:       openai.NewClientWithConfig(cfg),
		modelTREN: modelTREN,
		modelENTR: modelENTR,
		timeout:   time.Duration(timeoutSec) * time.Second,
		cb:        cb,
	}
}

func (c *Client) Translate(ctx context.Context, text string, from, to language.Tag) (string, error) {
	if text == "" || from == to {
		return text, nil
	}

	var model string
	switch {
	case from == language.Turkish && to == language.English:
		model = c.modelTREN
	case from == language.English && to == language.Turkish:
		model = c.modelENTR
	default:
		return text, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var translated string
	err := c.cb.Execute(ctx, func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			Temperature: 0,
			MaxTokens:   512,
		})
		if err != nil {
			return fmt.Errorf("failed to translate %s->%s: %w", from, to, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("translation %s->%s returned no choices", from, to)
		}
		translated = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}

	return translated, nil
}
