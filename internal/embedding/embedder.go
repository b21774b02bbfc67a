package embedding

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/pkg/circuitbreaker"
	"github.com/agu-rag/backend/pkg/logger"
	"github.com/agu-rag/backend/pkg/retry"
	"github.com/agu-rag/backend/pkg/utils"
)

const batchSize = 32

var whitespacePattern = regexp.MustCompile(`\s+`)

// Cache stores previously computed vectors keyed by normalized-text hash.
// Embedding is deterministic per model version, so cached vectors are as
// good as fresh ones.
type Cache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, vector []float32) error
}

// Client maps text to fixed-dimension vectors through an OpenAI-compatible
// inference gateway. The same client embeds chunks at ingestion time and
// queries at request time; using anything else on either side would make
// the vectors incomparable.
type Client struct {
	api         *openai.Client
	model       string
	dim         int
	cache       Cache
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(baseURL, apiKey, model string, dim int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	cb := circuitbreaker.New("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	logger.Info("Embedding client initialized",
		zap.String("model", model),
		zap.Int("dim", dim),
	)

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       model,
		dim:         dim,
		cache:       nil,
		cb:          cb,
		retryConfig: retry.DefaultConfig(),
	}
}

// WithCache attaches a vector cache. Safe to skip; lookups degrade to
// gateway calls.
func (c *Client) WithCache(cache Cache) *Client {
	c.cache = cache
	return c
}

func (c *Client) Dimension() int {
	return c.dim
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed embeds texts in batches, preserving input order. Each input is
// whitespace-normalized first so identical content always produces the same
// vector, and every output vector is L2-normalized so inner product equals
// cosine similarity.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = NormalizeText(t)
	}

	vectors := make([][]float32, len(normalized))
	var misses []int

	if c.cache != nil {
		for i, t := range normalized {
			vec, ok, err := c.cache.GetEmbedding(ctx, utils.HashString(t))
			if err != nil {
				logger.Warn("Embedding cache lookup failed", zap.Error(err))
			}
			if ok && len(vec) == c.dim {
				vectors[i] = vec
				continue
			}
			misses = append(misses, i)
		}
	} else {
		misses = make([]int, len(normalized))
		for i := range misses {
			misses[i] = i
		}
	}

	for start := 0; start < len(misses); start += batchSize {
		end := start + batchSize
		if end > len(misses) {
			end = len(misses)
		}
		batchIdx := misses[start:end]
		batch := make([]string, len(batchIdx))
		for i, idx := range batchIdx {
			batch[i] = normalized[idx]
		}

		embedded, err := c.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		for i, idx := range batchIdx {
			vectors[idx] = embedded[i]
			if c.cache != nil {
				if err := c.cache.SetEmbedding(ctx, utils.HashString(normalized[idx]), embedded[i]); err != nil {
					logger.Warn("Embedding cache store failed", zap.Error(err))
				}
			}
		}
	}

	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var embedded [][]float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(c.model),
			})
			if err != nil {
				return fmt.Errorf("failed to create embeddings: %w", err)
			}
			if len(resp.Data) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Data), len(batch))
			}

			embedded = embedded[:0]
			for _, data := range resp.Data {
				if len(data.Embedding) != c.dim {
					return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(data.Embedding), c.dim)
				}
				vec := make([]float32, c.dim)
				copy(vec, data.Embedding)
				Normalize(vec)
				embedded = append(embedded, vec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Batch embedded", zap.Int("count", len(embedded)))
	return embedded, nil
}

// NormalizeText collapses whitespace so superficially different copies of
// the same content hash and embed identically.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// Normalize scales the vector to unit length in place. Zero vectors are
// left untouched.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
