package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/api/handlers"
	"github.com/agu-rag/backend/internal/cache/redis"
	"github.com/agu-rag/backend/internal/embedding"
	"github.com/agu-rag/backend/internal/generation"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/metrics"
	"github.com/agu-rag/backend/internal/middleware/ratelimit"
	"github.com/agu-rag/backend/internal/middleware/security"
	"github.com/agu-rag/backend/internal/prompt"
	"github.com/agu-rag/backend/internal/query"
	"github.com/agu-rag/backend/internal/storage/sqlite"
	"github.com/agu-rag/backend/internal/translation"
	"github.com/agu-rag/backend/internal/vector/milvus"
	"github.com/agu-rag/backend/pkg/config"
	appLogger "github.com/agu-rag/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting university assistant API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		context.Background(),
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Models.EmbeddingDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.EnsureCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		ttl := time.Duration(cfg.Redis.TTLSec) * time.Second
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, ttl, ttl)
		if err != nil {
			// The cache is an accelerator; the service runs without it.
			appLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	embedder := embedding.NewClient(
		cfg.Models.BaseURL,
		cfg.Models.APIKey,
		cfg.Models.EmbeddingModel,
		cfg.Models.EmbeddingDim,
	)
	if redisClient != nil {
		embedder = embedder.WithCache(redisClient)
	}

	translator := translation.NewClient(
		cfg.Models.BaseURL,
		cfg.Models.APIKey,
		cfg.Models.Translator.ModelTREN,
		cfg.Models.Translator.ModelENTR,
		cfg.Models.Translator.TimeoutSec,
	)

	generator := generation.NewClient(
		cfg.Models.BaseURL,
		cfg.Models.APIKey,
		cfg.Models.Generator.Model,
		cfg.Models.Generator.Temperature,
		cfg.Models.Generator.MaxTokens,
		cfg.Models.Generator.TimeoutSec,
	)

	post := generation.NewPostProcessor(
		cfg.Models.Generator.MaxAnswerSentences,
		cfg.Models.Generator.NoAnswerPhrases,
	)

	detector := language.NewDetector(
		language.ParseTag(cfg.Language.Fallback),
		cfg.Language.ConfidenceThreshold,
	)

	engine := query.NewEngine(
		detector,
		embedder,
		milvusClient,
		query.NewReconciler(detector, translator),
		prompt.NewBuilder(cfg.Prompt.MaxChars),
		generator,
		post,
		cfg.Retrieval.TopK,
	).WithRecorder(sqlite.NewRecorder(sqliteClient))

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RateLimit,
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())

	var answerCache handlers.AnswerCache
	if redisClient != nil {
		answerCache = redisClient
	}

	chatHandler := handlers.NewChatHandler(engine, answerCache)
	historyHandler := handlers.NewHistoryHandler(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")
	api.Post("/chat", chatHandler.HandleChat)
	api.Get("/query/history", historyHandler.GetHistory)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
