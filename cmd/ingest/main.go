package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agu-rag/backend/internal/cache/redis"
	"github.com/agu-rag/backend/internal/chunker"
	"github.com/agu-rag/backend/internal/embedding"
	"github.com/agu-rag/backend/internal/ingestion"
	"github.com/agu-rag/backend/internal/knowledge"
	"github.com/agu-rag/backend/internal/language"
	"github.com/agu-rag/backend/internal/metrics"
	"github.com/agu-rag/backend/internal/storage/sqlite"
	"github.com/agu-rag/backend/internal/vector/milvus"
	"github.com/agu-rag/backend/pkg/config"
	appLogger "github.com/agu-rag/backend/pkg/logger"
)

const (
	siteDataFile = "scraped_content.json"
	faqDataFile  = "parsed_documents.json"
)

var cfg *config.Config

func main() {
	root := &cobra.Command{
		Use:   "ingest",
		Short: "Build the university knowledge base",
		Long: `ingest loads university content into the knowledge store in three steps:
scrape pulls configured web pages, parse reads FAQ documents (PDF, DOCX),
and index chunks, embeds and stores everything collected so far.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
		},
	}

	root.AddCommand(scrapeCmd(), parseCmd(), indexCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Scrape configured university web pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer appLogger.Sync()

			if len(cfg.Ingestion.Sites) == 0 {
				return fmt.Errorf("no sites configured")
			}

			loader := ingestion.NewWebLoader()
			docs := loader.LoadSites(cmd.Context(), cfg.Ingestion.Sites)

			path := filepath.Join(cfg.Ingestion.DataDir, siteDataFile)
			if err := ingestion.WriteDocuments(path, docs); err != nil {
				return err
			}

			appLogger.Info("Scrape complete",
				zap.Int("sites", len(cfg.Ingestion.Sites)),
				zap.Int("documents", len(docs)),
				zap.String("output", path),
			)
			return nil
		},
	}
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Parse FAQ documents (PDF and DOCX) from the docs directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer appLogger.Sync()

			loader := ingestion.NewFileLoader()
			docs, err := loader.LoadDir(cfg.Ingestion.DocsDir)
			if err != nil {
				return err
			}

			path := filepath.Join(cfg.Ingestion.DataDir, faqDataFile)
			if err := ingestion.WriteDocuments(path, docs); err != nil {
				return err
			}

			appLogger.Info("Parse complete",
				zap.Int("documents", len(docs)),
				zap.String("output", path),
			)
			return nil
		},
	}
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Chunk, embed and store all collected documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer appLogger.Sync()
			metrics.Init()

			var docs []knowledge.Document
			for _, name := range []string{siteDataFile, faqDataFile} {
				path := filepath.Join(cfg.Ingestion.DataDir, name)
				loaded, err := ingestion.ReadDocuments(path)
				if err != nil {
					return err
				}
				if loaded == nil {
					appLogger.Warn("Data file missing, skipping", zap.String("path", path))
					continue
				}
				docs = append(docs, loaded...)
			}

			if len(docs) == 0 {
				return fmt.Errorf("nothing to index: run scrape and parse first")
			}

			ctx := cmd.Context()

			sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
			if err != nil {
				return err
			}
			defer sqliteClient.Close()

			if err := sqliteClient.InitSchema(); err != nil {
				return err
			}

			milvusClient, err := milvus.NewClient(ctx, cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Models.EmbeddingDim)
			if err != nil {
				return err
			}
			defer milvusClient.Close()

			if err := milvusClient.EnsureCollection(ctx); err != nil {
				return err
			}

			var redisClient *redis.Client
			if cfg.Redis.Enabled {
				ttl := time.Duration(cfg.Redis.TTLSec) * time.Second
				redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, ttl, ttl)
				if err != nil {
					appLogger.Warn("Redis unavailable, indexing without cache", zap.Error(err))
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

			ch, err := chunker.New(cfg.Ingestion.ChunkSize, cfg.Ingestion.MinChunkSize, cfg.Ingestion.OverlapFraction)
			if err != nil {
				return err
			}

			detector := language.NewDetector(
				language.ParseTag(cfg.Language.Fallback),
				cfg.Language.ConfidenceThreshold,
			)

			processor := ingestion.NewProcessor(ch, detector, embedder, milvusClient, sqliteClient)

			stats, err := processor.BuildIndex(ctx, docs)
			if err != nil {
				return err
			}

			// Knowledge changed; cached answers may now be stale.
			if redisClient != nil {
				if err := redisClient.InvalidateAnswers(context.Background()); err != nil {
					appLogger.Warn("Failed to invalidate answer cache", zap.Error(err))
				}
			}

			appLogger.Info("Index complete",
				zap.Int("documents", stats.Documents),
				zap.Int("chunks", stats.Chunks),
				zap.Int("skipped", stats.Skipped),
			)
			return nil
		},
	}
}
