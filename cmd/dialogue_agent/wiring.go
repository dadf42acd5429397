package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/dialogue-forge/internal/batch"
	"github.com/jonathan/dialogue-forge/internal/blob"
	"github.com/jonathan/dialogue-forge/internal/config"
	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/enrichment"
	"github.com/jonathan/dialogue-forge/internal/generation"
	"github.com/jonathan/dialogue-forge/internal/llm"
	"github.com/jonathan/dialogue-forge/internal/observability"
	"github.com/jonathan/dialogue-forge/internal/templates"
	"github.com/jonathan/dialogue-forge/internal/validation"
)

// services holds the wired application stack shared by the generate and
// serve commands.
type services struct {
	database   *db.DB
	blobs      blob.Store
	batches    *batch.Orchestrator
	enrichment *enrichment.Pipeline
	logger     *zap.Logger
}

// resolveSecrets fills the API key and database URL from the environment
// when the merged config does not carry them
func resolveSecrets(cfg *config.Config) error {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}
	return nil
}

// openBlobStore returns an S3-backed store when a bucket is configured,
// otherwise an in-process store for local runs
func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if cfg.S3Bucket == "" {
		return blob.NewMemory(), nil
	}
	return blob.NewS3Store(ctx, blob.S3Config{
		Bucket:       cfg.S3Bucket,
		Prefix:       cfg.S3Prefix,
		Region:       cfg.S3Region,
		Endpoint:     cfg.S3Endpoint,
		UsePathStyle: cfg.S3PathStyle,
	})
}

// buildServices connects storage and the LLM provider and wires the
// generation, batch and enrichment pipelines
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	logger := observability.NewLogger(cfg.Verbose)

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	cache := templates.NewCache(time.Duration(cfg.TemplateCacheTTLSeconds) * time.Second)
	resolver := templates.NewResolver(database, cache)
	validator := validation.NewValidator(cfg.AllowedStopReasons)
	pipe := generation.NewPipeline(client, resolver, database, blobs, validator, logger)

	return &services{
		database:   database,
		blobs:      blobs,
		batches:    batch.NewOrchestrator(database, pipe, logger),
		enrichment: enrichment.NewPipeline(database, blobs, logger),
		logger:     logger,
	}, nil
}

func (s *services) close() {
	s.database.Close()
	_ = s.logger.Sync()
}
