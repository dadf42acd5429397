package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/dialogue-forge/internal/config"
	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/enrichment"
	"github.com/jonathan/dialogue-forge/internal/observability"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <conversation-id>",
	Short: "Run the enrichment pipeline for one conversation",
	Long: `Runs validate -> enrich -> normalize -> persist for a completed conversation.
Each stage records its status, so a re-run resumes from the last persisted stage.
Use --retry to reset a failed conversation and start over from validation.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

var (
	enrichConfigPath  string
	enrichDatabaseURL string
	enrichS3Bucket    string
	enrichRetry       bool
	enrichVerbose     bool
)

func init() {
	enrichCmd.Flags().StringVar(&enrichConfigPath, "config", "", "Path to config.json file")
	enrichCmd.Flags().StringVar(&enrichDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	enrichCmd.Flags().StringVar(&enrichS3Bucket, "s3-bucket", "", "S3 bucket for artifact storage (optional, in-memory store when unset)")
	enrichCmd.Flags().BoolVar(&enrichRetry, "retry", false, "Reset enrichment state and start over from validation")
	enrichCmd.Flags().BoolVarP(&enrichVerbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conversationID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid conversation id format: %w", err)
	}

	var cfg config.Config
	if enrichConfigPath != "" {
		loadedCfg, err := config.LoadConfig(enrichConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}
		cfg = *loadedCfg
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = enrichDatabaseURL
	}
	if cmd.Flags().Changed("s3-bucket") {
		cfg.S3Bucket = enrichS3Bucket
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = enrichVerbose
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	// Enrichment never calls the LLM provider, so the stack here is just
	// storage plus the pipeline.
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	logger := observability.NewLogger(cfg.Verbose)
	defer func() { _ = logger.Sync() }()
	pipe := enrichment.NewPipeline(database, blobs, logger)

	run := pipe.Run
	if enrichRetry {
		run = pipe.Retry
	}
	res, err := run(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("enrichment failed: %w", err)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintEnrichmentResult(res)

	if rec, recErr := database.GetEnrichmentRecord(ctx, conversationID); recErr == nil && rec != nil && rec.Report != nil {
		printer.PrintValidationReport(rec.Report)
	}

	if !res.Success {
		return fmt.Errorf("enrichment ended at status %s", res.FinalStatus)
	}
	return nil
}
