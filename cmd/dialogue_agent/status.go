package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/observability"
	"github.com/jonathan/dialogue-forge/internal/types"
)

var statusDatabaseURL string

var statusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Show progress for a batch job",
	Long:  `Reads the persisted batch record directly from the database, so it works whether or not the batch is owned by a live process.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	jobID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid batch id format: %w", err)
	}

	databaseURL := statusDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	job, err := database.GetBatchJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load batch %s: %w", jobID, err)
	}

	observability.NewPrinter(os.Stdout).PrintBatchProgress(&types.BatchProgress{
		Status:                    job.Status,
		TotalItems:                job.TotalItems,
		CompletedItems:            job.CompletedItems,
		SuccessfulItems:           job.SuccessfulItems,
		FailedItems:               job.FailedItems,
		EstimatedRemainingSeconds: job.EstimatedRemainingSeconds,
	})
	return nil
}
