package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/dialogue-forge/internal/config"
	"github.com/jonathan/dialogue-forge/internal/observability"
	"github.com/jonathan/dialogue-forge/internal/types"
)

var generateCommand = &cobra.Command{
	Use:   "generate",
	Short: "Submit a batch of dialogue generations and wait for completion",
	Long: `Submits one work item per topic repetition, runs the batch with bounded
concurrency, and blocks until every item reaches a terminal status.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runGenerateCmd,
}

var (
	genConfigPath    string
	genTopics        []string
	genCount         int
	genTemplateID    string
	genTier          string
	genConcurrency   int
	genFailurePolicy string
	genAPIKey        string
	genDatabaseURL   string
	genS3Bucket      string
	genVerbose       bool
)

func init() {
	// Config file flag (processed first)
	generateCommand.Flags().StringVar(&genConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	generateCommand.Flags().StringArrayVarP(&genTopics, "topic", "t", nil, "Conversation topic (repeatable)")
	generateCommand.Flags().IntVarP(&genCount, "count", "n", 1, "Conversations to generate per topic")
	generateCommand.Flags().StringVar(&genTemplateID, "template-id", "", "Prompt template UUID (required)")
	generateCommand.Flags().StringVar(&genTier, "tier", "", "Model tier: lite, standard or advanced")
	generateCommand.Flags().IntVar(&genConcurrency, "concurrency", 0, "Maximum in-flight generations")
	generateCommand.Flags().StringVar(&genFailurePolicy, "failure-policy", "", "On item failure: continue or stop")
	generateCommand.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	generateCommand.Flags().StringVar(&genAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for batch and conversation persistence
	generateCommand.Flags().StringVar(&genDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	generateCommand.Flags().StringVar(&genS3Bucket, "s3-bucket", "", "S3 bucket for artifact storage (optional, in-memory store when unset)")

	rootCmd.AddCommand(generateCommand)
}

func runGenerateCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if genConfigPath != "" {
		loadedCfg, err := config.LoadConfig(genConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if genVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", genConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("tier") {
		cfg.ModelTier = genTier
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.ConcurrencyLimit = genConcurrency
	}
	if cmd.Flags().Changed("failure-policy") {
		cfg.FailurePolicy = genFailurePolicy
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = genAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = genDatabaseURL
	}
	if cmd.Flags().Changed("s3-bucket") {
		cfg.S3Bucket = genS3Bucket
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = genVerbose
	}

	// Step 3: Apply defaults for unset values
	cfg = cfg.MergeWithDefaults(config.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Step 4: Validate required inputs
	if len(genTopics) == 0 {
		return fmt.Errorf("at least one --topic is required")
	}
	if genTemplateID == "" {
		return fmt.Errorf("--template-id is required")
	}
	templateID, err := uuid.Parse(genTemplateID)
	if err != nil {
		return fmt.Errorf("invalid template-id format: %w", err)
	}

	specs, err := buildWorkItemSpecs(genTopics, genCount, templateID, cfg.ModelTier)
	if err != nil {
		return err
	}

	// Step 5: Secrets from flags, config or environment
	if err := resolveSecrets(&cfg); err != nil {
		return err
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	jobID, err := svc.batches.StartBatch(ctx, specs, cfg.ConcurrencyLimit, types.FailurePolicy(cfg.FailurePolicy))
	if err != nil {
		return fmt.Errorf("failed to start batch: %w", err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "Batch %s started: %d items, concurrency %d, on failure %s\n",
		jobID, len(specs), cfg.ConcurrencyLimit, cfg.FailurePolicy)

	svc.batches.Wait(jobID)

	progress, err := svc.batches.GetBatchStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to read final batch status: %w", err)
	}
	observability.NewPrinter(os.Stdout).PrintBatchProgress(progress)

	if progress.Status != types.BatchCompleted {
		return fmt.Errorf("batch finished with status %s", progress.Status)
	}
	return nil
}

// buildWorkItemSpecs expands topics into one spec per repetition, preserving
// topic order so item positions are deterministic
func buildWorkItemSpecs(topics []string, count int, templateID uuid.UUID, tier string) ([]types.WorkItemSpec, error) {
	if count < 1 {
		return nil, fmt.Errorf("--count must be at least 1, got %d", count)
	}
	specs := make([]types.WorkItemSpec, 0, len(topics)*count)
	for _, topic := range topics {
		if topic == "" {
			return nil, fmt.Errorf("topic must not be empty")
		}
		for i := 0; i < count; i++ {
			specs = append(specs, types.WorkItemSpec{
				Topic:      topic,
				Tier:       tier,
				TemplateID: templateID,
				Parameters: types.Params{"topic": types.StringParam(topic)},
			})
		}
	}
	return specs, nil
}
