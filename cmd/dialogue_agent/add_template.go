package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/templates"
)

var addTemplateCmd = &cobra.Command{
	Use:   "add-template <name> <file>",
	Short: "Store a prompt template and print its id",
	Long:  `Reads a template body from a file, checks that its placeholders are well formed, and stores it for use with generate --template-id.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runAddTemplate,
}

var addTemplateDatabaseURL string

func init() {
	addTemplateCmd.Flags().StringVar(&addTemplateDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(addTemplateCmd)
}

func runAddTemplate(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	name, path := args[0], args[1]

	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template file: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("template file %s is empty", path)
	}

	if names := templates.Placeholders(string(body)); len(names) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "Warning: template has no placeholders; every generation will use the same prompt")
	}

	databaseURL := addTemplateDatabaseURL
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

	id, err := database.CreateTemplate(ctx, name, string(body))
	if err != nil {
		return fmt.Errorf("failed to store template: %w", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "Template %q stored: %s\n", name, id)
	return nil
}
