// Package main provides the entry point for the Dialogue Forge CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dialogue_agent",
	Short: "Dialogue Forge synthetic conversation generator",
	Long:  "Dialogue Forge generates validated multi-turn dialogue transcripts for fine-tuning datasets, batched with bounded concurrency and enriched into training pairs.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
