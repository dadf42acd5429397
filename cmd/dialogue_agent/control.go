package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Lifecycle operations act on the process that owns the batch, so these
// commands talk to a running serve instance rather than the database.

var controlServerURL string

var pauseCmd = &cobra.Command{
	Use:   "pause <batch-id>",
	Short: "Pause dispatch of a running batch",
	Long:  `Stops new items from being dispatched. In-flight items run to completion. Resume with the resume command.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return postLifecycleOp(args[0], "pause")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <batch-id>",
	Short: "Resume a paused batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return postLifecycleOp(args[0], "resume")
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <batch-id>",
	Short: "Cancel a batch, marking queued items cancelled",
	Long:  `In-flight items run to completion and record their outcome; items still queued are marked cancelled.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return postLifecycleOp(args[0], "cancel")
	},
}

func init() {
	for _, cmd := range []*cobra.Command{pauseCmd, resumeCmd, cancelCmd} {
		cmd.Flags().StringVar(&controlServerURL, "server", "http://localhost:8080", "Base URL of the running serve process")
		rootCmd.AddCommand(cmd)
	}
}

func postLifecycleOp(batchID, op string) error {
	jobID, err := uuid.Parse(batchID)
	if err != nil {
		return fmt.Errorf("invalid batch id format: %w", err)
	}

	url := fmt.Sprintf("%s/batches/%s/%s", strings.TrimRight(controlServerURL, "/"), jobID, op)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed: %s: %s", op, resp.Status, strings.TrimSpace(string(body)))
	}
	_, _ = fmt.Fprintf(os.Stdout, "Batch %s: %s accepted\n", jobID, op)
	return nil
}
