// Package types provides type definitions for structured data used throughout the dialogue-forge system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the lifecycle state of a batch job
type BatchStatus string

// Batch statuses
const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchPaused     BatchStatus = "paused"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchCancelled  BatchStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal batch state
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed || s == BatchCancelled
}

// FailurePolicy controls what a batch does when an item fails
type FailurePolicy string

// Failure policies
const (
	// FailureContinue records the failure and keeps dispatching remaining items
	FailureContinue FailurePolicy = "continue"
	// FailureStop halts dispatch of not-yet-started items on the first failure;
	// in-flight items still finish and record their outcome
	FailureStop FailurePolicy = "stop"
)

// BatchJob tracks aggregate state for a set of work items.
// Invariant: CompletedItems == SuccessfulItems + FailedItems <= TotalItems.
type BatchJob struct {
	ID                        uuid.UUID     `json:"id"`
	TotalItems                int           `json:"total_items"`
	CompletedItems            int           `json:"completed_items"`
	SuccessfulItems           int           `json:"successful_items"`
	FailedItems               int           `json:"failed_items"`
	Status                    BatchStatus   `json:"status"`
	ConcurrencyLimit          int           `json:"concurrency_limit"`
	FailurePolicy             FailurePolicy `json:"failure_policy"`
	StartedAt                 *time.Time    `json:"started_at,omitempty"`
	CompletedAt               *time.Time    `json:"completed_at,omitempty"`
	EstimatedRemainingSeconds *float64      `json:"estimated_remaining_seconds,omitempty"`
}

// BatchProgress is the caller-facing progress snapshot for a batch
type BatchProgress struct {
	Status                    BatchStatus `json:"status"`
	TotalItems                int         `json:"total_items"`
	CompletedItems            int         `json:"completed_items"`
	SuccessfulItems           int         `json:"successful_items"`
	FailedItems               int         `json:"failed_items"`
	EstimatedRemainingSeconds *float64    `json:"estimated_remaining_seconds,omitempty"`
}
