// Package types provides type definitions for structured data used throughout the dialogue-forge system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"github.com/google/uuid"
)

// ItemStatus represents the lifecycle state of a work item
type ItemStatus string

// Work item statuses. Transitions are soft: items are never deleted
// individually, only moved between statuses by the orchestrator.
const (
	ItemQueued     ItemStatus = "queued"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemCancelled  ItemStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal item state
func (s ItemStatus) IsTerminal() bool {
	return s == ItemCompleted || s == ItemFailed || s == ItemCancelled
}

// WorkItem is one unit of generation work owned by a batch job
type WorkItem struct {
	ID           uuid.UUID  `json:"id"`
	BatchID      uuid.UUID  `json:"batch_id"`
	Position     int        `json:"position"`
	Topic        string     `json:"topic"`
	Tier         string     `json:"tier,omitempty"`
	TemplateID   uuid.UUID  `json:"template_id"`
	Parameters   Params     `json:"parameters,omitempty"`
	Status       ItemStatus `json:"status"`
	ResultRef    *uuid.UUID `json:"result_ref,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// WorkItemSpec is the caller-supplied description of one item at batch submission
type WorkItemSpec struct {
	Topic      string    `json:"topic"`
	Tier       string    `json:"tier,omitempty"`
	TemplateID uuid.UUID `json:"template_id"`
	Parameters Params    `json:"parameters,omitempty"`
}
