package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// Conversation status constants. A conversation row only exists once a raw
// artifact passed validation; trusted rows are the input to enrichment.
const (
	ConversationPendingParse = "pending_parse"
	ConversationCompleted    = "completed"
	ConversationNeedsReview  = "needs_review"
)

// ConversationRow is the relational record for one generated conversation.
// Blob keys point at the object store; raw provenance is denormalized here so
// retry and diagnosis never need to re-read the blob.
type ConversationRow struct {
	ID           uuid.UUID         `json:"id"`
	WorkItemID   uuid.UUID         `json:"work_item_id"`
	Topic        string            `json:"topic"`
	Status       string            `json:"status"`
	RawBlobKey   string            `json:"raw_blob_key"`
	FinalBlobKey *string           `json:"final_blob_key,omitempty"`
	ModelID      string            `json:"model_id"`
	StopReason   string            `json:"stop_reason"`
	TokenUsage   types.TokenUsage  `json:"token_usage"`
	ParseMethod  types.ParseMethod `json:"parse_method,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TemplateRow is a stored prompt template
type TemplateRow struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ReferenceRow is a generic reference-data record (persona, emotional arc,
// topic) merged into conversations during enrichment
type ReferenceRow struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Attributes map[string]any `json:"attributes"`
}
