// Package types provides type definitions for structured data used throughout the dialogue-forge system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Canonical stop-reason values reported by the LLM transport.
// "stop" is natural completion; everything else is an anomaly the
// response validator treats per its configured allow-list.
const (
	StopReasonStop       = "stop"
	StopReasonMaxTokens  = "max_tokens"
	StopReasonSafety     = "safety"
	StopReasonRecitation = "recitation"
	StopReasonOther      = "other"
)

// TokenUsage records provider-reported token counts for one request
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// RawArtifact is the unmodified text returned by the LLM for one work item,
// plus provenance. Once written it is never mutated; repair and parse always
// produce a new derived artifact.
type RawArtifact struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	Content        string     `json:"content"`
	ModelID        string     `json:"model_id"`
	StopReason     string     `json:"stop_reason"`
	TokenUsage     TokenUsage `json:"token_usage"`
	CreatedAt      time.Time  `json:"created_at"`
}

// FailureType classifies why a generation was rejected
type FailureType string

// Failure types for diagnostic records
const (
	FailureTruncation      FailureType = "truncation"
	FailureParseError      FailureType = "parse_error"
	FailureAPIError        FailureType = "api_error"
	FailureValidationError FailureType = "validation_error"
)

// FailedGenerationRecord is an append-only diagnostic record captured whenever
// validation or parsing rejects a response. Never mutated after creation.
type FailedGenerationRecord struct {
	ID                uuid.UUID   `json:"id"`
	WorkItemID        uuid.UUID   `json:"work_item_id"`
	Prompt            string      `json:"prompt"`
	RawResponse       string      `json:"raw_response"`
	StopReason        string      `json:"stop_reason"`
	TokenUsage        TokenUsage  `json:"token_usage"`
	FailureType       FailureType `json:"failure_type"`
	TruncationPattern string      `json:"truncation_pattern,omitempty"`
	ErrorMessage      string      `json:"error_message"`
	CreatedAt         time.Time   `json:"created_at"`
}
