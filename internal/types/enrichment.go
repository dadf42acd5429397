// Package types provides type definitions for structured data used throughout the dialogue-forge system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// EnrichmentStatus is the persisted cursor of the staged enrichment pipeline
type EnrichmentStatus string

// Enrichment statuses. Transitions are monotonic forward except the explicit
// retry operation, which resets to not_started.
const (
	EnrichmentNotStarted          EnrichmentStatus = "not_started"
	EnrichmentValidated           EnrichmentStatus = "validated"
	EnrichmentValidationFailed    EnrichmentStatus = "validation_failed"
	EnrichmentInProgress          EnrichmentStatus = "enrichment_in_progress"
	EnrichmentEnriched            EnrichmentStatus = "enriched"
	EnrichmentNormalizationFailed EnrichmentStatus = "normalization_failed"
	EnrichmentCompleted           EnrichmentStatus = "completed"
)

// Finding is a single validation observation on a raw conversation
type Finding struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	TurnIndex *int   `json:"turn_index,omitempty"`
}

// ValidationReport buckets findings into blockers (halt the pipeline) and
// warnings (recorded but non-fatal)
type ValidationReport struct {
	Blockers []Finding `json:"blockers"`
	Warnings []Finding `json:"warnings"`
}

// HasBlockers reports whether any blocking finding was recorded
func (r *ValidationReport) HasBlockers() bool {
	return len(r.Blockers) > 0
}

// EnrichmentRecord is the per-conversation state machine cursor
type EnrichmentRecord struct {
	ConversationID uuid.UUID         `json:"conversation_id"`
	Status         EnrichmentStatus  `json:"status"`
	Report         *ValidationReport `json:"validation_report,omitempty"`
	LastError      *string           `json:"last_error,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// QualityBreakdown is the per-criterion score decomposition attached to a
// training pair, derived by perturbing the overall score with bounded jitter
type QualityBreakdown struct {
	Empathy     float64 `json:"empathy"`
	Coherence   float64 `json:"coherence"`
	Safety      float64 `json:"safety"`
	Helpfulness float64 `json:"helpfulness"`
	Overall     float64 `json:"overall"`
}

// PairMetadata carries dataset-level metadata for one training pair.
// Scaffolding identifiers from the original generation input are carried
// forward verbatim, never regenerated.
type PairMetadata struct {
	PersonaID       string           `json:"persona_id,omitempty"`
	EmotionalArcID  string           `json:"emotional_arc_id,omitempty"`
	TopicID         string           `json:"topic_id,omitempty"`
	TemplateID      string           `json:"template_id,omitempty"`
	PrimaryEmotion  string           `json:"primary_emotion,omitempty"`
	EmotionValence  string           `json:"emotion_valence,omitempty"` // positive|negative|mixed
	QualityScores   QualityBreakdown `json:"quality_scores"`
	GenerationModel string           `json:"generation_model,omitempty"`
}

// TrainingPair is one enriched, self-contained turn record suitable for
// fine-tuning, derived from a raw conversation turn
type TrainingPair struct {
	TurnIndex        int          `json:"turn_number"`
	History          []Turn       `json:"conversation_history"`
	CurrentUserInput string       `json:"current_user_input"`
	Response         string       `json:"response"`
	Metadata         PairMetadata `json:"metadata"`
}

// EnrichedConversation is the dataset-ready structure produced by the enrich
// stage and normalized before persistence
type EnrichedConversation struct {
	ConversationID uuid.UUID      `json:"conversation_id"`
	Topic          string         `json:"topic,omitempty"`
	Turns          []Turn         `json:"turns"`
	TrainingPairs  []TrainingPair `json:"training_pairs"`
	Dataset        map[string]any `json:"dataset_metadata,omitempty"`
	EnrichedAt     time.Time      `json:"enriched_at"`
}

// EnrichmentResult is the caller-facing outcome of one pipeline run
type EnrichmentResult struct {
	Success         bool             `json:"success"`
	FinalStatus     EnrichmentStatus `json:"final_status"`
	StagesCompleted []string         `json:"stages_completed"`
	Error           string           `json:"error,omitempty"`
}
