// Package types provides type definitions for structured data used throughout the dialogue-forge system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn
type Role string

// Turn roles
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether the role is one of the known turn roles
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// EmotionalContext carries the emotional metadata attached to a turn
type EmotionalContext struct {
	PrimaryEmotion    string   `json:"primary_emotion"`
	Intensity         float64  `json:"intensity"` // 0.0 - 1.0
	SecondaryEmotions []string `json:"secondary_emotions,omitempty"`
}

// Turn represents a single utterance in a generated conversation
type Turn struct {
	Index            int              `json:"turn_number"`
	Role             Role             `json:"role"`
	Content          string           `json:"content"`
	EmotionalContext EmotionalContext `json:"emotional_context"`
}

// ParseMethod records how a final artifact was obtained from raw text
type ParseMethod string

// Parse methods for a final artifact
const (
	ParseMethodDirect   ParseMethod = "direct"
	ParseMethodRepaired ParseMethod = "repaired"
	ParseMethodFailed   ParseMethod = "failed"
)

// Conversation is the top-level structure the LLM is asked to produce
type Conversation struct {
	Topic    string         `json:"topic,omitempty"`
	Turns    []Turn         `json:"turns"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FinalArtifact is the parsed, structurally valid conversation derived from a
// raw artifact via direct parse or repair
type FinalArtifact struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	Turns          []Turn      `json:"turns"`
	ParseMethod    ParseMethod `json:"parse_method"`
	CreatedAt      time.Time   `json:"created_at"`
}
