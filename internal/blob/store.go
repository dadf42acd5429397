// Package blob provides object storage for generation artifacts: raw LLM
// output, parsed conversations, enriched datasets, and diagnostic reports.
package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the object-store abstraction the pipelines write artifacts
// through. Implementations must treat writes as whole-object replacement.
type Store interface {
	// Put writes data under key
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the object at key
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether an object is stored under key
	Exists(ctx context.Context, key string) (bool, error)
	// PresignDownload issues a time-limited signed URL for downloading key
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Artifact key layout. Raw artifacts are immutable: the generation pipeline
// never overwrites an existing raw key.

// RawKey is the object key for a conversation's raw LLM output
func RawKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("raw/%s.txt", conversationID)
}

// FinalKey is the object key for a conversation's parsed final artifact
func FinalKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("final/%s.json", conversationID)
}

// EnrichedKey is the object key for a conversation's enriched dataset artifact
func EnrichedKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("enriched/%s.json", conversationID)
}

// ErrorReportKey is the object key for a failed-generation diagnostic report
func ErrorReportKey(recordID uuid.UUID) string {
	return fmt.Sprintf("errors/%s.json", recordID)
}
