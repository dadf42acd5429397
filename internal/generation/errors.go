// Package generation orchestrates one work item end to end: resolve the
// prompt, call the provider, validate the response, persist the raw artifact,
// parse, and persist the final artifact.
package generation

import (
	"fmt"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// APICallError represents a transport-level failure calling the LLM provider
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call failed: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// RejectedResponseError signals that validation refused an LLM response
// before any trusted write. It carries the diagnostic record that was stored.
type RejectedResponseError struct {
	Record *types.FailedGenerationRecord
	Cause  error
}

func (e *RejectedResponseError) Error() string {
	return fmt.Sprintf("response rejected (%s): %v", e.Record.FailureType, e.Cause)
}

func (e *RejectedResponseError) Unwrap() error {
	return e.Cause
}
