// Package validation checks raw LLM responses for completeness before
// anything downstream treats them as trusted.
package validation

import (
	"fmt"

	"github.com/jonathan/dialogue-forge/internal/truncation"
)

// UnexpectedStopReasonError signals that the provider ended generation for a
// reason outside the configured allow-list
type UnexpectedStopReasonError struct {
	StopReason string
}

func (e *UnexpectedStopReasonError) Error() string {
	return fmt.Sprintf("unexpected stop reason: %q", e.StopReason)
}

// TruncatedResponseError signals content-level truncation, either of the raw
// response text or inside a specific assistant turn
type TruncatedResponseError struct {
	Pattern    truncation.Pattern
	Confidence truncation.Confidence
	TurnIndex  *int
}

func (e *TruncatedResponseError) Error() string {
	if e.TurnIndex != nil {
		return fmt.Sprintf("truncated response: pattern %q in turn %d", e.Pattern, *e.TurnIndex)
	}
	return fmt.Sprintf("truncated response: pattern %q", e.Pattern)
}
