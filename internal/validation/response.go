package validation

import (
	"encoding/json"

	"github.com/jonathan/dialogue-forge/internal/llm"
	"github.com/jonathan/dialogue-forge/internal/truncation"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// Validator applies stop-reason and truncation checks to a raw LLM response.
// The stop-reason allow-list is injected so callers can widen the policy if
// non-length abnormal stops (tool use, etc.) become legitimate.
type Validator struct {
	allowed map[string]struct{}
}

// NewValidator builds a validator accepting the given stop reasons. An empty
// list falls back to natural completion only.
func NewValidator(allowedStopReasons []string) *Validator {
	if len(allowedStopReasons) == 0 {
		allowedStopReasons = []string{types.StopReasonStop}
	}
	allowed := make(map[string]struct{}, len(allowedStopReasons))
	for _, reason := range allowedStopReasons {
		allowed[reason] = struct{}{}
	}
	return &Validator{allowed: allowed}
}

// Validate rejects a response before it can be persisted as trusted.
//
// Checks run fail-fast: (1) the provider stop reason must be in the
// allow-list; (2) the raw text must not look truncated; (3) if the text
// parses as a conversation, every assistant turn is checked for truncation
// hidden inside an otherwise well-formed container. A parse failure in step 3
// is swallowed so downstream repair gets its chance; only an explicit
// truncation signal propagates.
func (v *Validator) Validate(resp *llm.Response) error {
	if _, ok := v.allowed[resp.StopReason]; !ok {
		return &UnexpectedStopReasonError{StopReason: resp.StopReason}
	}

	if r := truncation.Detect(resp.Content); r.IsTruncated {
		return &TruncatedResponseError{Pattern: r.Pattern, Confidence: r.Confidence}
	}

	var conv types.Conversation
	if err := json.Unmarshal([]byte(resp.Content), &conv); err != nil {
		return nil
	}
	if finding := truncation.DetectInTurns(conv.Turns); finding != nil {
		idx := finding.TurnIndex
		return &TruncatedResponseError{
			Pattern:    finding.Result.Pattern,
			Confidence: finding.Result.Confidence,
			TurnIndex:  &idx,
		}
	}

	return nil
}
