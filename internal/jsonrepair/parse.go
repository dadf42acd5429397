package jsonrepair

import (
	"encoding/json"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// Outcome is the result of the three-tier parse strategy.
type Outcome struct {
	// Text is the variant that parsed (original or repaired). Empty when
	// Method is failed.
	Text string
	// Value holds the decoded document when parsing succeeded.
	Value json.RawMessage
	// Method records which tier produced the result.
	Method types.ParseMethod
}

// Parse attempts to parse text as JSON using the three-tier strategy:
// as-is first, then repaired, and finally marking the text for manual review.
// It never returns an error; a failed outcome carries the original text so
// callers can surface it for review.
func Parse(text string) Outcome {
	if raw, ok := tryParse(text); ok {
		return Outcome{Text: text, Value: raw, Method: types.ParseMethodDirect}
	}

	repaired := Repair(text)
	if raw, ok := tryParse(repaired); ok {
		return Outcome{Text: repaired, Value: raw, Method: types.ParseMethodRepaired}
	}

	return Outcome{Method: types.ParseMethodFailed}
}

// ParseConversation runs the three-tier strategy and decodes the result into
// a conversation. A document that parses as JSON but does not decode into the
// conversation shape is still a parse failure.
func ParseConversation(text string) (*types.Conversation, types.ParseMethod) {
	outcome := Parse(text)
	if outcome.Method == types.ParseMethodFailed {
		return nil, types.ParseMethodFailed
	}

	var conv types.Conversation
	if err := json.Unmarshal(outcome.Value, &conv); err != nil {
		return nil, types.ParseMethodFailed
	}
	return &conv, outcome.Method
}

// tryParse attempts a strict JSON parse, returning the raw bytes on success.
func tryParse(text string) (json.RawMessage, bool) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, false
	}
	return json.RawMessage(text), true
}
