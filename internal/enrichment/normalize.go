package enrichment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/dialogue-forge/internal/schemas"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// Size bounds on the normalized artifact. Below the floor the artifact
// cannot plausibly hold a two-turn conversation; above the ceiling it is
// rejected rather than stored.
const (
	minArtifactBytes = 300
	maxArtifactBytes = 2 << 20 // 2 MiB
)

// NormalizationError reports which normalization rule an enriched artifact
// violated. The enriched artifact itself is preserved.
type NormalizationError struct {
	Rule    string
	Message string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization rule %s violated: %s", e.Rule, e.Message)
}

// normalizeArtifact re-serializes the enriched structure through a
// parse/re-emit cycle for canonical formatting, strips control characters
// from text content, and enforces size and schema constraints.
func normalizeArtifact(enriched *types.EnrichedConversation) ([]byte, error) {
	sanitizeEnriched(enriched)

	data, err := json.Marshal(enriched)
	if err != nil {
		return nil, &NormalizationError{Rule: "encoding", Message: err.Error()}
	}

	// Round-trip through an untyped value so key ordering is canonical and
	// any invalid encoding surfaces here rather than in a consumer.
	var roundTrip any
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		return nil, &NormalizationError{Rule: "encoding", Message: err.Error()}
	}
	canonical, err := json.Marshal(roundTrip)
	if err != nil {
		return nil, &NormalizationError{Rule: "encoding", Message: err.Error()}
	}

	if len(canonical) < minArtifactBytes {
		return nil, &NormalizationError{
			Rule:    "min_size",
			Message: fmt.Sprintf("artifact is %d bytes, floor is %d", len(canonical), minArtifactBytes),
		}
	}
	if len(canonical) > maxArtifactBytes {
		return nil, &NormalizationError{
			Rule:    "max_size",
			Message: fmt.Sprintf("artifact is %d bytes, ceiling is %d", len(canonical), maxArtifactBytes),
		}
	}

	if err := schemas.ValidateEnriched(canonical); err != nil {
		return nil, &NormalizationError{Rule: "schema", Message: err.Error()}
	}

	return canonical, nil
}

func sanitizeEnriched(enriched *types.EnrichedConversation) {
	enriched.Topic = stripControl(enriched.Topic)
	sanitizeTurns(enriched.Turns)
	for i := range enriched.TrainingPairs {
		pair := &enriched.TrainingPairs[i]
		pair.CurrentUserInput = stripControl(pair.CurrentUserInput)
		pair.Response = stripControl(pair.Response)
		sanitizeTurns(pair.History)
	}
}

func sanitizeTurns(turns []types.Turn) {
	for i := range turns {
		turns[i].Content = stripControl(turns[i].Content)
	}
}

// stripControl removes control characters except newline and tab
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
