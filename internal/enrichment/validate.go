package enrichment

import (
	"fmt"

	"github.com/jonathan/dialogue-forge/internal/jsonrepair"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// Finding codes. Blockers halt the pipeline at validation_failed;
// warnings are recorded on the report and do not block.
const (
	CodeJSONSyntax        = "json_syntax"
	CodeTooFewTurns       = "too_few_turns"
	CodeMissingContent    = "missing_content"
	CodeInvalidRole       = "invalid_role"
	CodeIntensityRange    = "intensity_out_of_range"
	CodeTurnNumberGap     = "turn_number_gap"
	CodeRoleRepetition    = "role_repetition"
	CodeShortContent      = "short_content"
	CodeBoundaryIntensity = "boundary_intensity"
	CodeMissingEmotion    = "missing_primary_emotion"
)

const shortContentThreshold = 20

// validateRaw parses the raw artifact and checks structural requirements.
// The conversation is nil when parsing itself fails.
func validateRaw(raw string) (*types.Conversation, *types.ValidationReport) {
	report := &types.ValidationReport{}

	conv, method := jsonrepair.ParseConversation(raw)
	if method == types.ParseMethodFailed {
		report.Blockers = append(report.Blockers, types.Finding{
			Code:    CodeJSONSyntax,
			Message: "raw artifact is not parseable JSON",
		})
		return nil, report
	}

	if len(conv.Turns) < 2 {
		report.Blockers = append(report.Blockers, types.Finding{
			Code:    CodeTooFewTurns,
			Message: fmt.Sprintf("conversation has %d turns, need at least 2", len(conv.Turns)),
		})
	}

	for i := range conv.Turns {
		turn := &conv.Turns[i]
		idx := i

		if turn.Content == "" {
			report.Blockers = append(report.Blockers, types.Finding{
				Code:      CodeMissingContent,
				Message:   "turn has no content",
				TurnIndex: intPtr(idx),
			})
		} else if len(turn.Content) < shortContentThreshold {
			report.Warnings = append(report.Warnings, types.Finding{
				Code:      CodeShortContent,
				Message:   "turn content is very short",
				TurnIndex: intPtr(idx),
			})
		}

		if !turn.Role.IsValid() {
			report.Blockers = append(report.Blockers, types.Finding{
				Code:      CodeInvalidRole,
				Message:   fmt.Sprintf("unknown role %q", turn.Role),
				TurnIndex: intPtr(idx),
			})
		}

		intensity := turn.EmotionalContext.Intensity
		switch {
		case intensity < 0 || intensity > 1:
			report.Blockers = append(report.Blockers, types.Finding{
				Code:      CodeIntensityRange,
				Message:   fmt.Sprintf("intensity %g outside [0, 1]", intensity),
				TurnIndex: intPtr(idx),
			})
		case intensity == 0 || intensity == 1:
			report.Warnings = append(report.Warnings, types.Finding{
				Code:      CodeBoundaryIntensity,
				Message:   fmt.Sprintf("intensity at boundary value %g", intensity),
				TurnIndex: intPtr(idx),
			})
		}

		if turn.EmotionalContext.PrimaryEmotion == "" {
			report.Warnings = append(report.Warnings, types.Finding{
				Code:      CodeMissingEmotion,
				Message:   "no primary emotion recorded",
				TurnIndex: intPtr(idx),
			})
		}

		if i > 0 {
			prev := &conv.Turns[i-1]
			if turn.Index != prev.Index+1 {
				report.Warnings = append(report.Warnings, types.Finding{
					Code:      CodeTurnNumberGap,
					Message:   fmt.Sprintf("turn number jumps from %d to %d", prev.Index, turn.Index),
					TurnIndex: intPtr(idx),
				})
			}
			if turn.Role == prev.Role && turn.Role.IsValid() {
				report.Warnings = append(report.Warnings, types.Finding{
					Code:      CodeRoleRepetition,
					Message:   fmt.Sprintf("consecutive turns by %s", turn.Role),
					TurnIndex: intPtr(idx),
				})
			}
		}
	}

	return conv, report
}

func intPtr(i int) *int { return &i }
