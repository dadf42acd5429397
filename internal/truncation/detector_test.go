package truncation

import (
	"strings"
	"testing"

	"github.com/jonathan/dialogue-forge/internal/types"
)

func TestDetect_SuspiciousEndings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pattern Pattern
	}{
		{
			name:    "lone trailing backslash",
			input:   `The user said something\`,
			pattern: PatternTrailingBackslash,
		},
		{
			name:    "trailing escaped quote",
			input:   `{"content": "She replied \"`,
			pattern: PatternTrailingEscapedQuote,
		},
		{
			name:    "trailing comma",
			input:   "List item,",
			pattern: PatternTrailingComma,
		},
		{
			name:    "trailing colon",
			input:   "The reasons are:",
			pattern: PatternTrailingColon,
		},
		{
			name:    "unclosed brace",
			input:   `{"turns": [{"role": "user"`,
			pattern: PatternUnclosedBracket,
		},
		{
			name:    "unclosed paren",
			input:   "I was thinking (and this matters",
			pattern: PatternUnclosedBracket,
		},
		{
			name:    "long open string",
			input:   `prefix "this quoted passage keeps going with no closing quote in sight`,
			pattern: PatternUnclosedString,
		},
		{
			name:    "word fragment at end",
			input:   "The assistant was explaining the approach and then sud",
			pattern: PatternWordFragment,
		},
		{
			name:    "word fragment ending in multibyte letter",
			input:   "They were meeting at the corner place everyone calls où",
			pattern: PatternWordFragment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Detect(tt.input)
			if !r.IsTruncated {
				t.Fatalf("Detect(%q).IsTruncated = false, want true", tt.input)
			}
			if r.Pattern != tt.pattern {
				t.Errorf("Detect(%q).Pattern = %q, want %q", tt.input, r.Pattern, tt.pattern)
			}
		})
	}
}

func TestDetect_ProperEndings(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "period", input: "Done."},
		{name: "exclamation", input: "That is wonderful!"},
		{name: "question", input: "How are you feeling today?"},
		{name: "closing quote", input: `He said "goodbye."`},
		{name: "closing bracket", input: `{"turns": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Detect(tt.input)
			if r.IsTruncated {
				t.Errorf("Detect(%q).IsTruncated = true, want false", tt.input)
			}
			if r.Confidence != ConfidenceHigh {
				t.Errorf("Detect(%q).Confidence = %q, want high", tt.input, r.Confidence)
			}
		})
	}
}

func TestDetect_EmptyInput(t *testing.T) {
	r := Detect("   \n\t ")
	if r.IsTruncated {
		t.Error("empty input should not be truncated")
	}
	if r.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %q, want low", r.Confidence)
	}
}

func TestDetect_LongTextWithoutEnding(t *testing.T) {
	// Over the length threshold, neither suspicious nor properly terminated
	input := strings.Repeat("the model kept talking about many things ", 4)
	r := Detect(input)
	if !r.IsTruncated {
		t.Fatal("long unterminated text should be flagged as truncated")
	}
	if r.Pattern != PatternNoPunctuation {
		t.Errorf("Pattern = %q, want no_punctuation", r.Pattern)
	}
	if r.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %q, want low", r.Confidence)
	}
}

func TestDetect_ShortUnmatchedTextIsComplete(t *testing.T) {
	r := Detect("Sounds good")
	if r.IsTruncated {
		t.Error("short unmatched text should be treated as complete")
	}
	if r.Confidence != ConfidenceMedium {
		t.Errorf("Confidence = %q, want medium", r.Confidence)
	}
}

func TestDetect_BadPatternsWinOverProperEndings(t *testing.T) {
	// Ends with a closing bracket, but an earlier brace never closes
	input := `{"turns": [{"role": "user", "content": "hi"]`
	r := Detect(input)
	if !r.IsTruncated {
		t.Fatal("unclosed brace should win over the closing-bracket ending")
	}
	if r.Pattern != PatternUnclosedBracket {
		t.Errorf("Pattern = %q, want unclosed_bracket", r.Pattern)
	}
}

func TestDetectInTurns(t *testing.T) {
	t.Run("flags truncated assistant turn", func(t *testing.T) {
		turns := []types.Turn{
			{Index: 1, Role: types.RoleUser, Content: "I feel stuck,"},
			{Index: 2, Role: types.RoleAssistant, Content: "That sounds hard. Can you tell me more,"},
		}
		finding := DetectInTurns(turns)
		if finding == nil {
			t.Fatal("expected a truncation finding")
		}
		if finding.TurnIndex != 2 {
			t.Errorf("TurnIndex = %d, want 2", finding.TurnIndex)
		}
		if finding.Result.Pattern != PatternTrailingComma {
			t.Errorf("Pattern = %q, want trailing_comma", finding.Result.Pattern)
		}
	})

	t.Run("ignores user turns", func(t *testing.T) {
		turns := []types.Turn{
			{Index: 1, Role: types.RoleUser, Content: "trailing user comma,"},
			{Index: 2, Role: types.RoleAssistant, Content: "A complete reply."},
		}
		if finding := DetectInTurns(turns); finding != nil {
			t.Errorf("user-turn truncation should be ignored, got %+v", finding)
		}
	})

	t.Run("nil on clean turns", func(t *testing.T) {
		turns := []types.Turn{
			{Index: 1, Role: types.RoleAssistant, Content: "All good here."},
		}
		if finding := DetectInTurns(turns); finding != nil {
			t.Errorf("expected nil finding, got %+v", finding)
		}
	})
}
