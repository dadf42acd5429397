// Package truncation classifies whether a text fragment was cut off
// mid-generation, based on suspicious trailing patterns.
package truncation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/dialogue-forge/internal/types"
)

// Pattern names the trailing signal that triggered a truncation verdict
type Pattern string

// Known truncation patterns, in the order they are checked
const (
	PatternTrailingBackslash    Pattern = "trailing_backslash"
	PatternTrailingEscapedQuote Pattern = "trailing_escaped_quote"
	PatternTrailingComma        Pattern = "trailing_comma"
	PatternTrailingColon        Pattern = "trailing_colon"
	PatternUnclosedBracket      Pattern = "unclosed_bracket"
	PatternUnclosedString       Pattern = "unclosed_string"
	PatternWordFragment         Pattern = "word_fragment"
	PatternNoPunctuation        Pattern = "no_punctuation"
)

// Confidence expresses how strong the truncation signal is
type Confidence string

// Confidence levels
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Result is the outcome of a truncation check
type Result struct {
	IsTruncated bool
	Pattern     Pattern
	Confidence  Confidence
}

// TurnFinding ties a truncation result to the turn that produced it
type TurnFinding struct {
	TurnIndex int
	Result    Result
}

// longTextThreshold is the length beyond which text with neither a suspicious
// nor a proper ending is considered truncated (low confidence).
const longTextThreshold = 100

// openStringThreshold is the minimum length of an unterminated quoted tail
// before it is treated as an unclosed string rather than an ordinary quote.
const openStringThreshold = 20

// Detect classifies whether text was cut off mid-generation.
//
// Checks run in a fixed order: known-bad trailing patterns first, then the
// proper-ending set, then a length heuristic. The ordering minimizes false
// negatives on the strongest signals while avoiding over-flagging short
// content. First matching suspicious pattern wins and fixes the reported
// pattern and confidence.
func Detect(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{IsTruncated: false, Confidence: ConfidenceLow}
	}

	if r, ok := suspiciousEnding(trimmed); ok {
		return r
	}

	if hasProperEnding(trimmed) {
		return Result{IsTruncated: false, Confidence: ConfidenceHigh}
	}

	if len(trimmed) > longTextThreshold {
		return Result{IsTruncated: true, Pattern: PatternNoPunctuation, Confidence: ConfidenceLow}
	}

	// Short text with no clear signal either way: treat as complete
	return Result{IsTruncated: false, Confidence: ConfidenceMedium}
}

// DetectInTurns applies truncation detection to assistant-authored turns only.
// User turns are caller-supplied input and assumed complete. Returns the first
// truncated assistant turn, or nil if none is truncated.
func DetectInTurns(turns []types.Turn) *TurnFinding {
	for _, turn := range turns {
		if turn.Role != types.RoleAssistant {
			continue
		}
		if r := Detect(turn.Content); r.IsTruncated {
			return &TurnFinding{TurnIndex: turn.Index, Result: r}
		}
	}
	return nil
}

// suspiciousEnding tests the trimmed tail against the ordered list of
// known-bad patterns. First match wins.
func suspiciousEnding(text string) (Result, bool) {
	if strings.HasSuffix(text, `\`) {
		return Result{IsTruncated: true, Pattern: PatternTrailingBackslash, Confidence: ConfidenceHigh}, true
	}
	if strings.HasSuffix(text, `\"`) {
		return Result{IsTruncated: true, Pattern: PatternTrailingEscapedQuote, Confidence: ConfidenceHigh}, true
	}
	if strings.HasSuffix(text, ",") {
		return Result{IsTruncated: true, Pattern: PatternTrailingComma, Confidence: ConfidenceHigh}, true
	}
	if strings.HasSuffix(text, ":") {
		return Result{IsTruncated: true, Pattern: PatternTrailingColon, Confidence: ConfidenceHigh}, true
	}
	if hasUnclosedBracket(text) {
		return Result{IsTruncated: true, Pattern: PatternUnclosedBracket, Confidence: ConfidenceHigh}, true
	}
	if hasUnclosedString(text) {
		return Result{IsTruncated: true, Pattern: PatternUnclosedString, Confidence: ConfidenceMedium}, true
	}
	if endsInWordFragment(text) {
		return Result{IsTruncated: true, Pattern: PatternWordFragment, Confidence: ConfidenceMedium}, true
	}
	return Result{}, false
}

// properEndings are characters that signal a logically complete ending.
var properEndings = []string{".", "!", "?", "…", "\"", "'", ")", "]", "}", "`", "\n"}

func hasProperEnding(text string) bool {
	for _, e := range properEndings {
		if strings.HasSuffix(text, e) {
			return true
		}
	}
	return false
}

// hasUnclosedBracket scans bracket/brace/paren balance, skipping quoted
// strings so punctuation inside content does not skew the count.
func hasUnclosedBracket(text string) bool {
	depth := 0
	inString := false
	escaped := false
	for _, c := range text {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[', '(':
			if !inString {
				depth++
			}
		case '}', ']', ')':
			if !inString && depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}

// hasUnclosedString reports whether the text ends inside a long quoted string:
// an odd number of unescaped double quotes with a sizable tail after the last
// opening quote.
func hasUnclosedString(text string) bool {
	count := 0
	lastQuote := -1
	escaped := false
	for i, c := range text {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			count++
			lastQuote = i
		}
	}
	if count%2 == 0 || lastQuote < 0 {
		return false
	}
	return len(text)-lastQuote-1 >= openStringThreshold
}

// endsInWordFragment reports whether the text ends in a short bare word with
// no terminal punctuation, suggesting a word cut mid-generation. Only applies
// to text long enough that a missing terminator is meaningful.
func endsInWordFragment(text string) bool {
	if len(text) < 30 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	if !unicode.IsLetter(last) && !unicode.IsDigit(last) {
		return false
	}
	idx := strings.LastIndexFunc(text, unicode.IsSpace)
	word := text[idx+1:]
	return len(word) > 0 && len(word) <= 3
}
