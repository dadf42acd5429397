// Package jsonrepair converts near-valid structured LLM output into parseable
// JSON. It applies a fixed sequence of best-effort repair stages and exposes a
// three-tier parse strategy (direct parse, repair then parse, manual review).
package jsonrepair

import (
	"strings"
	"unicode"
)

// stage is one repair transformation. Stages are total and idempotent: they
// never fail and always return text.
type stage func(string) string

// stages run in fixed order. Quote repair must run before newline repair so
// string boundaries are trustworthy when deciding what is inside a string.
var stages = []stage{
	basicCleanup,
	repairQuoteEscaping,
	repairNewlines,
	removeTrailingCommas,
}

// Repair runs the full repair pipeline over text. Best effort: it never
// returns an error. A stage that panics on pathological input is treated as
// a no-op and later stages still run.
func Repair(text string) string {
	for _, s := range stages {
		text = runStage(s, text)
	}
	return text
}

// runStage applies one stage, returning the input unchanged if the stage
// panics on input that defeats its scanner.
func runStage(s stage, text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()
	return s(text)
}

// basicCleanup strips byte-order marks and zero-width/invisible characters.
func basicCleanup(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, c := range text {
		switch c {
		case '\ufeff', // BOM / zero-width no-break space
			'\u200b', // zero-width space
			'\u200c', // zero-width non-joiner
			'\u200d', // zero-width joiner
			'\u2060': // word joiner
			continue
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// validEscapes are the characters that may follow a backslash in a JSON string.
const validEscapes = `"\/nrtbfu`

// repairQuoteEscaping escapes embedded quotes inside string values.
//
// The scanner tracks inside/outside-string state. When a quote opens a key
// (its matching close quote is followed by a colon), the key is copied
// verbatim. Inside a value string, already-valid escape sequences pass
// through unchanged; an unescaped quote closes the string only when the next
// non-whitespace character is a comma, closing brace, or closing bracket —
// otherwise it is an embedded quote and gets escaped in place. The lookahead
// is what keeps legitimate string terminators intact.
func repairQuoteEscaping(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 16)

	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		if c != '"' {
			sb.WriteByte(c)
			i++
			continue
		}

		// A quote outside any string: key or value?
		if end, isKey := keySpan(text, i); isKey {
			sb.WriteString(text[i : end+1])
			i = end + 1
			continue
		}

		// Value string: copy with embedded-quote escaping
		sb.WriteByte('"')
		i++
		for i < n {
			c = text[i]
			if c == '\\' {
				if i+1 < n && strings.IndexByte(validEscapes, text[i+1]) >= 0 {
					sb.WriteByte(c)
					sb.WriteByte(text[i+1])
					i += 2
					continue
				}
				// Invalid escape sequence: escape the backslash itself
				sb.WriteString(`\\`)
				i++
				continue
			}
			if c == '"' {
				if closesValue(text, i+1) {
					sb.WriteByte('"')
					i++
					break
				}
				// Embedded quote inside the value
				sb.WriteString(`\"`)
				i++
				continue
			}
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

// keySpan checks whether the quote at position start opens an object key:
// its matching close quote, after optional whitespace, is followed by a
// colon. Key content is assumed correctly escaped and copied verbatim.
// Returns the index of the closing quote when it is a key.
func keySpan(text string, start int) (end int, isKey bool) {
	i := start + 1
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
			continue
		case '"':
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			if j < len(text) && text[j] == ':' {
				return i, true
			}
			return 0, false
		}
		i++
	}
	return 0, false
}

// closesValue reports whether a quote at the current position terminates a
// value string: the next non-whitespace character must be a comma, closing
// brace, or closing bracket. End of input also terminates.
func closesValue(text string, after int) bool {
	for after < len(text) && isSpace(text[after]) {
		after++
	}
	if after >= len(text) {
		return true
	}
	switch text[after] {
	case ',', '}', ']':
		return true
	}
	return false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// repairNewlines converts literal newline characters inside string content
// into escaped sequences. Structural whitespace outside strings is left
// untouched.
func repairNewlines(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case inString && c == '\\' && i+1 < len(text):
			sb.WriteByte(c)
			sb.WriteByte(text[i+1])
			i += 2
			continue
		case c == '"':
			inString = !inString
			sb.WriteByte(c)
		case inString && c == '\r':
			sb.WriteString(`\n`)
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		case inString && c == '\n':
			sb.WriteString(`\n`)
		case inString && c == '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String()
}

// removeTrailingCommas strips commas immediately followed, modulo whitespace,
// by a closing brace or bracket. String content is skipped so commas inside
// values survive.
func removeTrailingCommas(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case inString && c == '\\' && i+1 < len(text):
			sb.WriteByte(c)
			sb.WriteByte(text[i+1])
			i += 2
			continue
		case c == '"':
			inString = !inString
			sb.WriteByte(c)
		case !inString && c == ',':
			j := i + 1
			for j < len(text) && unicode.IsSpace(rune(text[j])) {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				// Drop the comma, keep the whitespace
				i++
				continue
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String()
}
