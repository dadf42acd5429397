package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/jonathan/dialogue-forge/internal/types"
)

func TestRepair_EmbeddedQuotes(t *testing.T) {
	input := `{"content": "User says "hello""}`
	repaired := Repair(input)

	var doc map[string]string
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		t.Fatalf("repaired text does not parse: %v\n%s", err, repaired)
	}
	want := `User says "hello"`
	if doc["content"] != want {
		t.Errorf("content = %q, want %q", doc["content"], want)
	}
}

func TestRepair_TrailingCommas(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "object", input: `{"a": 1, "b": 2,}`},
		{name: "array", input: `{"items": [1, 2, 3,]}`},
		{name: "comma before newline and brace", input: "{\"a\": 1,\n}"},
		{name: "nested", input: `{"outer": {"inner": "x",},}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := Repair(tt.input)
			var value any
			if err := json.Unmarshal([]byte(repaired), &value); err != nil {
				t.Errorf("repaired text does not parse: %v\n%s", err, repaired)
			}
		})
	}
}

func TestRepair_CommaInsideStringSurvives(t *testing.T) {
	input := `{"content": "first, second, }"}`
	repaired := Repair(input)

	var doc map[string]string
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		t.Fatalf("repaired text does not parse: %v", err)
	}
	if doc["content"] != "first, second, }" {
		t.Errorf("content = %q, comma inside string was mangled", doc["content"])
	}
}

func TestRepair_LiteralNewlinesInContent(t *testing.T) {
	input := "{\"content\": \"line one\nline two\"}"
	repaired := Repair(input)

	var doc map[string]string
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		t.Fatalf("repaired text does not parse: %v\n%s", err, repaired)
	}
	if doc["content"] != "line one\nline two" {
		t.Errorf("content = %q, want newline preserved as escape", doc["content"])
	}
}

func TestRepair_StripsInvisibleCharacters(t *testing.T) {
	input := "\uFEFF{\"a\": \"b\u200B\u200C\u200D\u2060c\"}"
	repaired := Repair(input)

	var doc map[string]string
	if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
		t.Fatalf("repaired text does not parse: %v", err)
	}
	if doc["a"] != "bc" {
		t.Errorf("a = %q, want zero-width characters stripped", doc["a"])
	}
}

func TestRepair_Idempotent(t *testing.T) {
	inputs := []string{
		`{"content": "User says "hello""}`,
		`{"a": 1, "b": 2,}`,
		"{\"content\": \"line one\nline two\"}",
		`{"valid": "already fine."}`,
		`not json at all`,
		"",
	}

	for _, input := range inputs {
		once := Repair(input)
		twice := Repair(once)
		if once != twice {
			t.Errorf("Repair not idempotent for %q:\nonce:  %q\ntwice: %q", input, once, twice)
		}
	}
}

func TestRepair_ValidInputUnchanged(t *testing.T) {
	input := `{"turns": [{"role": "user", "content": "Hi there."}]}`
	if got := Repair(input); got != input {
		t.Errorf("valid JSON was altered:\nin:  %s\nout: %s", input, got)
	}
}

func TestParse_ThreeTiers(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		method types.ParseMethod
	}{
		{
			name:   "valid JSON parses directly",
			input:  `{"turns": []}`,
			method: types.ParseMethodDirect,
		},
		{
			name:   "trailing comma goes through repair",
			input:  `{"turns": [],}`,
			method: types.ParseMethodRepaired,
		},
		{
			name:   "prose fails",
			input:  "I'm sorry, I can't produce that conversation.",
			method: types.ParseMethodFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Parse(tt.input)
			if outcome.Method != tt.method {
				t.Errorf("Method = %q, want %q", outcome.Method, tt.method)
			}
			if tt.method == types.ParseMethodFailed && outcome.Value != nil {
				t.Error("failed outcome should carry no value")
			}
		})
	}
}

func TestParseConversation(t *testing.T) {
	t.Run("decodes repaired conversation", func(t *testing.T) {
		input := `{"turns": [{"turn_number": 1, "role": "user", "content": "Hello.",},]}`
		conv, method := ParseConversation(input)
		if method != types.ParseMethodRepaired {
			t.Fatalf("method = %q, want repaired", method)
		}
		if len(conv.Turns) != 1 || conv.Turns[0].Role != types.RoleUser {
			t.Errorf("unexpected conversation: %+v", conv)
		}
	})

	t.Run("prose is a parse failure", func(t *testing.T) {
		conv, method := ParseConversation("no structure here")
		if method != types.ParseMethodFailed || conv != nil {
			t.Errorf("got (%v, %q), want (nil, failed)", conv, method)
		}
	})
}
