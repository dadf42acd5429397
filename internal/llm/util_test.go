package llm

import (
	"testing"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "```json\n{\"turns\": []}\n```",
			expected: `{"turns": []}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"turns\": []}\n```",
			expected: `{"turns": []}`,
		},
		{
			name:     "code block with language identifier",
			input:    "```javascript\n{\"turns\": []}\n```",
			expected: `{"turns": []}`,
		},
		{
			name:     "plain JSON untouched",
			input:    `{"turns": []}`,
			expected: `{"turns": []}`,
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "\n  {\"turns\": []}  \n",
			expected: `{"turns": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanJSONBlock(tt.input)
			if result != tt.expected {
				t.Errorf("CleanJSONBlock() = %q, want %q", result, tt.expected)
			}
		})
	}
}
