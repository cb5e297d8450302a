package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain array",
			input:    `[{"title":"Top campaign","type":"positive"}]`,
			expected: `[{"title":"Top campaign","type":"positive"}]`,
		},
		{
			name:     "prose around array",
			input:    "Here are the insights:\n[{\"title\":\"a\"}]\nLet me know if you need more.",
			expected: `[{"title":"a"}]`,
		},
		{
			name:     "markdown fence",
			input:    "```json\n[{\"type\":\"bar\"}]\n```",
			expected: `[{"type":"bar"}]`,
		},
		{
			name:     "think block first",
			input:    "<think>the user wants {an object}</think>\n{\"ok\":true}",
			expected: `{"ok":true}`,
		},
		{
			name:     "brackets inside strings",
			input:    `{"description":"spend [USD] rose {sharply}"}`,
			expected: `{"description":"spend [USD] rose {sharply}"}`,
		},
		{
			name:     "escaped quotes",
			input:    `{"title":"the \"best\" month"}`,
			expected: `{"title":"the \"best\" month"}`,
		},
		{
			name:     "array before object",
			input:    `[{"a":1},{"b":2}] trailing {"c":3}`,
			expected: `[{"a":1},{"b":2}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	for _, input := range []string{"", "no json here", `{"unterminated": `} {
		_, err := ExtractJSON(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseJSONResponse(t *testing.T) {
	type insight struct {
		Title string `json:"title"`
		Type  string `json:"type"`
	}

	got, err := ParseJSONResponse[[]insight]("Sure!\n```json\n[{\"title\":\"ROI\",\"type\":\"info\"}]\n```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ROI", got[0].Title)

	_, err = ParseJSONResponse[[]insight](`{"title":"not an array"}`)
	assert.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"sql fence", "```sql\nSELECT * FROM campaigns;\n```", "SELECT * FROM campaigns;"},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"inline fence", "```SELECT 1```", "SELECT 1"},
		{"prose before fence", "Here you go:\n```sql\nSELECT id FROM t\n```\nThis returns ids.", "SELECT id FROM t"},
		{"no fence", "  SELECT name FROM users  \n", "SELECT name FROM users"},
		{"think block", "<think>hmm</think>SELECT 2", "SELECT 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripCodeFences(tt.input))
		})
	}
}
