package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/loom/internal/types"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain", `{"title": "Fix crash", "slug": "fix-crash"}`},
		{"fenced", "```json\n{\"title\": \"Fix crash\", \"slug\": \"fix-crash\"}\n```"},
		{"fence without newline", "```{\"title\": \"Fix crash\", \"slug\": \"fix-crash\"}```"},
		{"prose around", "Here you go:\n{\"title\": \"Fix crash\", \"slug\": \"fix-crash\"}\nHope that helps."},
		{"trailing comma", `{"title": "Fix crash", "slug": "fix-crash",}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSON[types.Summary](tt.input)
			require.NoError(t, err)
			assert.Equal(t, types.Summary{Title: "Fix crash", Slug: "fix-crash"}, got)
		})
	}
}

func TestParseJSONFailures(t *testing.T) {
	_, err := parseJSON[types.Summary]("")
	assert.Error(t, err)

	_, err = parseJSON[types.Summary]("no json here")
	assert.Error(t, err)
}
