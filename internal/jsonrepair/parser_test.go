package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithRecoveryStrict(t *testing.T) {
	res := ParseWithRecovery(`{"epics": [{"id": "epic_1"}], "total_estimated_hours": 40}`)

	assert.False(t, res.WasRepaired)
	assert.Empty(t, res.Warnings)
	require.Contains(t, res.Data, "epics")
	assert.Len(t, res.Data["epics"], 1)
}

func TestParseWithRecoverySanitized(t *testing.T) {
	res := ParseWithRecovery("```json\n{\"epics\": [],}\n```")

	assert.True(t, res.WasRepaired)
	assert.Contains(t, res.Warnings, NoteRemovedCodeFences)
	assert.Contains(t, res.Warnings, NoteRemovedTrailingCommas)
	assert.Contains(t, res.Data, "epics")
}

func TestParseWithRecoveryTruncation(t *testing.T) {
	// A complete object followed by an unbalanced tail, as left behind by
	// a token-limit cutoff mid-stream.
	res := ParseWithRecovery(`{"epics": [{"id": "e1"}]} } stray`)

	assert.True(t, res.WasRepaired)
	assert.Contains(t, res.Warnings, WarnTruncated)
	require.Contains(t, res.Data, "epics")
	assert.Len(t, res.Data["epics"], 1)
}

func TestParseWithRecoveryBracePadding(t *testing.T) {
	res := ParseWithRecovery(`{"summary": {"project_name": "Alpha"`)

	assert.True(t, res.WasRepaired)
	assert.Contains(t, res.Warnings, WarnPaddedBraces)
	require.Contains(t, res.Data, "summary")
}

func TestParseWithRecoveryFallback(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "plain prose", input: "sorry, I cannot produce that"},
		{name: "unterminated string", input: `{"epics": [{"id": "epic_1", "title": "A`},
		{name: "null literal", input: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseWithRecovery(tt.input)

			assert.False(t, res.WasRepaired)
			assert.Contains(t, res.Warnings, WarnUnrecoverable)
			assert.Equal(t, []interface{}{}, res.Data["epics"])
			assert.Equal(t, 0, res.Data["total_estimated_hours"])
		})
	}
}

func TestParseWithRecoveryEmptyInput(t *testing.T) {
	res := ParseWithRecovery("")

	assert.True(t, res.WasRepaired)
	assert.Equal(t, []string{NoteEmpty}, res.Warnings)
	assert.Empty(t, res.Data)
}

func TestLastBalancedOffset(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{`{"a": 1}`, 8},
		{`{"a": {"b": 1}} {`, 15},
		{`{"a": {"b": 1`, 0},
		{`no braces`, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, lastBalancedOffset(tt.input), "input %q", tt.input)
	}
}
