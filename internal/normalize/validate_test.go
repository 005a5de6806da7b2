package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHardErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"non object root", `[1, 2]`, "root object is not an object"},
		{"missing epics", `{"total_estimated_hours": 10}`, "missing required field: epics"},
		{"epics not a list", `{"epics": "nope"}`, "epics is not a list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Validate(decode(t, tt.payload))

			assert.False(t, report.IsValid)
			assert.Equal(t, []string{tt.wantErr}, report.Errors)
		})
	}
}

func TestValidateCountsAndWarnings(t *testing.T) {
	report := Validate(decode(t, `{
		"epics": [{
			"id": "epic_1",
			"title": "One",
			"description": "d",
			"priority": "High",
			"stories": [{
				"id": "story_1",
				"title": "S",
				"description": "d",
				"priority": "Medium",
				"acceptance_criteria": [],
				"subtasks": [{
					"id": "sub_1",
					"title": "T",
					"description": "d",
					"priority": "Low",
					"estimated_hours": 8
				}]
			}]
		}]
	}`))

	require.True(t, report.IsValid)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, Statistics{EpicsCount: 1, StoriesCount: 1, SubtasksCount: 1, TotalHours: 8}, report.Statistics)
}

func TestValidateMissingDisplayFields(t *testing.T) {
	report := Validate(decode(t, `{"epics": [{"id": "epic_1"}]}`))

	require.True(t, report.IsValid)
	assert.Contains(t, report.Warnings, "epic 1 missing field: title")
	assert.Contains(t, report.Warnings, "epic 1 missing field: priority")
}

func TestValidateDuplicateIDsAcrossTree(t *testing.T) {
	report := Validate(decode(t, `{
		"epics": [
			{"id": "epic_1", "title": "A", "description": "d", "priority": "High",
			 "stories": [{"id": "story_1", "title": "S", "description": "d",
			              "priority": "Medium", "acceptance_criteria": [], "subtasks": []}]},
			{"id": "epic_2", "title": "B", "description": "d", "priority": "High",
			 "stories": [{"id": "story_1", "title": "S2", "description": "d",
			              "priority": "Medium", "acceptance_criteria": [], "subtasks": []}]}
		]
	}`))

	require.True(t, report.IsValid)
	assert.Contains(t, report.Warnings, "duplicate ids: [story_1]")
}

func TestValidateSkipsMalformedEntries(t *testing.T) {
	report := Validate(decode(t, `{
		"epics": [
			"not an epic",
			{"id": "epic_1", "title": "A", "description": "d", "priority": "High",
			 "stories": [
				42,
				{"id": "story_1", "title": "S", "description": "d",
				 "priority": "Medium", "acceptance_criteria": [],
				 "subtasks": [null, {"id": "sub_1", "title": "T", "description": "d",
				                     "priority": "Low", "estimated_hours": 8}]}
			 ]}
		]
	}`))

	require.True(t, report.IsValid)
	assert.Equal(t, Statistics{EpicsCount: 1, StoriesCount: 1, SubtasksCount: 1, TotalHours: 8}, report.Statistics)
	for _, warning := range report.Warnings {
		assert.NotContains(t, warning, "is not an object")
	}
}

func TestValidateEmptyEpics(t *testing.T) {
	report := Validate(decode(t, `{"epics": []}`))

	assert.True(t, report.IsValid)
	assert.Contains(t, report.Warnings, "decomposition contains no epics")
}
