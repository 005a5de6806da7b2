package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brd-decomposer/internal/models"
)

func decode(t *testing.T, text string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	return v
}

func TestDecompositionClean(t *testing.T) {
	payload := decode(t, `{
		"epics": [{
			"id": "EPIC-1",
			"title": "Accounts",
			"description": "User accounts",
			"priority": "High",
			"stories": [{
				"id": "STORY-1",
				"title": "Sign up",
				"acceptance_criteria": ["email verified"],
				"subtasks": [
					{"id": "SUB-1", "title": "Form", "estimated_hours": 8},
					{"id": "SUB-2", "title": "API", "estimated_hours": "16h"}
				]
			}]
		}],
		"timeline_weeks": 2,
		"notes": "tight deadline"
	}`)

	dec := New(nil).Decomposition(payload)

	require.Len(t, dec.Epics, 1)
	epic := dec.Epics[0]
	assert.Equal(t, "EPIC-1", epic.ID)
	assert.Equal(t, models.PriorityHigh, epic.Priority)
	require.Len(t, epic.Stories, 1)

	story := epic.Stories[0]
	assert.Equal(t, []string{"email verified"}, story.AcceptanceCriteria)
	assert.Equal(t, 24, story.EstimatedHours, "story hours roll up from subtasks")
	assert.Equal(t, 24, epic.EstimatedHours, "epic hours roll up from stories")
	assert.Equal(t, 24, dec.TotalEstimatedHours)
	assert.Equal(t, 2, dec.TimelineWeeks)
	assert.Equal(t, "tight deadline", dec.Notes)
	assert.Empty(t, dec.Warnings)
	assert.Equal(t, models.StatusToDo, story.Subtasks[0].Status)
}

func TestDecompositionEnvelopeUnwrap(t *testing.T) {
	payload := decode(t, `{"result": {"epics": [{"title": "Only"}]}}`)

	dec := New(nil).Decomposition(payload)

	require.Len(t, dec.Epics, 1)
	assert.Equal(t, "Only", dec.Epics[0].Title)
	assert.Equal(t, "EPIC-1", dec.Epics[0].ID, "missing id is synthesized")
}

func TestDecompositionSkipsMalformedChildren(t *testing.T) {
	payload := decode(t, `{
		"epics": [{
			"id": "EPIC-1",
			"stories": [
				{"id": "STORY-1", "title": "Real"},
				5,
				{"id": "STORY-3", "title": "Also real"}
			]
		}]
	}`)

	dec := New(nil).Decomposition(payload)

	require.Len(t, dec.Epics, 1)
	assert.Len(t, dec.Epics[0].Stories, 2, "siblings of the bad node survive")
	assert.Contains(t, dec.Warnings, "epic 1: skipped malformed story at index 1")
}

func TestDecompositionDefaults(t *testing.T) {
	payload := decode(t, `{"epics": [{}]}`)

	dec := New(nil).Decomposition(payload)

	require.Len(t, dec.Epics, 1)
	epic := dec.Epics[0]
	assert.Equal(t, "EPIC-1", epic.ID)
	assert.Equal(t, "Untitled Epic", epic.Title)
	assert.Equal(t, models.PriorityMedium, epic.Priority)
	assert.NotNil(t, epic.Stories)
	assert.Equal(t, 1, dec.TimelineWeeks, "timeline never drops below one week")
}

func TestDecompositionSingleObjectAsList(t *testing.T) {
	payload := decode(t, `{"epics": {"id": "EPIC-1", "title": "Lone"}}`)

	dec := New(nil).Decomposition(payload)

	require.Len(t, dec.Epics, 1)
	assert.Equal(t, "Lone", dec.Epics[0].Title)
}

func TestDecompositionNonObjectRoot(t *testing.T) {
	dec := New(nil).Decomposition(decode(t, `["not", "an", "object"]`))

	assert.NotNil(t, dec.Epics)
	assert.Empty(t, dec.Epics)
	assert.Equal(t, 1, dec.TimelineWeeks)
	assert.Equal(t, []string{"object_not_dict"}, dec.Warnings)
}

func TestDecompositionTimelineFromHours(t *testing.T) {
	payload := decode(t, `{"epics": [], "total_estimated_hours": 90}`)

	dec := New(nil).Decomposition(payload)

	assert.Equal(t, 90, dec.TotalEstimatedHours)
	assert.Equal(t, 3, dec.TimelineWeeks)
}

func TestEstimateWeeks(t *testing.T) {
	assert.Equal(t, 1, EstimateWeeks(0))
	assert.Equal(t, 1, EstimateWeeks(40))
	assert.Equal(t, 2, EstimateWeeks(41))
	assert.Equal(t, 3, EstimateWeeks(120))
}
