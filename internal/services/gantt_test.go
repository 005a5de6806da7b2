package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brd-decomposer/internal/models"
)

func ganttDecomposition() *models.RequirementsDecomposition {
	return &models.RequirementsDecomposition{
		Epics: []models.Epic{{
			ID:             "EPIC-1",
			Title:          "Accounts",
			EstimatedHours: 24,
			Stories: []models.Story{{
				ID:             "STORY-1",
				Title:          "Sign up",
				EstimatedHours: 24,
				Subtasks: []models.Subtask{
					{ID: "SUBTASK-1", Title: "Form", EstimatedHours: 16},
					{ID: "SUBTASK-2", Title: "Review", EstimatedHours: 4},
				},
			}},
		}},
	}
}

func TestBuildGantt(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	chart := BuildGantt(ganttDecomposition(), start, 4)

	// Two subtasks, one story row, one epic row, one project row.
	require.Len(t, chart.Tasks, 5)

	byID := map[string]models.GanttTask{}
	for _, task := range chart.Tasks {
		byID[task.ID] = task
	}

	first := byID["task_1"]
	assert.Equal(t, "Form", first.Text)
	assert.Equal(t, 2, first.Duration, "16 hours is two working days")
	assert.Equal(t, "story_STORY-1", first.Parent)
	assert.Equal(t, dateString(start), first.StartDate)

	second := byID["task_2"]
	assert.Equal(t, 1, second.Duration, "4 hours rounds up to one day")
	assert.Equal(t, dateString(start.AddDate(0, 0, 2)), second.StartDate, "subtasks are sequential")

	story := byID["story_STORY-1"]
	assert.Equal(t, "project", story.Type)
	assert.Equal(t, 3, story.Duration)
	assert.Equal(t, "epic_EPIC-1", story.Parent)

	epic := byID["epic_EPIC-1"]
	assert.Equal(t, "project", epic.Parent)
	assert.Equal(t, 3, epic.Duration)

	project := byID["project"]
	assert.Equal(t, "Project Timeline", project.Text)
	assert.Equal(t, 3, project.Duration)
	assert.Empty(t, project.Parent)

	assert.Equal(t, 3, chart.TotalDurationDays)
	assert.Equal(t, dateString(start.AddDate(0, 0, 3)), chart.ProjectEnd)
	assert.Equal(t, 4, chart.TeamSize)

	require.Len(t, chart.Milestones, 1)
	assert.Equal(t, "Accounts Complete", chart.Milestones[0].Text)
	assert.Equal(t, dateString(start.AddDate(0, 0, 3)), chart.Milestones[0].Date)
}

func TestBuildGanttEmpty(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	chart := BuildGantt(&models.RequirementsDecomposition{}, start, 3)

	require.Len(t, chart.Tasks, 1)
	assert.Equal(t, "project", chart.Tasks[0].ID)
	assert.Zero(t, chart.TotalDurationDays)
	assert.Empty(t, chart.Milestones)
	assert.Equal(t, chart.ProjectStart, chart.ProjectEnd)
}
