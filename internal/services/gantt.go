package services

import (
	"fmt"
	"time"

	"brd-decomposer/internal/models"
)

// hoursPerDay converts subtask estimates into working days.
const hoursPerDay = 8

// BuildGantt derives a sequential schedule from a decomposition. Subtasks
// are laid out one after another from startDate; stories, epics, and the
// project row roll up as container rows, and each epic completion becomes
// a milestone.
func BuildGantt(dec *models.RequirementsDecomposition, startDate time.Time, teamSize int) *models.GanttChart {
	tasks := []models.GanttTask{}
	current := startDate
	taskID := 1

	for _, epic := range dec.Epics {
		epicStart := current
		epicDuration := 0

		for _, story := range epic.Stories {
			storyStart := current
			storyDuration := 0

			for _, subtask := range story.Subtasks {
				days := durationDays(subtask.EstimatedHours)

				tasks = append(tasks, models.GanttTask{
					ID:             fmt.Sprintf("task_%d", taskID),
					Text:           subtask.Title,
					StartDate:      dateString(current),
					Duration:       days,
					Parent:         "story_" + story.ID,
					Type:           "task",
					Priority:       subtask.Priority,
					Assignee:       subtask.Assignee,
					EstimatedHours: subtask.EstimatedHours,
				})

				current = current.AddDate(0, 0, days)
				storyDuration += days
				taskID++
			}

			tasks = append(tasks, models.GanttTask{
				ID:             "story_" + story.ID,
				Text:           story.Title,
				StartDate:      dateString(storyStart),
				Duration:       storyDuration,
				Parent:         "epic_" + epic.ID,
				Type:           "project",
				Priority:       story.Priority,
				Assignee:       story.Assignee,
				EstimatedHours: story.EstimatedHours,
			})

			epicDuration += storyDuration
		}

		tasks = append(tasks, models.GanttTask{
			ID:             "epic_" + epic.ID,
			Text:           epic.Title,
			StartDate:      dateString(epicStart),
			Duration:       epicDuration,
			Parent:         "project",
			Type:           "project",
			Priority:       epic.Priority,
			Assignee:       epic.Assignee,
			EstimatedHours: epic.EstimatedHours,
		})
	}

	projectEnd := current
	totalDays := int(projectEnd.Sub(startDate).Hours() / 24)

	tasks = append(tasks, models.GanttTask{
		ID:        "project",
		Text:      "Project Timeline",
		StartDate: dateString(startDate),
		Duration:  totalDays,
		Type:      "project",
	})

	milestones := []models.GanttMilestone{}
	milestoneDate := startDate
	for i, epic := range dec.Epics {
		days := 0
		for _, story := range epic.Stories {
			for _, subtask := range story.Subtasks {
				days += durationDays(subtask.EstimatedHours)
			}
		}
		milestoneDate = milestoneDate.AddDate(0, 0, days)
		milestones = append(milestones, models.GanttMilestone{
			ID:   fmt.Sprintf("milestone_%d", i+1),
			Text: epic.Title + " Complete",
			Date: dateString(milestoneDate),
		})
	}

	return &models.GanttChart{
		Tasks:             tasks,
		Milestones:        milestones,
		ProjectStart:      dateString(startDate),
		ProjectEnd:        dateString(projectEnd),
		TotalDurationDays: totalDays,
		TeamSize:          teamSize,
		GeneratedAt:       time.Now().UTC().Format(time.RFC3339),
	}
}

func durationDays(estimatedHours int) int {
	days := estimatedHours / hoursPerDay
	if days < 1 {
		days = 1
	}
	return days
}

func dateString(t time.Time) string {
	return t.Format(time.RFC3339)
}
