package models

import "time"

// Priority is the fixed set of priority levels carried by every backlog item.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Valid reports whether p is one of the four canonical priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TaskStatus is the fixed set of workflow states for backlog items.
// Freshly generated decompositions always carry StatusToDo.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "To Do"
	StatusInProgress TaskStatus = "In Progress"
	StatusDone       TaskStatus = "Done"
)

// Valid reports whether s is one of the three canonical status values.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Subtask is the leaf level of the work-breakdown hierarchy.
type Subtask struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       Priority   `json:"priority"`
	EstimatedHours int        `json:"estimated_hours"`
	Assignee       string     `json:"assignee,omitempty"`
	Status         TaskStatus `json:"status"`
}

// Story is a user story with acceptance criteria and technical subtasks.
type Story struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	AcceptanceCriteria []string   `json:"acceptance_criteria"`
	Priority           Priority   `json:"priority"`
	EstimatedHours     int        `json:"estimated_hours"`
	Assignee           string     `json:"assignee,omitempty"`
	Status             TaskStatus `json:"status"`
	Subtasks           []Subtask  `json:"subtasks"`
}

// Epic is the top level of the hierarchy, grouping related stories.
type Epic struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       Priority   `json:"priority"`
	EstimatedHours int        `json:"estimated_hours"`
	Assignee       string     `json:"assignee,omitempty"`
	Status         TaskStatus `json:"status"`
	Stories        []Story    `json:"stories"`
}

// RequirementsDecomposition is the canonical three-level backlog produced
// from a BRD summary. Child collections are always present, never nil.
type RequirementsDecomposition struct {
	DocumentID          string    `json:"document_id"`
	CreatedAt           time.Time `json:"created_at"`
	Epics               []Epic    `json:"epics"`
	TotalEstimatedHours int       `json:"total_estimated_hours"`
	TimelineWeeks       int       `json:"timeline_weeks"`
	Notes               string    `json:"notes,omitempty"`
	Warnings            []string  `json:"warnings"`
}

// RawArtifact is the pre-normalization model output retained alongside the
// canonical decomposition for audit and later re-normalization.
type RawArtifact struct {
	Raw         string   `json:"raw"`
	Warnings    []string `json:"warnings"`
	WasRepaired bool     `json:"was_repaired"`
	GeneratedAt string   `json:"generated_at"`
}
