package models

// GanttTask is one row of the derived schedule. Epics and stories appear
// as container rows ("project"), subtasks as leaf rows ("task").
type GanttTask struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	StartDate      string   `json:"start_date"`
	Duration       int      `json:"duration"`
	Progress       int      `json:"progress"`
	Parent         string   `json:"parent,omitempty"`
	Type           string   `json:"type"`
	Priority       Priority `json:"priority,omitempty"`
	Assignee       string   `json:"assignee,omitempty"`
	EstimatedHours int      `json:"estimated_hours,omitempty"`
}

// GanttMilestone marks the completion date of one epic.
type GanttMilestone struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Date string `json:"date"`
}

// GanttChart is the full derived schedule for one decomposition.
type GanttChart struct {
	Tasks             []GanttTask      `json:"tasks"`
	Milestones        []GanttMilestone `json:"milestones"`
	ProjectStart      string           `json:"project_start"`
	ProjectEnd        string           `json:"project_end"`
	TotalDurationDays int              `json:"total_duration_days"`
	TeamSize          int              `json:"team_size"`
	GeneratedAt       string           `json:"generated_at"`
}
