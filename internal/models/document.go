package models

import "time"

// RunStatus tracks a processing run through its lifecycle.
type RunStatus string

const (
	RunUploaded   RunStatus = "uploaded"
	RunProcessing RunStatus = "processing"
	RunSummarized RunStatus = "summarized"
	RunDecomposed RunStatus = "decomposed"
	RunCompleted  RunStatus = "completed"
	RunError      RunStatus = "error"
)

// Run step names, in pipeline order.
const (
	StepUpload        = "upload"
	StepSummary       = "summary"
	StepDecomposition = "decomposition"
	StepGantt         = "gantt"
	StepJiraSync      = "jira_sync"
)

// Step states.
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// StepState records the progress of one pipeline step within a run.
type StepState struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Run is one document-processing run and its step history.
type Run struct {
	ID        string               `json:"id"`
	FileName  string               `json:"file_name"`
	FilePath  string               `json:"file_path"`
	FileSize  int64                `json:"file_size"`
	CreatedAt time.Time            `json:"created_at"`
	Status    RunStatus            `json:"status"`
	Steps     map[string]StepState `json:"steps"`
}

// DocumentSummary is the structured digest of a BRD extracted by the model.
type DocumentSummary struct {
	ProjectName           string   `json:"project_name"`
	ProjectDescription    string   `json:"project_description"`
	Objectives            []string `json:"objectives"`
	Scope                 []string `json:"scope"`
	Stakeholders          []string `json:"stakeholders"`
	KeyFeatures           []string `json:"key_features"`
	TechnicalRequirements []string `json:"technical_requirements"`
	TimelineEstimate      string   `json:"timeline_estimate"`
	Risks                 []string `json:"risks"`
	Assumptions           []string `json:"assumptions"`
}
