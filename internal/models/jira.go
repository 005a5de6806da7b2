package models

import "time"

// JiraIssue is the create-issue request payload.
type JiraIssue struct {
	Fields JiraFields `json:"fields"`
}

// JiraFields carries the writable fields of a Jira issue.
type JiraFields struct {
	Project     JiraProject   `json:"project"`
	Summary     string        `json:"summary"`
	Description string        `json:"description"`
	IssueType   JiraIssueType `json:"issuetype"`
	Parent      *JiraParent   `json:"parent,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
}

// JiraProject identifies the target project by key.
type JiraProject struct {
	Key string `json:"key"`
}

// JiraIssueType names the issue type (Epic, Story, Sub-task).
type JiraIssueType struct {
	Name string `json:"name"`
}

// JiraParent links an issue to its parent by key.
type JiraParent struct {
	Key string `json:"key"`
}

// JiraResponse is the create-issue response.
type JiraResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// JiraProjectInfo describes an accessible Jira project.
type JiraProjectInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Per-node sync states recorded in JiraSyncResult.SyncStatus.
const (
	SyncPending = "pending"
	SyncSuccess = "success"
	SyncError   = "error"
)

// JiraSyncResult records the outcome of pushing one decomposition to Jira.
// SyncStatus maps every node ID in the tree to pending/success/error;
// descendants of a failed parent are never attempted and stay pending.
type JiraSyncResult struct {
	RunID          string            `json:"run_id"`
	SyncStatus     map[string]string `json:"sync_status"`
	EpicKeys       map[string]string `json:"epic_keys"`
	StoryKeys      map[string]string `json:"story_keys"`
	SubtaskKeys    map[string]string `json:"subtask_keys"`
	Errors         []string          `json:"errors"`
	TicketsCreated int               `json:"tickets_created"`
	TicketsFailed  int               `json:"tickets_failed"`
	SyncedAt       time.Time         `json:"synced_at"`
}
