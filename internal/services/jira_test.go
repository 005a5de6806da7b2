package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brd-decomposer/internal/config"
	"brd-decomposer/internal/models"
	"brd-decomposer/internal/repositories"
)

func newSyncService(t *testing.T, handler http.HandlerFunc) *JiraSyncService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.JiraConfig{
		BaseURL:    server.URL,
		Username:   "bot",
		APIToken:   "token",
		ProjectKey: "PROJ",
		Timeout:    5,
	}
	return &JiraSyncService{
		repo:       repositories.NewJiraRepository(cfg),
		projectKey: cfg.ProjectKey,
		logger:     zap.NewNop(),
		retryCount: 1,
	}
}

func sampleDecomposition() *models.RequirementsDecomposition {
	return &models.RequirementsDecomposition{
		Epics: []models.Epic{{
			ID:    "EPIC-1",
			Title: "Accounts",
			Stories: []models.Story{{
				ID:                 "STORY-1",
				Title:              "Sign up",
				AcceptanceCriteria: []string{"email verified"},
				Subtasks: []models.Subtask{{
					ID:    "SUBTASK-1",
					Title: "Build form",
				}},
			}},
		}},
	}
}

func TestSyncDecompositionCreatesTree(t *testing.T) {
	var created []models.JiraIssue
	svc := newSyncService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/rest/api/2/issue", r.URL.Path)

		var issue models.JiraIssue
		require.NoError(t, json.NewDecoder(r.Body).Decode(&issue))
		created = append(created, issue)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": "%d", "key": "PROJ-%d"}`, len(created), len(created))
	})

	result := svc.SyncDecomposition("run-1", sampleDecomposition())

	assert.Equal(t, 3, result.TicketsCreated)
	assert.Zero(t, result.TicketsFailed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, models.SyncSuccess, result.SyncStatus["EPIC-1"])
	assert.Equal(t, models.SyncSuccess, result.SyncStatus["STORY-1"])
	assert.Equal(t, models.SyncSuccess, result.SyncStatus["SUBTASK-1"])
	assert.Equal(t, "PROJ-1", result.EpicKeys["EPIC-1"])
	assert.Equal(t, "PROJ-2", result.StoryKeys["STORY-1"])

	require.Len(t, created, 3)
	assert.Equal(t, "Epic", created[0].Fields.IssueType.Name)
	assert.Equal(t, "Story", created[1].Fields.IssueType.Name)
	require.NotNil(t, created[1].Fields.Parent)
	assert.Equal(t, "PROJ-1", created[1].Fields.Parent.Key)
	assert.Contains(t, created[1].Fields.Description, "*Acceptance Criteria:*")
	assert.Contains(t, created[1].Fields.Description, "* email verified")
	assert.Equal(t, "Sub-task", created[2].Fields.IssueType.Name)
	assert.Equal(t, "PROJ-2", created[2].Fields.Parent.Key)
}

func TestSyncDecompositionSkipsChildrenOfFailedEpic(t *testing.T) {
	calls := 0
	svc := newSyncService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorMessages": ["epic name required"]}`)
	})

	result := svc.SyncDecomposition("run-1", sampleDecomposition())

	assert.Equal(t, 1, calls, "only the epic is attempted")
	assert.Zero(t, result.TicketsCreated)
	assert.Equal(t, 1, result.TicketsFailed)
	assert.Equal(t, models.SyncError, result.SyncStatus["EPIC-1"])
	assert.Equal(t, models.SyncPending, result.SyncStatus["STORY-1"])
	assert.Equal(t, models.SyncPending, result.SyncStatus["SUBTASK-1"])
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "EPIC-1")
}

func TestSyncDecompositionPartialFailure(t *testing.T) {
	calls := 0
	svc := newSyncService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": "%d", "key": "PROJ-%d"}`, calls, calls)
	})

	result := svc.SyncDecomposition("run-1", sampleDecomposition())

	assert.Equal(t, 1, result.TicketsCreated)
	assert.Equal(t, 1, result.TicketsFailed)
	assert.Equal(t, models.SyncSuccess, result.SyncStatus["EPIC-1"])
	assert.Equal(t, models.SyncError, result.SyncStatus["STORY-1"])
	assert.Equal(t, models.SyncPending, result.SyncStatus["SUBTASK-1"])
}

func TestTestConnection(t *testing.T) {
	svc := newSyncService(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "bot", user)
		require.Equal(t, "token", pass)

		switch r.URL.Path {
		case "/rest/api/2/project":
			fmt.Fprint(w, `[{"key": "PROJ", "name": "Project"}]`)
		case "/rest/api/2/project/PROJ":
			fmt.Fprint(w, `{"key": "PROJ", "name": "Project"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	assert.NoError(t, svc.TestConnection())
}
