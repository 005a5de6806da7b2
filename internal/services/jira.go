package services

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"brd-decomposer/internal/config"
	"brd-decomposer/internal/helpers"
	"brd-decomposer/internal/models"
	"brd-decomposer/internal/repositories"
)

// JiraSyncService pushes a decomposition to JIRA as an epic/story/subtask
// issue tree.
type JiraSyncService struct {
	repo       *repositories.JiraRepository
	projectKey string
	logger     *zap.Logger

	retryCount int
	retryDelay time.Duration
}

// NewJiraSyncService creates a new JIRA sync service.
func NewJiraSyncService(jiraConfig *config.JiraConfig, logger *zap.Logger) *JiraSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JiraSyncService{
		repo:       repositories.NewJiraRepository(jiraConfig),
		projectKey: jiraConfig.ProjectKey,
		logger:     logger,
		retryCount: 3,
		retryDelay: 2 * time.Second,
	}
}

// TestConnection verifies credentials and that the configured project is
// accessible.
func (s *JiraSyncService) TestConnection() error {
	projects, err := s.repo.TestConnection()
	if err != nil {
		return fmt.Errorf("JIRA connection failed: %w", err)
	}

	helpers.PrintSuccess("Connected to JIRA (%d projects accessible)", len(projects))

	project, err := s.repo.GetProjectInfo(s.projectKey)
	if err != nil {
		return fmt.Errorf("project %s not accessible: %w", s.projectKey, err)
	}
	helpers.PrintInfo("Target project: %s (%s)", project.Name, project.Key)
	return nil
}

func (s *JiraSyncService) createWithRetry(issue *models.JiraIssue) (*models.JiraResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= s.retryCount; attempt++ {
		resp, err := s.repo.CreateIssue(issue)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		s.logger.Warn("issue creation failed",
			zap.String("summary", issue.Fields.Summary),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < s.retryCount {
			time.Sleep(s.retryDelay)
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", s.retryCount, lastErr)
}

// SyncDecomposition creates the issue tree in three passes: epics first,
// then stories under created epics, then subtasks under created stories.
// Children of a failed parent are skipped and stay pending in the result.
func (s *JiraSyncService) SyncDecomposition(runID string, dec *models.RequirementsDecomposition) *models.JiraSyncResult {
	result := &models.JiraSyncResult{
		RunID:       runID,
		SyncStatus:  map[string]string{},
		EpicKeys:    map[string]string{},
		StoryKeys:   map[string]string{},
		SubtaskKeys: map[string]string{},
		Errors:      []string{},
		SyncedAt:    time.Now().UTC(),
	}

	for _, epic := range dec.Epics {
		result.SyncStatus[epic.ID] = models.SyncPending
		for _, story := range epic.Stories {
			result.SyncStatus[story.ID] = models.SyncPending
			for _, subtask := range story.Subtasks {
				result.SyncStatus[subtask.ID] = models.SyncPending
			}
		}
	}

	for _, epic := range dec.Epics {
		resp, err := s.createWithRetry(&models.JiraIssue{
			Fields: models.JiraFields{
				Project:     models.JiraProject{Key: s.projectKey},
				Summary:     epic.Title,
				Description: epic.Description,
				IssueType:   models.JiraIssueType{Name: "Epic"},
				Labels:      []string{"brd-decomposer"},
			},
		})
		if err != nil {
			s.recordFailure(result, epic.ID, fmt.Sprintf("epic %s: %v", epic.ID, err))
			helpers.PrintError("Epic %q failed: %v", epic.Title, err)
			continue
		}
		result.SyncStatus[epic.ID] = models.SyncSuccess
		result.EpicKeys[epic.ID] = resp.Key
		result.TicketsCreated++
		helpers.PrintSuccess("Created epic %s: %s", resp.Key, epic.Title)
	}

	for _, epic := range dec.Epics {
		epicKey, ok := result.EpicKeys[epic.ID]
		if !ok {
			continue
		}
		for _, story := range epic.Stories {
			resp, err := s.createWithRetry(&models.JiraIssue{
				Fields: models.JiraFields{
					Project:     models.JiraProject{Key: s.projectKey},
					Summary:     story.Title,
					Description: storyDescription(story),
					IssueType:   models.JiraIssueType{Name: "Story"},
					Parent:      &models.JiraParent{Key: epicKey},
					Labels:      []string{"brd-decomposer"},
				},
			})
			if err != nil {
				s.recordFailure(result, story.ID, fmt.Sprintf("story %s: %v", story.ID, err))
				helpers.PrintError("Story %q failed: %v", story.Title, err)
				continue
			}
			result.SyncStatus[story.ID] = models.SyncSuccess
			result.StoryKeys[story.ID] = resp.Key
			result.TicketsCreated++
			helpers.PrintSuccess("Created story %s: %s", resp.Key, story.Title)
		}
	}

	for _, epic := range dec.Epics {
		for _, story := range epic.Stories {
			storyKey, ok := result.StoryKeys[story.ID]
			if !ok {
				continue
			}
			for _, subtask := range story.Subtasks {
				resp, err := s.createWithRetry(&models.JiraIssue{
					Fields: models.JiraFields{
						Project:     models.JiraProject{Key: s.projectKey},
						Summary:     subtask.Title,
						Description: subtask.Description,
						IssueType:   models.JiraIssueType{Name: "Sub-task"},
						Parent:      &models.JiraParent{Key: storyKey},
					},
				})
				if err != nil {
					s.recordFailure(result, subtask.ID, fmt.Sprintf("subtask %s: %v", subtask.ID, err))
					helpers.PrintError("Subtask %q failed: %v", subtask.Title, err)
					continue
				}
				result.SyncStatus[subtask.ID] = models.SyncSuccess
				result.SubtaskKeys[subtask.ID] = resp.Key
				result.TicketsCreated++
			}
		}
	}

	return result
}

func (s *JiraSyncService) recordFailure(result *models.JiraSyncResult, nodeID, message string) {
	result.SyncStatus[nodeID] = models.SyncError
	result.Errors = append(result.Errors, message)
	result.TicketsFailed++
}

func storyDescription(story models.Story) string {
	var sb strings.Builder
	sb.WriteString(story.Description)
	if len(story.AcceptanceCriteria) > 0 {
		sb.WriteString("\n\n*Acceptance Criteria:*\n")
		for _, criterion := range story.AcceptanceCriteria {
			sb.WriteString("* ")
			sb.WriteString(criterion)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
