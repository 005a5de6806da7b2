// Package repositories holds the persistence layers: the on-disk run
// store and the JIRA REST client.
package repositories

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"brd-decomposer/internal/helpers"
	"brd-decomposer/internal/models"
)

// RunStore persists runs and their artifacts under a base directory:
//
//	<base>/runs.json
//	<base>/<run-id>/input/<original file>
//	<base>/<run-id>/intermediate/{summary,decomposition,decomposition_raw}.json
//	<base>/<run-id>/output/{gantt,jira_sync}.json
type RunStore struct {
	basePath string

	mu   sync.Mutex
	runs []models.Run
}

// NewRunStore opens (or creates) a store rooted at basePath and loads the
// existing run index.
func NewRunStore(basePath string) (*RunStore, error) {
	if err := helpers.EnsureDir(basePath); err != nil {
		return nil, err
	}

	s := &RunStore{basePath: basePath}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RunStore) indexPath() string {
	return filepath.Join(s.basePath, "runs.json")
}

// RunDir returns the directory holding all artifacts of one run.
func (s *RunStore) RunDir(runID string) string {
	return filepath.Join(s.basePath, runID)
}

// load refreshes the in-memory index from disk. Callers hold the lock or
// are constructors.
func (s *RunStore) load() error {
	if !helpers.FileExists(s.indexPath()) {
		s.runs = []models.Run{}
		return nil
	}
	if err := helpers.LoadJSON(s.indexPath(), &s.runs); err != nil {
		return fmt.Errorf("failed to load run index: %w", err)
	}
	return nil
}

func (s *RunStore) save() error {
	if err := helpers.SaveJSON(s.runs, s.indexPath()); err != nil {
		return fmt.Errorf("failed to save run index: %w", err)
	}
	return nil
}

// CreateRun registers a new run for the given document, copies it into
// the run's input directory, and initializes the step history.
func (s *RunStore) CreateRun(sourcePath string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	run := models.Run{
		ID:        uuid.NewString(),
		FileName:  filepath.Base(sourcePath),
		FileSize:  int64(len(data)),
		CreatedAt: time.Now().UTC(),
		Status:    models.RunUploaded,
		Steps: map[string]models.StepState{
			models.StepUpload:        {Status: models.StepCompleted, Timestamp: timestamp()},
			models.StepSummary:       {Status: models.StepPending},
			models.StepDecomposition: {Status: models.StepPending},
			models.StepGantt:         {Status: models.StepPending},
			models.StepJiraSync:      {Status: models.StepPending},
		},
	}

	for _, sub := range []string{"input", "intermediate", "output"} {
		if err := helpers.EnsureDir(filepath.Join(s.RunDir(run.ID), sub)); err != nil {
			return nil, err
		}
	}

	run.FilePath = filepath.Join(s.RunDir(run.ID), "input", run.FileName)
	if err := os.WriteFile(run.FilePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	s.runs = append(s.runs, run)
	if err := s.save(); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun returns the run with the given ID.
func (s *RunStore) GetRun(runID string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	for i := range s.runs {
		if s.runs[i].ID == runID {
			run := s.runs[i]
			return &run, nil
		}
	}
	return nil, fmt.Errorf("run %s not found", runID)
}

// ListRuns returns up to limit runs, newest first. A limit of zero means
// all runs.
func (s *RunStore) ListRuns(limit int) ([]models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	runs := make([]models.Run, len(s.runs))
	copy(runs, s.runs)
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// UpdateStatus sets the lifecycle status of a run.
func (s *RunStore) UpdateStatus(runID string, status models.RunStatus) error {
	return s.mutate(runID, func(run *models.Run) {
		run.Status = status
	})
}

// UpdateStep records the state of one pipeline step.
func (s *RunStore) UpdateStep(runID, step, status string, data map[string]string) error {
	return s.mutate(runID, func(run *models.Run) {
		if run.Steps == nil {
			run.Steps = map[string]models.StepState{}
		}
		run.Steps[step] = models.StepState{
			Status:    status,
			Timestamp: timestamp(),
			Data:      data,
		}
	})
}

func (s *RunStore) mutate(runID string, fn func(*models.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	for i := range s.runs {
		if s.runs[i].ID == runID {
			fn(&s.runs[i])
			return s.save()
		}
	}
	return fmt.Errorf("run %s not found", runID)
}

// Cleanup removes the oldest runs beyond maxRuns, deleting their
// artifact directories.
func (s *RunStore) Cleanup(maxRuns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	if maxRuns <= 0 || len(s.runs) <= maxRuns {
		return nil
	}

	sort.Slice(s.runs, func(i, j int) bool {
		return s.runs[i].CreatedAt.After(s.runs[j].CreatedAt)
	})
	for _, run := range s.runs[maxRuns:] {
		if err := os.RemoveAll(s.RunDir(run.ID)); err != nil {
			return fmt.Errorf("failed to remove run %s: %w", run.ID, err)
		}
	}
	s.runs = s.runs[:maxRuns]
	return s.save()
}

// SaveSummary persists a document summary as an intermediate artifact.
func (s *RunStore) SaveSummary(runID string, summary *models.DocumentSummary) error {
	return helpers.SaveJSON(summary, s.intermediatePath(runID, "summary.json"))
}

// LoadSummary loads the saved document summary of a run.
func (s *RunStore) LoadSummary(runID string) (*models.DocumentSummary, error) {
	var summary models.DocumentSummary
	if err := helpers.LoadJSON(s.intermediatePath(runID, "summary.json"), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// HasSummary reports whether a run already has a saved summary.
func (s *RunStore) HasSummary(runID string) bool {
	return helpers.FileExists(s.intermediatePath(runID, "summary.json"))
}

// SaveDecomposition persists the normalized decomposition.
func (s *RunStore) SaveDecomposition(runID string, dec *models.RequirementsDecomposition) error {
	return helpers.SaveJSON(dec, s.intermediatePath(runID, "decomposition.json"))
}

// LoadDecomposition loads the saved decomposition of a run.
func (s *RunStore) LoadDecomposition(runID string) (*models.RequirementsDecomposition, error) {
	var dec models.RequirementsDecomposition
	if err := helpers.LoadJSON(s.intermediatePath(runID, "decomposition.json"), &dec); err != nil {
		return nil, err
	}
	return &dec, nil
}

// SaveRawArtifact persists the pre-normalization model output.
func (s *RunStore) SaveRawArtifact(runID string, raw *models.RawArtifact) error {
	return helpers.SaveJSON(raw, s.intermediatePath(runID, "decomposition_raw.json"))
}

// LoadRawArtifact loads the pre-normalization model output of a run.
func (s *RunStore) LoadRawArtifact(runID string) (*models.RawArtifact, error) {
	var raw models.RawArtifact
	if err := helpers.LoadJSON(s.intermediatePath(runID, "decomposition_raw.json"), &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// SaveGantt persists the derived Gantt chart.
func (s *RunStore) SaveGantt(runID string, chart *models.GanttChart) error {
	return helpers.SaveJSON(chart, s.outputPath(runID, "gantt.json"))
}

// LoadGantt loads the saved Gantt chart of a run.
func (s *RunStore) LoadGantt(runID string) (*models.GanttChart, error) {
	var chart models.GanttChart
	if err := helpers.LoadJSON(s.outputPath(runID, "gantt.json"), &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// SaveSyncResult persists the JIRA sync outcome.
func (s *RunStore) SaveSyncResult(runID string, result *models.JiraSyncResult) error {
	return helpers.SaveJSON(result, s.outputPath(runID, "jira_sync.json"))
}

func (s *RunStore) intermediatePath(runID, name string) string {
	return filepath.Join(s.RunDir(runID), "intermediate", name)
}

func (s *RunStore) outputPath(runID, name string) string {
	return filepath.Join(s.RunDir(runID), "output", name)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
