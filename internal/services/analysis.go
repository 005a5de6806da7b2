package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"brd-decomposer/internal/config"
	"brd-decomposer/internal/helpers"
	"brd-decomposer/internal/jsonrepair"
	"brd-decomposer/internal/models"
	"brd-decomposer/internal/normalize"
	"brd-decomposer/internal/repositories"
)

// AnalysisService orchestrates the document pipeline: summarization,
// decomposition, reparsing, validation, and Gantt derivation, updating
// run state as it goes.
type AnalysisService struct {
	store      *repositories.RunStore
	ai         *AIClient
	agent      *StreamingAgent
	normalizer *normalize.Normalizer
	cfg        *config.Config
	logger     *zap.Logger
}

// NewAnalysisService creates the orchestration service.
func NewAnalysisService(store *repositories.RunStore, ai *AIClient, cfg *config.Config, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{
		store:      store,
		ai:         ai,
		agent:      NewStreamingAgent(ai, logger),
		normalizer: normalize.New(logger),
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessDocument registers a new run for the document and generates its
// summary.
func (s *AnalysisService) ProcessDocument(ctx context.Context, filePath string) (*models.Run, *models.DocumentSummary, error) {
	run, err := s.store.CreateRun(filePath)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("created run",
		zap.String("run_id", run.ID),
		zap.String("file", run.FileName))

	if err := s.store.UpdateStatus(run.ID, models.RunProcessing); err != nil {
		return nil, nil, err
	}
	if err := s.store.UpdateStep(run.ID, models.StepSummary, models.StepInProgress, nil); err != nil {
		return nil, nil, err
	}

	text, err := helpers.ReadFile(run.FilePath)
	if err != nil {
		s.failStep(run.ID, models.StepSummary, err)
		return nil, nil, err
	}

	summary, err := s.ai.GenerateSummary(ctx, text)
	if err != nil {
		s.failStep(run.ID, models.StepSummary, err)
		return nil, nil, fmt.Errorf("summary generation failed: %w", err)
	}

	if err := s.store.SaveSummary(run.ID, summary); err != nil {
		return nil, nil, err
	}
	if err := s.store.UpdateStep(run.ID, models.StepSummary, models.StepCompleted, nil); err != nil {
		return nil, nil, err
	}
	if err := s.store.UpdateStatus(run.ID, models.RunSummarized); err != nil {
		return nil, nil, err
	}

	if err := s.store.Cleanup(s.cfg.Processing.MaxRunHistory); err != nil {
		s.logger.Warn("run cleanup failed", zap.Error(err))
	}

	return run, summary, nil
}

// Decompose turns a run's summary into a normalized decomposition,
// streaming progress to the terminal and persisting both the result and
// the raw model output.
func (s *AnalysisService) Decompose(ctx context.Context, runID string) (*models.RequirementsDecomposition, error) {
	run, err := s.store.GetRun(runID)
	if err != nil {
		return nil, err
	}

	summary, err := s.ensureSummary(ctx, run)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateStep(runID, models.StepDecomposition, models.StepInProgress, nil); err != nil {
		return nil, err
	}

	var dec *models.RequirementsDecomposition
	for event := range s.agent.DecomposeStream(ctx, summary) {
		switch event.Type {
		case EventProgress:
			helpers.PrintInfo("Receiving response... %d fragments, %d bytes", event.ChunksReceived, event.ResponseLength)
		case EventChunkStart:
			helpers.PrintProgress(event.ChunkIndex, event.TotalChunks, "processing feature group")
		case EventChunkComplete:
			helpers.PrintProgress(event.ChunkIndex, event.TotalChunks,
				fmt.Sprintf("done, %d epics", event.EpicsCount))
		case EventComplete:
			dec = event.Data
			dec.DocumentID = runID

			artifact := &models.RawArtifact{
				Raw:         event.Raw,
				Warnings:    event.Warnings,
				WasRepaired: event.WasRepaired,
				GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			}
			if err := s.store.SaveRawArtifact(runID, artifact); err != nil {
				return nil, err
			}
		case EventError:
			s.failStep(runID, models.StepDecomposition, event.Err)
			return nil, fmt.Errorf("decomposition failed: %w", event.Err)
		}
	}
	if dec == nil {
		err := fmt.Errorf("decomposition produced no result")
		s.failStep(runID, models.StepDecomposition, err)
		return nil, err
	}

	if err := s.store.SaveDecomposition(runID, dec); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStep(runID, models.StepDecomposition, models.StepCompleted, map[string]string{
		"epics": strconv.Itoa(len(dec.Epics)),
		"hours": strconv.Itoa(dec.TotalEstimatedHours),
	}); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(runID, models.RunDecomposed); err != nil {
		return nil, err
	}

	return dec, nil
}

// ensureSummary returns the stored summary, generating one from the
// original document when the summary step was skipped.
func (s *AnalysisService) ensureSummary(ctx context.Context, run *models.Run) (*models.DocumentSummary, error) {
	if s.store.HasSummary(run.ID) {
		return s.store.LoadSummary(run.ID)
	}

	text, err := helpers.ReadFile(run.FilePath)
	if err != nil {
		return nil, err
	}
	summary, err := s.ai.GenerateSummary(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}
	if err := s.store.SaveSummary(run.ID, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// Reparse rebuilds the decomposition from the retained raw artifact
// without another model call. When the repair cascade yields no epics it
// falls back to decoding the payload as a double-encoded JSON string.
func (s *AnalysisService) Reparse(runID string) (*models.RequirementsDecomposition, error) {
	artifact, err := s.store.LoadRawArtifact(runID)
	if err != nil {
		return nil, fmt.Errorf("raw decomposition not found: %w", err)
	}

	result := jsonrepair.ParseWithRecovery(artifact.Raw)
	dec := s.normalizer.Decomposition(result.Data)

	if len(dec.Epics) == 0 {
		var inner string
		if err := json.Unmarshal([]byte(artifact.Raw), &inner); err == nil {
			alt := jsonrepair.ParseWithRecovery(inner)
			if altDec := s.normalizer.Decomposition(alt.Data); len(altDec.Epics) > 0 {
				dec = altDec
				result = alt
			}
		}
	}

	dec.DocumentID = runID
	dec.CreatedAt = time.Now().UTC()
	dec.Warnings = append(dec.Warnings, result.Warnings...)
	return &dec, nil
}

// Validate inspects the retained raw artifact and reports structural
// problems without modifying anything. Unlike Reparse it uses a strict
// decode, so repairable defects surface as errors.
func (s *AnalysisService) Validate(runID string) (*normalize.Report, error) {
	artifact, err := s.store.LoadRawArtifact(runID)
	if err != nil {
		return nil, fmt.Errorf("raw decomposition not found: %w", err)
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(artifact.Raw), &parsed); err != nil {
		report := normalize.Report{
			Errors:   []string{fmt.Sprintf("JSON parsing failed: %v", err)},
			Warnings: []string{},
		}
		return &report, nil
	}

	report := normalize.Validate(parsed)
	return &report, nil
}

// GenerateGantt derives and persists the schedule for a run's
// decomposition.
func (s *AnalysisService) GenerateGantt(runID string, startDate time.Time, teamSize int) (*models.GanttChart, error) {
	dec, err := s.store.LoadDecomposition(runID)
	if err != nil {
		return nil, fmt.Errorf("decomposition not found: %w", err)
	}

	if err := s.store.UpdateStep(runID, models.StepGantt, models.StepInProgress, nil); err != nil {
		return nil, err
	}

	chart := BuildGantt(dec, startDate, teamSize)

	if err := s.store.SaveGantt(runID, chart); err != nil {
		s.failStep(runID, models.StepGantt, err)
		return nil, err
	}
	if err := s.store.UpdateStep(runID, models.StepGantt, models.StepCompleted, map[string]string{
		"tasks": strconv.Itoa(len(chart.Tasks)),
	}); err != nil {
		return nil, err
	}

	return chart, nil
}

func (s *AnalysisService) failStep(runID, step string, cause error) {
	data := map[string]string{}
	if cause != nil {
		data["error"] = cause.Error()
	}
	if err := s.store.UpdateStep(runID, step, models.StepFailed, data); err != nil {
		s.logger.Warn("failed to record step failure", zap.String("step", step), zap.Error(err))
	}
	if err := s.store.UpdateStatus(runID, models.RunError); err != nil {
		s.logger.Warn("failed to record run error", zap.Error(err))
	}
}

// DisplayBreakdown prints the decomposition tree to the terminal.
func DisplayBreakdown(dec *models.RequirementsDecomposition) {
	helpers.PrintSeparator()
	helpers.PrintTitle("Requirements Breakdown")
	helpers.PrintSeparator()

	for _, epic := range dec.Epics {
		helpers.TitleColor.Printf("📦 %s: %s [%s] (%dh)\n", epic.ID, epic.Title, epic.Priority, epic.EstimatedHours)
		for _, story := range epic.Stories {
			helpers.InfoColor.Printf("  📖 %s: %s [%s] (%dh)\n", story.ID, story.Title, story.Priority, story.EstimatedHours)
			for _, subtask := range story.Subtasks {
				fmt.Printf("    🔧 %s: %s (%dh)\n", subtask.ID, subtask.Title, subtask.EstimatedHours)
			}
		}
	}

	helpers.PrintSeparator()
	helpers.PrintInfo("Total: %d epics, %d estimated hours, %d weeks",
		len(dec.Epics), dec.TotalEstimatedHours, dec.TimelineWeeks)
	if len(dec.Warnings) > 0 {
		helpers.PrintWarning("%d warnings recorded during normalization", len(dec.Warnings))
	}
}
