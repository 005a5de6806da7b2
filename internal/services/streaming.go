package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"brd-decomposer/internal/jsonrepair"
	"brd-decomposer/internal/models"
	"brd-decomposer/internal/normalize"
)

// EventType identifies the kind of progress event emitted while a
// decomposition streams in.
type EventType string

const (
	EventProgress      EventType = "progress"
	EventChunkStart    EventType = "chunk_start"
	EventChunkComplete EventType = "chunk_complete"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
)

// Event is one message on the decomposition event stream. Exactly one
// terminal event (complete or error) closes every stream.
type Event struct {
	Type EventType

	// Progress.
	ChunksReceived int
	ResponseLength int

	// Chunk lifecycle.
	ChunkIndex  int
	TotalChunks int
	EpicsCount  int

	// Terminal payload.
	Data        *models.RequirementsDecomposition
	Raw         string
	Warnings    []string
	WasRepaired bool
	Err         error
}

// modelCaller is the slice of AIClient the streaming agent needs.
type modelCaller interface {
	stream(ctx context.Context, system, user string, onFragment func(string)) (string, error)
}

// StreamingAgent decomposes a document summary, either in a single
// streaming pass or chunked by feature groups when the summary scores as
// complex.
type StreamingAgent struct {
	caller     modelCaller
	normalizer *normalize.Normalizer
	logger     *zap.Logger

	chunkSize     int
	progressEvery int
}

// NewStreamingAgent creates a streaming agent on top of an AIClient.
func NewStreamingAgent(client *AIClient, logger *zap.Logger) *StreamingAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamingAgent{
		caller:        client,
		normalizer:    normalize.New(logger),
		logger:        logger,
		chunkSize:     5,
		progressEvery: 10,
	}
}

// AssessComplexity scores a summary between 0 and 1. Scores above 0.7
// switch decomposition to chunked processing.
func (a *StreamingAgent) AssessComplexity(summary *models.DocumentSummary) float64 {
	score := 0.0

	switch {
	case len(summary.KeyFeatures) > 20:
		score += 0.3
	case len(summary.KeyFeatures) > 10:
		score += 0.2
	}

	techLen := serializedLength(summary.TechnicalRequirements)
	switch {
	case techLen > 2000:
		score += 0.3
	case techLen > 1000:
		score += 0.2
	}

	if len(summary.Risks) > 5 {
		score += 0.2
	}

	if whole, err := json.Marshal(summary); err == nil && len(whole) > 5000 {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func serializedLength(items []string) int {
	data, err := json.Marshal(items)
	if err != nil {
		return 0
	}
	return len(data)
}

// DecomposeStream decomposes the summary and reports progress on the
// returned channel. The channel is closed after the terminal event.
func (a *StreamingAgent) DecomposeStream(ctx context.Context, summary *models.DocumentSummary) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		score := a.AssessComplexity(summary)
		a.logger.Info("assessed document complexity",
			zap.Float64("score", score),
			zap.Int("features", len(summary.KeyFeatures)))

		if score <= 0.7 {
			a.singlePass(ctx, summary, events)
			return
		}
		a.chunked(ctx, summary, events)
	}()

	return events
}

// sendEvent delivers evt unless the consumer has gone away. A consumer
// that cancels the context and stops reading must not strand the
// producer goroutine on a full channel.
func sendEvent(ctx context.Context, events chan<- Event, evt Event) bool {
	select {
	case events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *StreamingAgent) singlePass(ctx context.Context, summary *models.DocumentSummary, events chan<- Event) {
	fragments := 0
	length := 0

	text, err := a.caller.stream(ctx, decomposeSystemPrompt, decompositionPrompt(summary), func(fragment string) {
		fragments++
		length += len(fragment)
		if fragments%a.progressEvery == 0 {
			sendEvent(ctx, events, Event{
				Type:           EventProgress,
				ChunksReceived: fragments,
				ResponseLength: length,
			})
		}
	})
	if err != nil {
		sendEvent(ctx, events, Event{Type: EventError, Err: err})
		return
	}

	result := jsonrepair.ParseWithRecovery(text)
	dec := a.normalizer.Decomposition(result.Data)
	dec.CreatedAt = time.Now().UTC()
	dec.Warnings = append(dec.Warnings, result.Warnings...)

	sendEvent(ctx, events, Event{
		Type:        EventComplete,
		Data:        &dec,
		Raw:         text,
		Warnings:    result.Warnings,
		WasRepaired: result.WasRepaired,
	})
}

func (a *StreamingAgent) chunked(ctx context.Context, summary *models.DocumentSummary, events chan<- Event) {
	chunks := a.splitIntoChunks(summary)
	total := len(chunks)

	merged := models.RequirementsDecomposition{
		CreatedAt: time.Now().UTC(),
		Epics:     []models.Epic{},
		Warnings:  []string{},
	}
	anyRepaired := false
	var allNotes []string

	for i, chunk := range chunks {
		if !sendEvent(ctx, events, Event{Type: EventChunkStart, ChunkIndex: i + 1, TotalChunks: total}) {
			return
		}

		text, err := a.caller.stream(ctx, decomposeSystemPrompt, chunkPrompt(chunk, i+1, total), nil)
		if err != nil {
			sendEvent(ctx, events, Event{
				Type:        EventError,
				ChunkIndex:  i + 1,
				TotalChunks: total,
				Err:         fmt.Errorf("chunk %d/%d failed: %w", i+1, total, err),
			})
			return
		}

		result := jsonrepair.ParseWithRecovery(text)
		dec := a.normalizer.Decomposition(result.Data)
		anyRepaired = anyRepaired || result.WasRepaired
		allNotes = append(allNotes, result.Warnings...)

		merged.Epics = append(merged.Epics, dec.Epics...)
		merged.TotalEstimatedHours += dec.TotalEstimatedHours
		merged.Warnings = append(merged.Warnings, dec.Warnings...)

		if !sendEvent(ctx, events, Event{
			Type:        EventChunkComplete,
			ChunkIndex:  i + 1,
			TotalChunks: total,
			EpicsCount:  len(dec.Epics),
		}) {
			return
		}
	}

	merged.TimelineWeeks = normalize.EstimateWeeks(merged.TotalEstimatedHours)
	merged.Warnings = append(merged.Warnings, allNotes...)

	raw, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		sendEvent(ctx, events, Event{Type: EventError, Err: fmt.Errorf("failed to serialize merged result: %w", err)})
		return
	}

	sendEvent(ctx, events, Event{
		Type:        EventComplete,
		Data:        &merged,
		Raw:         string(raw),
		Warnings:    allNotes,
		WasRepaired: anyRepaired,
	})
}

// summaryChunk is the unit of chunked decomposition: a group of features
// plus, on the first chunk only, the shared project context.
type summaryChunk struct {
	summary  *models.DocumentSummary
	features []string
	shared   bool
}

// splitIntoChunks groups key features into fixed-size batches. The first
// chunk carries the shared context (objectives, scope, technical
// requirements, risks, assumptions) so it is not repeated per chunk.
func (a *StreamingAgent) splitIntoChunks(summary *models.DocumentSummary) []summaryChunk {
	features := summary.KeyFeatures
	if len(features) == 0 {
		return []summaryChunk{{summary: summary, shared: true}}
	}

	var chunks []summaryChunk
	for start := 0; start < len(features); start += a.chunkSize {
		end := start + a.chunkSize
		if end > len(features) {
			end = len(features)
		}
		chunks = append(chunks, summaryChunk{
			summary:  summary,
			features: features[start:end],
			shared:   start == 0,
		})
	}
	return chunks
}

// chunkPrompt renders the prompt for one feature group. IDs are prefixed
// with the chunk index so merged trees stay unique.
func chunkPrompt(chunk summaryChunk, index, total int) string {
	shared := ""
	if chunk.shared {
		shared = fmt.Sprintf(`Objectives:
%s
Scope:
%s
Technical Requirements:
%s
Risks:
%s
Assumptions:
%s
`,
			bulletList(chunk.summary.Objectives),
			bulletList(chunk.summary.Scope),
			bulletList(chunk.summary.TechnicalRequirements),
			bulletList(chunk.summary.Risks),
			bulletList(chunk.summary.Assumptions))
	}

	return fmt.Sprintf(`You are processing feature group %d of %d for the project "%s".
%s
Features in this group:
%s

Break ONLY these features into epics, user stories, and technical subtasks. Respond with a JSON object of the structure:
{
  "epics": [{"id": "EPIC-%d-1", "title": "...", "description": "...", "priority": "Low|Medium|High|Critical", "stories": [{"id": "STORY-%d-1", "title": "...", "description": "...", "priority": "...", "acceptance_criteria": ["..."], "subtasks": [{"id": "SUBTASK-%d-1", "title": "...", "description": "...", "priority": "...", "estimated_hours": 8}]}]}],
  "total_estimated_hours": 0
}

Prefix every id with "%d-" as shown so ids stay unique across groups. Estimate hours at the subtask level.`,
		index, total, chunk.summary.ProjectName,
		shared,
		bulletList(chunk.features),
		index, index, index, index)
}
