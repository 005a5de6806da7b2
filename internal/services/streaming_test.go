package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"brd-decomposer/internal/models"
	"brd-decomposer/internal/normalize"
)

// stubCaller replays canned responses and records prompts.
type stubCaller struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
	streamed  chan struct{}
}

func (s *stubCaller) stream(_ context.Context, _, user string, onFragment func(string)) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, user)
	if s.streamed != nil {
		defer func() {
			close(s.streamed)
			s.streamed = nil
		}()
	}

	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	resp := s.responses[i]
	if onFragment != nil {
		for _, part := range strings.SplitAfter(resp, ",") {
			onFragment(part)
		}
	}
	return resp, nil
}

func newTestAgent(caller modelCaller) *StreamingAgent {
	return &StreamingAgent{
		caller:        caller,
		normalizer:    normalize.New(nil),
		chunkSize:     5,
		progressEvery: 10,
		logger:        zap.NewNop(),
	}
}

func features(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("feature %d", i+1)
	}
	return out
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for evt := range events {
		out = append(out, evt)
	}
	return out
}

func TestAssessComplexity(t *testing.T) {
	agent := newTestAgent(&stubCaller{})

	tests := []struct {
		name    string
		summary *models.DocumentSummary
		want    float64
	}{
		{"trivial", &models.DocumentSummary{}, 0},
		{"many features", &models.DocumentSummary{KeyFeatures: features(11)}, 0.2},
		{"very many features", &models.DocumentSummary{KeyFeatures: features(21)}, 0.3},
		{"risky", &models.DocumentSummary{Risks: features(6)}, 0.2},
		{
			"heavy tech requirements",
			&models.DocumentSummary{TechnicalRequirements: []string{strings.Repeat("x", 2100)}},
			0.3,
		},
		{
			"huge summary",
			&models.DocumentSummary{TechnicalRequirements: []string{strings.Repeat("x", 6000)}},
			0.5, // heavy tech requirements plus overall size
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, agent.AssessComplexity(tt.summary), 0.001)
		})
	}
}

func TestDecomposeStreamSinglePass(t *testing.T) {
	caller := &stubCaller{responses: []string{`{
		"epics": [{"id": "EPIC-1", "title": "Core", "stories": [{
			"id": "STORY-1", "title": "S", "subtasks": [
				{"id": "SUB-1", "title": "T", "estimated_hours": 80}
			]
		}]}]
	}`}}
	agent := newTestAgent(caller)

	events := collect(t, agent.DecomposeStream(context.Background(), &models.DocumentSummary{ProjectName: "Atlas"}))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, EventComplete, last.Type)
	require.NotNil(t, last.Data)
	assert.False(t, last.WasRepaired)
	assert.Equal(t, 80, last.Data.TotalEstimatedHours)
	assert.Equal(t, 2, last.Data.TimelineWeeks)
	assert.Equal(t, 1, caller.calls)
}

func TestDecomposeStreamEmitsProgress(t *testing.T) {
	// A response with enough comma-separated fragments to cross the
	// progress interval.
	caller := &stubCaller{responses: []string{
		`{"epics": [],` + strings.Repeat(` "k": 1,`, 30) + ` "total_estimated_hours": 0}`,
	}}
	agent := newTestAgent(caller)

	events := collect(t, agent.DecomposeStream(context.Background(), &models.DocumentSummary{}))

	var progress int
	for _, evt := range events {
		if evt.Type == EventProgress {
			progress++
			assert.Positive(t, evt.ChunksReceived)
			assert.Positive(t, evt.ResponseLength)
		}
	}
	assert.Positive(t, progress)
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
}

func complexSummary() *models.DocumentSummary {
	return &models.DocumentSummary{
		ProjectName:           "Atlas",
		KeyFeatures:           features(12),
		TechnicalRequirements: []string{strings.Repeat("x", 6000)},
		Risks:                 features(6),
	}
}

func TestDecomposeStreamChunked(t *testing.T) {
	chunkResponse := func(hours int) string {
		return fmt.Sprintf(`{
			"epics": [{"id": "EPIC-X", "title": "E", "stories": [{
				"id": "STORY-X", "title": "S", "subtasks": [
					{"id": "SUB-X", "title": "T", "estimated_hours": %d}
				]
			}]}]
		}`, hours)
	}
	caller := &stubCaller{responses: []string{
		chunkResponse(40), chunkResponse(40), chunkResponse(10),
	}}
	agent := newTestAgent(caller)

	summary := complexSummary()
	require.Greater(t, agent.AssessComplexity(summary), 0.7)

	events := collect(t, agent.DecomposeStream(context.Background(), summary))

	var starts, completes int
	for _, evt := range events {
		switch evt.Type {
		case EventChunkStart:
			starts++
		case EventChunkComplete:
			completes++
			assert.Equal(t, 1, evt.EpicsCount)
		}
	}
	assert.Equal(t, 3, starts, "12 features split into groups of 5")
	assert.Equal(t, 3, completes)

	last := events[len(events)-1]
	require.Equal(t, EventComplete, last.Type)
	require.NotNil(t, last.Data)
	assert.Len(t, last.Data.Epics, 3)
	assert.Equal(t, 90, last.Data.TotalEstimatedHours)
	assert.Equal(t, 3, last.Data.TimelineWeeks)
	assert.NotEmpty(t, last.Raw)

	// Shared project context goes into the first chunk prompt only.
	require.Len(t, caller.prompts, 3)
	assert.Contains(t, caller.prompts[0], "Objectives:")
	assert.NotContains(t, caller.prompts[1], "Objectives:")
}

func TestDecomposeStreamChunkFailureIsTerminal(t *testing.T) {
	caller := &stubCaller{
		responses: []string{`{"epics": []}`, "", ""},
		errs:      []error{nil, fmt.Errorf("api down")},
	}
	agent := newTestAgent(caller)

	events := collect(t, agent.DecomposeStream(context.Background(), complexSummary()))

	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	require.Error(t, last.Err)
	assert.Contains(t, last.Err.Error(), "chunk 2/3 failed")
	assert.Equal(t, 2, caller.calls, "no chunks attempted after a failure")
}

func TestDecomposeStreamAbandonedConsumer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Enough fragments to raise far more progress events than the
	// channel buffers. With nobody reading, the producer must drop
	// events on the cancelled context and close the channel instead of
	// blocking forever.
	streamed := make(chan struct{})
	caller := &stubCaller{
		responses: []string{`{"epics": []` + strings.Repeat(`, "k": 1`, 400) + `}`},
		streamed:  streamed,
	}
	agent := newTestAgent(caller)

	events := agent.DecomposeStream(ctx, &models.DocumentSummary{})

	<-streamed
	collect(t, events)
	assert.Equal(t, 1, caller.calls)
}

func TestSplitIntoChunksNoFeatures(t *testing.T) {
	agent := newTestAgent(&stubCaller{})

	chunks := agent.splitIntoChunks(&models.DocumentSummary{})

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].shared)
}
