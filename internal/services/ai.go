// Package services contains the application services: the Anthropic
// client, document analysis, streaming decomposition, JIRA sync, and
// Gantt derivation.
package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"brd-decomposer/internal/config"
	"brd-decomposer/internal/helpers"
	"brd-decomposer/internal/jsonrepair"
	"brd-decomposer/internal/models"
	"brd-decomposer/internal/normalize"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicMessage is one turn of the conversation.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicRequest is the messages API request body.
type AnthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream,omitempty"`
}

// RetryPolicy bounds transient model-call failures. Malformed output is
// never retried; it is handled by the repair cascade instead.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// AIClient talks to the Anthropic messages API and turns responses into
// domain structures via the repair and normalization pipeline.
type AIClient struct {
	config     *config.AnthropicConfig
	client     *http.Client
	logger     *zap.Logger
	normalizer *normalize.Normalizer
	retry      RetryPolicy
}

// NewAIClient creates a new Anthropic client.
func NewAIClient(anthropicConfig *config.AnthropicConfig, logger *zap.Logger) *AIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIClient{
		config: anthropicConfig,
		client: &http.Client{
			Timeout: time.Duration(anthropicConfig.TimeoutSeconds) * time.Second,
		},
		logger:     logger,
		normalizer: normalize.New(logger),
		retry: RetryPolicy{
			MaxAttempts: anthropicConfig.RetryCount,
			Delay:       time.Duration(anthropicConfig.RetryDelaySeconds) * time.Second,
		},
	}
}

// complete sends a non-streaming request and returns the concatenated text
// content.
func (c *AIClient) complete(ctx context.Context, system, user string) (string, error) {
	if c.config.APIKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	reqBody := AnthropicRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		System:    system,
		Messages: []AnthropicMessage{
			{Role: "user", Content: user},
		},
		Temperature: 0.1,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var apiResponse struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("failed to decode API response: %w", err)
	}
	if len(apiResponse.Content) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	var sb strings.Builder
	for _, block := range apiResponse.Content {
		sb.WriteString(block.Text)
	}
	return sb.String(), nil
}

// stream sends a streaming request, invoking onFragment for every text
// delta, and returns the accumulated response text.
func (c *AIClient) stream(ctx context.Context, system, user string, onFragment func(string)) (string, error) {
	if c.config.APIKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	// Auto-apply timeout if the context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.client.Timeout)
		defer cancel()
	}

	reqBody := AnthropicRequest{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		System:    system,
		Messages: []AnthropicMessage{
			{Role: "user", Content: user},
		},
		Temperature: 0.1,
		Stream:      true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var sb strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var evt struct {
			Type  string `json:"type"`
			Delta *struct {
				Type string `json:"type"`
				Text string `json:"text,omitempty"`
			} `json:"delta,omitempty"`
			Error *struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error,omitempty"`
		}
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue
		}
		if evt.Error != nil {
			return "", fmt.Errorf("API error: %s", evt.Error.Message)
		}
		if evt.Type == "content_block_delta" && evt.Delta != nil && evt.Delta.Text != "" {
			sb.WriteString(evt.Delta.Text)
			if onFragment != nil {
				onFragment(evt.Delta.Text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read failed: %w", err)
	}

	return sb.String(), nil
}

// completeWithRetry wraps complete with the configured retry policy.
func (c *AIClient) completeWithRetry(ctx context.Context, system, user string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		text, err := c.complete(ctx, system, user)
		if err == nil {
			return text, nil
		}

		lastErr = err
		c.logger.Warn("model call failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.MaxAttempts),
			zap.Error(err))
		helpers.PrintWarning("Attempt %d failed: %v", attempt, err)

		if attempt < c.retry.MaxAttempts {
			select {
			case <-time.After(c.retry.Delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

const summarySystemPrompt = `You are a senior business analyst. Extract a structured summary from business requirements documents. Respond ONLY with valid JSON, no markdown formatting or explanations.`

// GenerateSummary asks the model for a structured digest of the document.
// Unusable responses degrade to a placeholder summary rather than an error.
func (c *AIClient) GenerateSummary(ctx context.Context, documentText string) (*models.DocumentSummary, error) {
	prompt := fmt.Sprintf(`Analyze the following business requirements document and respond with a JSON object of this exact structure:
{
  "project_name": "string",
  "project_description": "string",
  "objectives": ["string"],
  "scope": ["string"],
  "stakeholders": ["string"],
  "key_features": ["string"],
  "technical_requirements": ["string"],
  "timeline_estimate": "string",
  "risks": ["string"],
  "assumptions": ["string"]
}

Document:
%s`, documentText)

	text, err := c.completeWithRetry(ctx, summarySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	result := jsonrepair.ParseWithRecovery(text)
	if unrecoverable(result) {
		c.logger.Warn("summary response unusable", zap.Strings("warnings", result.Warnings))
		return &models.DocumentSummary{
			ProjectName:           "Unknown Project",
			ProjectDescription:    "Failed to parse AI response",
			Objectives:            []string{},
			Scope:                 []string{},
			Stakeholders:          []string{},
			KeyFeatures:           []string{},
			TechnicalRequirements: []string{},
			TimelineEstimate:      "Unknown",
			Risks:                 []string{},
			Assumptions:           []string{},
		}, nil
	}

	summary := normalize.Summary(result.Data)
	return &summary, nil
}

const decomposeSystemPrompt = `You are a senior project manager and technical lead. Break project requirements into epics, user stories, and technical subtasks. Respond ONLY with valid JSON, no markdown formatting or explanations.`

// DecomposeRequirements performs a single-pass decomposition of a summary.
// It returns the normalized result together with the raw model output for
// artifact retention.
func (c *AIClient) DecomposeRequirements(ctx context.Context, summary *models.DocumentSummary) (*models.RequirementsDecomposition, *models.RawArtifact, error) {
	text, err := c.completeWithRetry(ctx, decomposeSystemPrompt, decompositionPrompt(summary))
	if err != nil {
		return nil, nil, err
	}

	result := jsonrepair.ParseWithRecovery(text)
	dec := c.normalizer.Decomposition(result.Data)
	dec.CreatedAt = time.Now().UTC()
	dec.Warnings = append(dec.Warnings, result.Warnings...)

	artifact := &models.RawArtifact{
		Raw:         text,
		Warnings:    result.Warnings,
		WasRepaired: result.WasRepaired,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	return &dec, artifact, nil
}

// decompositionPrompt renders the single-pass decomposition prompt from a
// document summary.
func decompositionPrompt(summary *models.DocumentSummary) string {
	return fmt.Sprintf(`Break the following project into epics, user stories, and technical subtasks.

Project: %s
Description: %s
Objectives:
%s
Scope:
%s
Key Features:
%s
Technical Requirements:
%s
Risks:
%s
Assumptions:
%s

Respond with a JSON object of this exact structure:
{
  "epics": [
    {
      "id": "EPIC-1",
      "title": "string",
      "description": "string",
      "priority": "Low|Medium|High|Critical",
      "stories": [
        {
          "id": "STORY-1",
          "title": "string",
          "description": "As a [user], I want [goal] so that [benefit]",
          "priority": "Low|Medium|High|Critical",
          "acceptance_criteria": ["string"],
          "subtasks": [
            {
              "id": "SUBTASK-1",
              "title": "string",
              "description": "string",
              "priority": "Low|Medium|High|Critical",
              "estimated_hours": 8
            }
          ]
        }
      ]
    }
  ],
  "total_estimated_hours": 0,
  "timeline_weeks": 0,
  "notes": "string"
}

Guidelines:
- Every story needs acceptance criteria and at least one subtask
- Estimate hours at the subtask level; 2 to 16 hours per subtask
- Use unique ids across the whole tree`,
		summary.ProjectName,
		summary.ProjectDescription,
		bulletList(summary.Objectives),
		bulletList(summary.Scope),
		bulletList(summary.KeyFeatures),
		bulletList(summary.TechnicalRequirements),
		bulletList(summary.Risks),
		bulletList(summary.Assumptions))
}

// unrecoverable reports whether the repair cascade gave up and returned
// the empty fallback structure.
func unrecoverable(result jsonrepair.ParseResult) bool {
	for _, w := range result.Warnings {
		if w == jsonrepair.WarnUnrecoverable {
			return true
		}
	}
	return false
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- none listed"
	}
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
