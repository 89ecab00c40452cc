// Package extract turns raw application text into a structured
// ParsedApplication using an LLM extraction call.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/llm"
)

const extractionSystemPrompt = `You are a grant application parser. Extract structured information from the application text you are given.

Respond with a single JSON object and nothing else. Use these fields (omit any you cannot determine):

{
  "project_name": "...",
  "project_summary": "one-paragraph summary",
  "project_description": "full description",
  "team_name": "...",
  "team_members": [{"name": "...", "role": "..."}],
  "team_background": "...",
  "prior_work": "...",
  "wallet_address": "...",
  "requested_amount": 0,
  "budget_breakdown": [{"category": "...", "description": "...", "amount": 0}],
  "milestones": [{"title": "...", "description": "...", "deliverables": ["..."], "timeline": "..."}],
  "timeline": "...",
  "category": "...",
  "ecosystem_benefit": "...",
  "github_url": "...",
  "website_url": "..."
}

Never invent information that is not in the text. requested_amount must be a number, not a string.`

// Extractor parses applications with an LLM call.
type Extractor struct {
	client  *llm.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewExtractor creates an extractor using the given model.
func NewExtractor(client *llm.Client, model string, timeout time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, model: model, timeout: timeout, logger: logger}
}

// Extract parses raw application text into a structured record. The
// returned error is non-nil when the model reply contains no usable
// JSON object or lacks the minimum identifying fields.
func (e *Extractor) Extract(ctx context.Context, rawContent string) (*council.ParsedApplication, error) {
	temp := 0.0
	resp, err := e.client.Complete(ctx, llm.Request{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: rawContent},
		},
		Temperature: &temp,
		Timeout:     e.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	parsed, err := decodeParsed(resp.Content)
	if err != nil {
		return nil, err
	}

	if parsed.ProjectName == "" && parsed.TeamName == "" {
		return nil, fmt.Errorf("extraction produced no project or team name")
	}

	e.logger.Debug("Extracted application",
		"project", parsed.ProjectName,
		"team", parsed.TeamName,
		"amount", parsed.RequestedAmount)
	return parsed, nil
}

// decodeParsed pulls a JSON object out of a model reply. Models wrap
// JSON in markdown fences or prose often enough that we strip fences
// first and fall back to the outermost brace pair.
func decodeParsed(content string) (*council.ParsedApplication, error) {
	candidate := stripFences(content)

	var parsed council.ParsedApplication
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return &parsed, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("reply contains no JSON object")
	}
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode extraction reply: %w", err)
	}
	return &parsed, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
