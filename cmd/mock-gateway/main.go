// Package main implements a mock inference gateway for local council
// development. It serves OpenAI-compatible /v1/chat/completions
// responses without a real LLM, classifying each request by its shape:
// extraction calls (system-prompted) get a parsed-application JSON
// document, deliberation calls get a maintained position, reflection
// calls get a pattern block, and evaluation calls get a scored review.
//
// Usage:
//
//	mock-gateway -port 11434 -score 8 -recommendation approve
//
// Point the council at it with llm.endpoint:
// http://localhost:11434/v1/chat/completions and an empty API key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// callKind classifies a request by its message shape.
type callKind string

const (
	kindExtraction   callKind = "extraction"
	kindEvaluation   callKind = "evaluation"
	kindDeliberation callKind = "deliberation"
	kindReflection   callKind = "reflection"
)

type server struct {
	score          int
	recommendation string

	calls       atomic.Int64
	callsByKind map[callKind]*atomic.Int64
}

func newServer(score int, recommendation string) *server {
	return &server{
		score:          score,
		recommendation: recommendation,
		callsByKind: map[callKind]*atomic.Int64{
			kindExtraction:   {},
			kindEvaluation:   {},
			kindDeliberation: {},
			kindReflection:   {},
		},
	}
}

func main() {
	port := flag.Int("port", 11434, "port to listen on")
	score := flag.Int("score", 8, "score returned in evaluation responses (1-10)")
	recommendation := flag.String("recommendation", "approve", "recommendation returned in evaluation responses")
	flag.Parse()

	s := newServer(*score, *recommendation)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock gateway listening on %s (score=%d recommendation=%s)", addr, *score, *recommendation)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "at least one message is required", http.StatusBadRequest)
		return
	}

	kind := classify(req.Messages)
	callNum := s.calls.Add(1)
	s.callsByKind[kind].Add(1)
	log.Printf("[call %d] model=%s kind=%s messages=%d", callNum, req.Model, kind, len(req.Messages))

	var content string
	switch kind {
	case kindExtraction:
		content = extractionResponse
	case kindDeliberation:
		content = deliberationResponse
	case kindReflection:
		content = reflectionResponse
	default:
		content = fmt.Sprintf(evaluationResponseFormat, s.score, s.recommendation)
	}

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleStats returns call counts for smoke-test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	byKind := make(map[string]int64, len(s.callsByKind))
	for kind, counter := range s.callsByKind {
		byKind[string(kind)] = counter.Load()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":   s.calls.Load(),
		"calls_by_kind": byKind,
	})
}

// classify infers the pipeline stage from the request shape. Extraction
// is the only call that uses a system message; deliberation and
// reflection prompts carry distinctive format markers.
func classify(messages []chatMessage) callKind {
	if messages[0].Role == "system" {
		return kindExtraction
	}
	prompt := messages[len(messages)-1].Content
	switch {
	case strings.Contains(prompt, "POSITION_CHANGE:"):
		return kindDeliberation
	case strings.Contains(prompt, "PATTERN:"):
		return kindReflection
	default:
		return kindEvaluation
	}
}

const extractionResponse = `{
	"project_name": "Mock Indexer",
	"project_summary": "A chain indexing service used for local development runs.",
	"project_description": "Indexes on-chain events into a queryable store with a REST API.",
	"team_name": "Mock Builders",
	"team_members": [
		{"name": "Alex Rivera", "role": "Lead Engineer"},
		{"name": "Sam Okafor", "role": "Protocol Engineer"}
	],
	"requested_amount": 12000,
	"budget_breakdown": [
		{"category": "development", "amount": 9000},
		{"category": "infrastructure", "amount": 3000}
	],
	"milestones": [
		{"title": "Indexer core", "timeline": "month 1"},
		{"title": "REST API", "timeline": "month 2"},
		{"title": "Public deployment", "timeline": "month 3"}
	],
	"timeline": "3 months",
	"category": "Infrastructure"
}`

const evaluationResponseFormat = `SCORE: %d
RECOMMENDATION: %s
CONFIDENCE: high

RATIONALE:
Mock evaluation produced by the local gateway. The plan is coherent and
the budget matches the milestones.

STRENGTHS:
- Clear milestone structure
- Reasonable budget for the scope

CONCERNS:
- No production track record

QUESTIONS:
- What is the maintenance plan after the grant period?`

const deliberationResponse = `POSITION_CHANGE: maintained

DELIBERATION_RESPONSE:
The peer evaluations raise fair points but nothing that changes my
assessment of the proposal.`

const reflectionResponse = `PATTERN: Applications with milestone-aligned budgets tend to deliver on schedule.
CONTEXT: Grants where each milestone maps to a budget line item.
TAGS: detailed_milestones, medium_grant`
