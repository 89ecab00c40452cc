package pipeline_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SovereignSignal/llm-grants-council-claude1/config"
	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/extract"
	"github.com/SovereignSignal/llm-grants-council-claude1/identity"
	"github.com/SovereignSignal/llm-grants-council-claude1/llm"
	"github.com/SovereignSignal/llm-grants-council-claude1/pipeline"
	"github.com/SovereignSignal/llm-grants-council-claude1/reviewer"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

const extractionReply = `{
	"project_name": "ZK Light Client",
	"project_summary": "A light client for mobile",
	"project_description": "Long description",
	"team_name": "Nova Builders",
	"team_members": [{"name": "Alice"}, {"name": "Bob"}],
	"requested_amount": 8000,
	"category": "Infrastructure",
	"milestones": [{"title": "Spec"}, {"title": "Impl"}, {"title": "Ship"}]
}`

const approveReply = `SCORE: 9
RECOMMENDATION: approve
CONFIDENCE: high

RATIONALE:
Strong team, clear plan.

STRENGTHS:
- Prior delivery

CONCERNS:
- None significant
`

const maintainReply = `POSITION_CHANGE: maintained

DELIBERATION_RESPONSE:
Nothing changes my assessment.`

// scriptedGateway dispatches on the prompt contents: extraction calls
// carry the parser system prompt, deliberation prompts carry the
// POSITION_CHANGE marker, everything else is an evaluation.
func scriptedGateway(t *testing.T, evaluationReply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			Messages []llm.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.NotEmpty(t, req.Messages)

		prompt := req.Messages[len(req.Messages)-1].Content
		var content string
		switch {
		case req.Messages[0].Role == "system":
			content = extractionReply
		case strings.Contains(prompt, "POSITION_CHANGE:"):
			content = maintainReply
		default:
			content = evaluationReply
		}

		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestCoordinator(t *testing.T, gatewayURL string, store storage.Store) *pipeline.Coordinator {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LLM.EvaluationTimeout = 10 * time.Second
	cfg.LLM.DeliberationTimeout = 10 * time.Second
	cfg.LLM.ExtractionTimeout = 10 * time.Second

	client := llm.NewClient(gatewayURL, "")
	extractor := extract.NewExtractor(client, cfg.LLM.DefaultModel, cfg.LLM.ExtractionTimeout, nil)
	resolver := identity.NewResolver(store, nil)
	pool := reviewer.NewPool(reviewer.DefaultPersonas(), client, cfg.LLM, store, nil, nil)

	return pipeline.NewCoordinator(store, client, extractor, resolver, pool, cfg)
}

func TestRunFullPipelineAutoApproves(t *testing.T) {
	server := scriptedGateway(t, approveReply)
	defer server.Close()

	store := storage.NewMemoryStore()
	coordinator := newTestCoordinator(t, server.URL, store)
	ctx := context.Background()

	result, err := coordinator.Run(ctx, "We are Nova Builders asking for $8000...", "api", "")
	require.NoError(t, err)

	app := result.Application
	assert.Equal(t, council.StatusAutoApproved, app.Status)
	require.NotNil(t, app.Parsed)
	assert.Equal(t, "ZK Light Client", app.Parsed.ProjectName)

	require.Len(t, result.Evaluations, 4)
	for _, eval := range result.Evaluations {
		assert.Equal(t, 9, eval.Score)
		assert.False(t, eval.Degraded)
	}

	require.NotNil(t, result.Deliberation)
	assert.Len(t, result.Deliberation.Rounds, 4)
	for _, round := range result.Deliberation.Rounds {
		assert.Equal(t, council.PositionMaintained, round.PositionChange)
	}

	require.NotNil(t, result.Decision)
	assert.True(t, result.Decision.AutoExecute)
	assert.Equal(t, 1.0, result.Decision.ConsensusStrength)

	// Everything persisted.
	stored, err := store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, council.StatusAutoApproved, stored.Status)

	evals, err := store.ListEvaluations(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, evals, 4)

	_, err = store.GetDeliberation(ctx, app.ID)
	require.NoError(t, err)
	_, err = store.GetDecision(ctx, app.ID)
	require.NoError(t, err)
}

func TestRunWithOneReviewerFailingStillDecides(t *testing.T) {
	// The budget reviewer's gateway calls fail outright; the run must
	// still complete all four stages with a degraded budget vote.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			Messages []llm.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.NotEmpty(t, req.Messages)

		prompt := req.Messages[len(req.Messages)-1].Content
		var content string
		switch {
		case req.Messages[0].Role == "system":
			content = extractionReply
		case strings.Contains(prompt, "Budget Analyst"):
			http.Error(w, "model unavailable", http.StatusBadRequest) // fatal, no retry
			return
		case strings.Contains(prompt, "POSITION_CHANGE:"):
			content = maintainReply
		default:
			content = approveReply
		}

		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	coordinator := newTestCoordinator(t, server.URL, store)
	ctx := context.Background()

	result, err := coordinator.Run(ctx, "We are Nova Builders asking for $8000...", "api", "")
	require.NoError(t, err)

	require.Len(t, result.Evaluations, 4)
	var budget *council.Evaluation
	for _, eval := range result.Evaluations {
		if eval.ReviewerID == "budget" {
			budget = eval
			continue
		}
		assert.False(t, eval.Degraded)
		assert.Equal(t, council.Approve, eval.Recommendation)
	}
	require.NotNil(t, budget)
	assert.True(t, budget.Degraded)
	assert.Equal(t, 5, budget.Score)
	assert.Equal(t, council.LeanReject, budget.Recommendation)
	assert.Equal(t, council.ConfidenceLow, budget.Confidence)

	require.NotNil(t, result.Deliberation)
	assert.Len(t, result.Deliberation.Rounds, 4)

	// 3 approve vs 1 reject is below the auto-approve threshold.
	require.NotNil(t, result.Decision)
	assert.Len(t, result.Decision.Votes, 4)
	assert.False(t, result.Decision.Unanimous)
	assert.Equal(t, 0.75, result.Decision.ConsensusStrength)
	assert.True(t, result.Decision.RequiresHumanReview)
	assert.Equal(t, council.StatusNeedsReview, result.Application.Status)

	_, err = store.GetDecision(ctx, result.Application.ID)
	require.NoError(t, err)
}

func TestSecondDeliberationRoundSeesRevisedPositions(t *testing.T) {
	const revisedReply = `POSITION_CHANGE: reversed

UPDATED_RECOMMENDATION: reject

DELIBERATION_RESPONSE:
The concerns raised convinced me the plan is not fundable.`

	// Every reviewer reverses to reject in round 1 and maintains in
	// round 2, so round-2 prompts must show the revised peer positions.
	var mu sync.Mutex
	deliberationCalls := 0
	var secondRoundPrompts []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			Messages []llm.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		require.NotEmpty(t, req.Messages)

		prompt := req.Messages[len(req.Messages)-1].Content
		var content string
		switch {
		case req.Messages[0].Role == "system":
			content = extractionReply
		case strings.Contains(prompt, "POSITION_CHANGE:"):
			mu.Lock()
			deliberationCalls++
			if deliberationCalls <= 4 {
				content = revisedReply
			} else {
				content = maintainReply
				secondRoundPrompts = append(secondRoundPrompts, prompt)
			}
			mu.Unlock()
		default:
			content = approveReply
		}

		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	cfg := config.DefaultConfig()
	cfg.LLM.EvaluationTimeout = 10 * time.Second
	cfg.LLM.DeliberationTimeout = 10 * time.Second
	cfg.LLM.ExtractionTimeout = 10 * time.Second
	cfg.Council.DeliberationRounds = 2

	client := llm.NewClient(server.URL, "")
	extractor := extract.NewExtractor(client, cfg.LLM.DefaultModel, cfg.LLM.ExtractionTimeout, nil)
	resolver := identity.NewResolver(store, nil)
	pool := reviewer.NewPool(reviewer.DefaultPersonas(), client, cfg.LLM, store, nil, nil)
	coordinator := pipeline.NewCoordinator(store, client, extractor, resolver, pool, cfg)

	result, err := coordinator.Run(context.Background(), "We are Nova Builders asking for $8000...", "api", "")
	require.NoError(t, err)

	require.NotNil(t, result.Deliberation)
	assert.Len(t, result.Deliberation.Rounds, 8)

	// Each round-2 prompt shows all three peers at their revised
	// positions, not the stage-2 originals.
	require.Len(t, secondRoundPrompts, 4)
	for _, prompt := range secondRoundPrompts {
		assert.Equal(t, 3, strings.Count(prompt, "- Recommendation: reject"),
			"round-2 peers should be shown at their revised recommendation")
	}

	// Revisions carry through to the final tally.
	require.NotNil(t, result.Decision)
	assert.True(t, result.Decision.Unanimous)
	assert.Equal(t, council.StatusAutoRejected, result.Application.Status)
}

func TestRunParseFailureIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "not json at all"}, "finish_reason": "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	coordinator := newTestCoordinator(t, server.URL, store)
	ctx := context.Background()

	result, err := coordinator.Run(ctx, "garbage input", "manual", "")
	require.NoError(t, err)

	assert.Equal(t, council.StatusParseFailed, result.Application.Status)
	assert.Nil(t, result.Decision)
	assert.Empty(t, result.Evaluations)

	// The failed application is still persisted for audit.
	stored, err := store.GetApplication(ctx, result.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, council.StatusParseFailed, stored.Status)

	evals, err := store.ListEvaluations(ctx, result.Application.ID)
	require.NoError(t, err)
	assert.Empty(t, evals)
}

func TestRunStreamEmitsOrderedEvents(t *testing.T) {
	server := scriptedGateway(t, approveReply)
	defer server.Close()

	store := storage.NewMemoryStore()
	coordinator := newTestCoordinator(t, server.URL, store)

	var types []string
	for event := range coordinator.RunStream(context.Background(), "application text", "api", "") {
		types = append(types, event.Type)
	}

	assert.Equal(t, []string{
		pipeline.EventStage1Start,
		pipeline.EventStage1Complete,
		pipeline.EventStage2Start,
		pipeline.EventStage2Complete,
		pipeline.EventStage3Start,
		pipeline.EventStage3Complete,
		pipeline.EventStage4Start,
		pipeline.EventStage4Complete,
		pipeline.EventComplete,
	}, types)
}

func TestRunStreamParseFailureEndsWithError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "no structure"}, "finish_reason": "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	coordinator := newTestCoordinator(t, server.URL, store)

	var types []string
	for event := range coordinator.RunStream(context.Background(), "garbage", "api", "") {
		types = append(types, event.Type)
	}

	require.NotEmpty(t, types)
	assert.Equal(t, pipeline.EventError, types[len(types)-1])
}
