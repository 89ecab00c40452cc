package reviewer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/config"
	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/llm"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

// SimilarCaseProvider supplies previously decided applications similar
// to the one under review. Implementations may return an empty slice.
type SimilarCaseProvider interface {
	SimilarCases(ctx context.Context, parsed *council.ParsedApplication) ([]SimilarCase, error)
}

// NoSimilarCases is a SimilarCaseProvider that never returns context.
type NoSimilarCases struct{}

// SimilarCases implements SimilarCaseProvider.
func (NoSimilarCases) SimilarCases(context.Context, *council.ParsedApplication) ([]SimilarCase, error) {
	return nil, nil
}

// Pool runs all persona evaluations for an application concurrently.
type Pool struct {
	personas []Persona
	client   *llm.Client
	llmCfg   config.LLMConfig
	store    storage.Store
	similar  SimilarCaseProvider
	logger   *slog.Logger
}

// NewPool creates an evaluation pool. similar may be nil.
func NewPool(personas []Persona, client *llm.Client, llmCfg config.LLMConfig, store storage.Store, similar SimilarCaseProvider, logger *slog.Logger) *Pool {
	if similar == nil {
		similar = NoSimilarCases{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		personas: personas,
		client:   client,
		llmCfg:   llmCfg,
		store:    store,
		similar:  similar,
		logger:   logger,
	}
}

// Personas returns the pool's persona roster.
func (p *Pool) Personas() []Persona {
	return p.personas
}

// EvaluateAll runs every persona against the application concurrently
// and returns one evaluation per persona, ordered by the persona
// roster. A persona whose call fails still produces an evaluation:
// a degraded neutral fallback, so the council is never short a vote.
func (p *Pool) EvaluateAll(ctx context.Context, app *council.Application, team *council.TeamProfile) ([]*council.Evaluation, error) {
	similar, err := p.similar.SimilarCases(ctx, app.Parsed)
	if err != nil {
		p.logger.Warn("Similar case lookup failed, continuing without",
			"application_id", app.ID,
			"error", err)
		similar = nil
	}

	tags := council.ExtractTags(app.Parsed)

	evaluations := make([]*council.Evaluation, len(p.personas))
	var wg sync.WaitGroup
	for i, persona := range p.personas {
		wg.Add(1)
		go func(i int, persona Persona) {
			defer wg.Done()
			evaluations[i] = p.evaluate(ctx, persona, app, team, similar, tags)
		}(i, persona)
	}
	wg.Wait()

	return evaluations, nil
}

// evaluate runs one persona's evaluation, falling back to a degraded
// neutral evaluation when the gateway call fails outright.
func (p *Pool) evaluate(ctx context.Context, persona Persona, app *council.Application, team *council.TeamProfile, similar []SimilarCase, tags []string) *council.Evaluation {
	observations, err := p.relevantObservations(ctx, persona.ID, tags)
	if err != nil {
		p.logger.Warn("Observation lookup failed, evaluating without",
			"reviewer_id", persona.ID,
			"error", err)
		observations = nil
	}

	prompt := BuildEvaluationPrompt(persona, EvaluationPromptInput{
		Parsed:       app.Parsed,
		Team:         team,
		Similar:      similar,
		Observations: observations,
	})

	eval := &council.Evaluation{
		ID:            storage.NewID(),
		ReviewerID:    persona.ID,
		ApplicationID: app.ID,
		CreatedAt:     time.Now().UTC(),
	}
	for _, o := range observations {
		eval.ObservationsUsed = append(eval.ObservationsUsed, o.ID)
	}
	for _, s := range similar {
		eval.SimilarReferenced = append(eval.SimilarReferenced, s.ApplicationID)
	}

	resp, err := p.client.Complete(ctx, llm.Request{
		Model: p.llmCfg.ModelFor(persona.ID),
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Timeout: p.llmCfg.EvaluationTimeout,
	})
	if err != nil || resp.Content == "" {
		p.logger.Error("Reviewer evaluation failed, using fallback",
			"reviewer_id", persona.ID,
			"application_id", app.ID,
			"error", err)
		eval.Score = 5
		eval.Recommendation = council.LeanReject
		eval.Confidence = council.ConfidenceLow
		eval.Rationale = "Evaluation unavailable: the reviewer could not assess this application."
		eval.Degraded = true
		return eval
	}

	parsed := ParseEvaluationResponse(resp.Content)
	eval.Score = parsed.Score
	eval.Recommendation = parsed.Recommendation
	eval.Confidence = parsed.Confidence
	eval.Rationale = parsed.Rationale
	eval.Strengths = parsed.Strengths
	eval.Concerns = parsed.Concerns
	eval.Questions = parsed.Questions
	eval.Degraded = parsed.Degraded

	p.logger.Info("Reviewer evaluation complete",
		"reviewer_id", persona.ID,
		"application_id", app.ID,
		"score", eval.Score,
		"recommendation", eval.Recommendation,
		"degraded", eval.Degraded)
	return eval
}

// relevantObservations loads the persona's active observations that
// share at least one tag with the application and ranks them by tag
// overlap, then by confidence. Only active observations are eligible;
// draft and reviewed ones never reach a prompt.
func (p *Pool) relevantObservations(ctx context.Context, reviewerID string, tags []string) ([]*council.Observation, error) {
	all, err := p.store.ListObservations(ctx, storage.ObservationFilter{
		ReviewerID: reviewerID,
		Status:     council.ObservationActive,
	})
	if err != nil {
		return nil, err
	}

	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}

	type ranked struct {
		obs     *council.Observation
		overlap int
	}
	var candidates []ranked
	for _, o := range all {
		overlap := 0
		for _, t := range o.Tags {
			if tagSet[t] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		candidates = append(candidates, ranked{obs: o, overlap: overlap})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].overlap != candidates[j].overlap {
			return candidates[i].overlap > candidates[j].overlap
		}
		return candidates[i].obs.Confidence.MoreConfidentThan(candidates[j].obs.Confidence)
	})

	if len(candidates) > maxObservationsInPrompt {
		candidates = candidates[:maxObservationsInPrompt]
	}
	result := make([]*council.Observation, len(candidates))
	for i, c := range candidates {
		result[i] = c.obs
	}
	return result, nil
}
