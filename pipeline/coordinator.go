// Package pipeline orchestrates the four-stage council flow: parse and
// contextualize, independent evaluation, deliberation, then consensus
// and routing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/config"
	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/extract"
	"github.com/SovereignSignal/llm-grants-council-claude1/identity"
	"github.com/SovereignSignal/llm-grants-council-claude1/llm"
	"github.com/SovereignSignal/llm-grants-council-claude1/reviewer"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

// Event is a progress notification emitted while the pipeline runs.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Event types, in emission order. Every streamed run terminates with
// exactly one EventComplete or EventError.
const (
	EventStage1Start    = "stage1_start"
	EventStage1Complete = "stage1_complete"
	EventStage2Start    = "stage2_start"
	EventStage2Complete = "stage2_complete"
	EventStage3Start    = "stage3_start"
	EventStage3Complete = "stage3_complete"
	EventStage4Start    = "stage4_start"
	EventStage4Complete = "stage4_complete"
	EventComplete       = "complete"
	EventError          = "error"
)

// Fault is a pipeline failure that retains the partial state persisted
// before the failing stage.
type Fault struct {
	Stage         string
	ApplicationID string
	Err           error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("pipeline stage %s failed for application %s: %v", f.Stage, f.ApplicationID, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Result bundles the artifacts of a completed council run.
type Result struct {
	Application  *council.Application  `json:"application"`
	Evaluations  []*council.Evaluation `json:"evaluations,omitempty"`
	Deliberation *council.Deliberation `json:"deliberation,omitempty"`
	Decision     *council.Decision     `json:"decision,omitempty"`
}

// ContentAugmenter enriches raw application text before extraction,
// e.g. by inlining linked page content.
type ContentAugmenter interface {
	Augment(ctx context.Context, raw string) string
}

// Coordinator runs applications through the council pipeline.
type Coordinator struct {
	store     storage.Store
	client    *llm.Client
	extractor *extract.Extractor
	resolver  *identity.Resolver
	pool      *reviewer.Pool
	cfg       *config.Config
	augmenter ContentAugmenter
	metrics   *Metrics
	logger    *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAugmenter sets a content augmenter applied before extraction.
func WithAugmenter(a ContentAugmenter) CoordinatorOption {
	return func(c *Coordinator) {
		c.augmenter = a
	}
}

// WithMetrics sets the pipeline metrics collector.
func WithMetrics(m *Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator wires the pipeline together.
func NewCoordinator(store storage.Store, client *llm.Client, extractor *extract.Extractor, resolver *identity.Resolver, pool *reviewer.Pool, cfg *config.Config, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		client:    client,
		extractor: extractor,
		resolver:  resolver,
		pool:      pool,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the full pipeline synchronously.
func (c *Coordinator) Run(ctx context.Context, rawContent, source, sourceID string) (*Result, error) {
	return c.run(ctx, rawContent, source, sourceID, func(Event) {})
}

// RunStream executes the pipeline and emits progress events on the
// returned channel, which is closed when the run finishes. The last
// event is always EventComplete or EventError.
func (c *Coordinator) RunStream(ctx context.Context, rawContent, source, sourceID string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		emit := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}
		result, err := c.run(ctx, rawContent, source, sourceID, emit)
		if err != nil {
			emit(Event{Type: EventError, Message: err.Error()})
			return
		}
		if result.Application.Status == council.StatusParseFailed {
			emit(Event{Type: EventError, Message: "Failed to parse application"})
			return
		}
		emit(Event{Type: EventComplete, Message: "Council evaluation complete"})
	}()
	return events
}

// run executes the stages in order, persisting after each one so a
// fault never loses completed work.
func (c *Coordinator) run(ctx context.Context, rawContent, source, sourceID string, emit func(Event)) (*Result, error) {
	app := &council.Application{
		ID:         storage.NewID(),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
		Source:     source,
		SourceID:   sourceID,
		RawContent: rawContent,
		Status:     council.StatusPending,
	}
	result := &Result{Application: app}

	// Stage 1: parse and contextualize.
	emit(Event{Type: EventStage1Start, Message: "Parsing application..."})
	start := time.Now()

	content := rawContent
	if c.augmenter != nil {
		content = c.augmenter.Augment(ctx, rawContent)
	}

	parsed, err := c.extractor.Extract(ctx, content)
	if err != nil {
		c.logger.Error("Application parse failed",
			"application_id", app.ID,
			"error", err)
		app.Status = council.StatusParseFailed
		app.UpdatedAt = time.Now().UTC()
		if saveErr := c.store.SaveApplication(ctx, app); saveErr != nil {
			return result, &Fault{Stage: "parse", ApplicationID: app.ID, Err: saveErr}
		}
		c.metrics.recordApplication(string(app.Status))
		emit(Event{Type: EventStage1Complete, Data: map[string]any{"application_id": app.ID}})
		return result, nil
	}
	app.Parsed = parsed

	if issues := council.ValidateParsed(parsed); len(issues) > 0 {
		c.logger.Warn("Application validation issues",
			"application_id", app.ID,
			"issues", issues)
	}

	match, err := c.resolver.Resolve(ctx, parsed)
	if err != nil {
		c.logger.Warn("Team resolution failed, continuing unmatched",
			"application_id", app.ID,
			"error", err)
	} else if match != nil {
		app.TeamMatch = match
		app.MatchedTeamID = match.MatchedTeamID
	}

	app.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveApplication(ctx, app); err != nil {
		return result, &Fault{Stage: "parse", ApplicationID: app.ID, Err: err}
	}
	c.metrics.observeStage("parse", time.Since(start).Seconds())
	emit(Event{Type: EventStage1Complete, Data: map[string]any{
		"application_id": app.ID,
		"parsed":         parsed,
		"team_match":     app.TeamMatch,
	}})

	// Stage 2: independent evaluation.
	emit(Event{Type: EventStage2Start, Message: "Reviewers evaluating..."})
	start = time.Now()

	var team *council.TeamProfile
	if app.MatchedTeamID != "" {
		team, err = c.store.GetTeam(ctx, app.MatchedTeamID)
		if err != nil {
			c.logger.Warn("Matched team load failed, evaluating without history",
				"team_id", app.MatchedTeamID,
				"error", err)
			team = nil
		}
	}

	evaluations, err := c.pool.EvaluateAll(ctx, app, team)
	if err != nil {
		return result, &Fault{Stage: "evaluate", ApplicationID: app.ID, Err: err}
	}
	degraded := 0
	for _, eval := range evaluations {
		if eval.Degraded {
			degraded++
		}
		if err := c.store.SaveEvaluation(ctx, eval); err != nil {
			return result, &Fault{Stage: "evaluate", ApplicationID: app.ID, Err: err}
		}
	}
	c.metrics.recordDegraded(degraded)
	result.Evaluations = evaluations
	c.metrics.observeStage("evaluate", time.Since(start).Seconds())
	emit(Event{Type: EventStage2Complete, Data: map[string]any{"evaluations": evaluations}})

	// Stage 3: deliberation.
	emit(Event{Type: EventStage3Start, Message: "Reviewers deliberating..."})
	start = time.Now()

	deliberation, updated, err := c.deliberate(ctx, app, evaluations)
	if err != nil {
		return result, &Fault{Stage: "deliberate", ApplicationID: app.ID, Err: err}
	}
	if err := c.store.SaveDeliberation(ctx, deliberation); err != nil {
		return result, &Fault{Stage: "deliberate", ApplicationID: app.ID, Err: err}
	}
	for _, eval := range updated {
		if err := c.store.SaveEvaluation(ctx, eval); err != nil {
			return result, &Fault{Stage: "deliberate", ApplicationID: app.ID, Err: err}
		}
	}
	result.Deliberation = deliberation
	result.Evaluations = updated
	c.metrics.observeStage("deliberate", time.Since(start).Seconds())
	emit(Event{Type: EventStage3Complete, Data: map[string]any{
		"deliberation":        deliberation,
		"updated_evaluations": updated,
	}})

	// Stage 4: consensus and routing.
	emit(Event{Type: EventStage4Start, Message: "Voting and deciding..."})
	start = time.Now()

	decision := Tally(app, updated, c.cfg.Council)
	if err := c.store.SaveDecision(ctx, decision); err != nil {
		return result, &Fault{Stage: "decide", ApplicationID: app.ID, Err: err}
	}
	app.UpdatedAt = time.Now().UTC()
	if err := c.store.SaveApplication(ctx, app); err != nil {
		return result, &Fault{Stage: "decide", ApplicationID: app.ID, Err: err}
	}
	result.Decision = decision

	if app.Status == council.StatusAutoApproved {
		if err := RecordAward(ctx, c.store, app); err != nil {
			c.logger.Warn("Team award bookkeeping failed",
				"application_id", app.ID,
				"team_id", app.MatchedTeamID,
				"error", err)
		}
	}

	c.metrics.observeStage("decide", time.Since(start).Seconds())
	c.metrics.recordApplication(string(app.Status))
	c.metrics.recordDecision(decision.AutoExecute)

	c.logger.Info("Council run complete",
		"application_id", app.ID,
		"status", app.Status,
		"consensus_strength", decision.ConsensusStrength,
		"auto_execute", decision.AutoExecute)

	emit(Event{Type: EventStage4Complete, Data: map[string]any{
		"decision":              decision,
		"status":                app.Status,
		"requires_human_review": decision.RequiresHumanReview,
	}})
	return result, nil
}
