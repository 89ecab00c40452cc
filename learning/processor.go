package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/llm"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

// Processor turns pending learning events into draft observations by
// having each reviewer reflect on what happened.
type Processor struct {
	store   storage.Store
	client  *llm.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProcessor creates a learning event processor. model is the
// reflection model shared by all reviewers.
func NewProcessor(store storage.Store, client *llm.Client, model string, timeout time.Duration, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: store, client: client, model: model, timeout: timeout, logger: logger}
}

// ProcessPending works through all unprocessed learning events. Events
// that fail stay unprocessed for the next run; the count of events
// completed is returned.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	events, err := p.store.ListUnprocessedLearningEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("list learning events: %w", err)
	}

	processed := 0
	for _, event := range events {
		var err error
		switch event.EventType {
		case council.EventOverride:
			err = p.processOverride(ctx, event)
		case council.EventOutcome:
			err = p.processOutcome(ctx, event)
		default:
			p.logger.Warn("Skipping learning event of unknown type",
				"event_id", event.ID,
				"event_type", event.EventType)
			continue
		}
		if err != nil {
			p.logger.Error("Learning event processing failed",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", err)
			continue
		}

		event.Processed = true
		if err := p.store.SaveLearningEvent(ctx, event); err != nil {
			return processed, fmt.Errorf("mark event %s processed: %w", event.ID, err)
		}
		processed++
	}
	return processed, nil
}

// processOverride has each reviewer reflect on a human override.
func (p *Processor) processOverride(ctx context.Context, event *council.LearningEvent) error {
	app, evaluations, err := p.loadEventContext(ctx, event)
	if err != nil {
		return err
	}

	humanDecision := event.Context["new_decision"]
	if humanDecision == "" {
		humanDecision = "unknown"
	}
	humanRationale := event.Context["rationale"]
	if humanRationale == "" {
		humanRationale = "No rationale provided"
	}

	for _, eval := range evaluations {
		prompt := buildOverrideReflectionPrompt(eval, app.Parsed, humanDecision, humanRationale)
		p.reflect(ctx, event, eval.ReviewerID, prompt)
	}
	return nil
}

// processOutcome has each reviewer compare its evaluation against the
// recorded grant outcome.
func (p *Processor) processOutcome(ctx context.Context, event *council.LearningEvent) error {
	app, evaluations, err := p.loadEventContext(ctx, event)
	if err != nil {
		return err
	}

	outcome, err := p.store.GetOutcome(ctx, event.ApplicationID)
	if err != nil {
		return fmt.Errorf("load outcome: %w", err)
	}

	for _, eval := range evaluations {
		prompt := buildOutcomeReflectionPrompt(eval, app.Parsed, outcome)
		p.reflect(ctx, event, eval.ReviewerID, prompt)
	}
	return nil
}

// loadEventContext loads the application and its evaluations for a
// learning event.
func (p *Processor) loadEventContext(ctx context.Context, event *council.LearningEvent) (*council.Application, []*council.Evaluation, error) {
	if event.ApplicationID == "" {
		return nil, nil, fmt.Errorf("event %s has no application", event.ID)
	}

	app, err := p.store.GetApplication(ctx, event.ApplicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load application: %w", err)
	}
	if app.Parsed == nil {
		return nil, nil, fmt.Errorf("application %s was never parsed", app.ID)
	}

	evaluations, err := p.store.ListEvaluations(ctx, event.ApplicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load evaluations: %w", err)
	}
	if len(evaluations) == 0 {
		return nil, nil, fmt.Errorf("application %s has no evaluations", app.ID)
	}
	return app, evaluations, nil
}

// reflect sends one reflection prompt and saves any observation the
// reviewer produced. Reflection failures are logged, not fatal: a
// reviewer finding no pattern is a normal result.
func (p *Processor) reflect(ctx context.Context, event *council.LearningEvent, reviewerID, prompt string) {
	resp, err := p.client.Complete(ctx, llm.Request{
		Model: p.model,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Timeout: p.timeout,
	})
	if err != nil || resp.Content == "" {
		p.logger.Warn("Reflection call failed",
			"event_id", event.ID,
			"reviewer_id", reviewerID,
			"error", err)
		return
	}

	obs := parseObservation(resp.Content, reviewerID, event.ApplicationID)
	if obs == nil {
		return
	}

	if err := p.store.SaveObservation(ctx, obs); err != nil {
		p.logger.Error("Failed to save observation",
			"observation_id", obs.ID,
			"reviewer_id", reviewerID,
			"error", err)
		return
	}
	event.GeneratedObservations = append(event.GeneratedObservations, obs.ID)

	p.logger.Info("Observation generated",
		"observation_id", obs.ID,
		"reviewer_id", reviewerID,
		"event_id", event.ID,
		"pattern", obs.Pattern)
}
