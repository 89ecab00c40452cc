// Package storage provides persistence for council entities. Two
// backends implement the Store interface: an in-memory store used by
// tests and single-process development, and a NATS JetStream KV store
// for durable deployments.
//
// Concurrent pipeline tasks share one Store with no locking at the
// call sites: every stage-2/3 writer uses a key derived from
// (reviewer id, application id), so writes never collide.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
)

// ObservationFilter narrows ListObservations results. Zero values
// match everything.
type ObservationFilter struct {
	ReviewerID string
	Status     council.ObservationStatus
}

// ApplicationFilter narrows ListApplications results.
type ApplicationFilter struct {
	Status council.DecisionStatus
	Limit  int
}

// Store is the persistence interface consumed by the pipeline, the
// learning loop, and the API layer.
type Store interface {
	SaveApplication(ctx context.Context, app *council.Application) error
	GetApplication(ctx context.Context, id string) (*council.Application, error)
	ListApplications(ctx context.Context, f ApplicationFilter) ([]*council.Application, error)

	SaveTeam(ctx context.Context, team *council.TeamProfile) error
	GetTeam(ctx context.Context, id string) (*council.TeamProfile, error)
	ListTeams(ctx context.Context) ([]*council.TeamProfile, error)

	SaveEvaluation(ctx context.Context, eval *council.Evaluation) error
	ListEvaluations(ctx context.Context, applicationID string) ([]*council.Evaluation, error)

	SaveDeliberation(ctx context.Context, d *council.Deliberation) error
	GetDeliberation(ctx context.Context, applicationID string) (*council.Deliberation, error)

	SaveDecision(ctx context.Context, d *council.Decision) error
	GetDecision(ctx context.Context, applicationID string) (*council.Decision, error)

	SaveObservation(ctx context.Context, o *council.Observation) error
	GetObservation(ctx context.Context, id string) (*council.Observation, error)
	ListObservations(ctx context.Context, f ObservationFilter) ([]*council.Observation, error)

	SaveOutcome(ctx context.Context, o *council.GrantOutcome) error
	GetOutcome(ctx context.Context, applicationID string) (*council.GrantOutcome, error)

	SaveLearningEvent(ctx context.Context, e *council.LearningEvent) error
	ListUnprocessedLearningEvents(ctx context.Context) ([]*council.LearningEvent, error)
}

// NewID generates a new entity identifier.
func NewID() string {
	return uuid.New().String()
}
