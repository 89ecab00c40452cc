package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

func TestApplicationRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	app := &council.Application{
		ID:        "app-1",
		CreatedAt: time.Now().UTC(),
		Status:    council.StatusPending,
	}
	require.NoError(t, store.SaveApplication(ctx, app))

	got, err := store.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusPending, got.Status)

	// Stored copies are isolated from caller mutations.
	got.Status = council.StatusAutoApproved
	again, err := store.GetApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, council.StatusPending, again.Status)
}

func TestGetApplicationNotFound(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := store.GetApplication(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListApplicationsFilterAndOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.SaveApplication(ctx, &council.Application{
		ID: "old", CreatedAt: base.Add(-2 * time.Hour), Status: council.StatusNeedsReview,
	}))
	require.NoError(t, store.SaveApplication(ctx, &council.Application{
		ID: "mid", CreatedAt: base.Add(-time.Hour), Status: council.StatusAutoApproved,
	}))
	require.NoError(t, store.SaveApplication(ctx, &council.Application{
		ID: "new", CreatedAt: base, Status: council.StatusNeedsReview,
	}))

	all, err := store.ListApplications(ctx, storage.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)

	pending, err := store.ListApplications(ctx, storage.ApplicationFilter{Status: council.StatusNeedsReview})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "new", pending[0].ID)

	limited, err := store.ListApplications(ctx, storage.ApplicationFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].ID)
}

func TestEvaluationsScopedToApplication(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveEvaluation(ctx, &council.Evaluation{
		ID: "e1", ApplicationID: "app-1", ReviewerID: "technical",
	}))
	require.NoError(t, store.SaveEvaluation(ctx, &council.Evaluation{
		ID: "e2", ApplicationID: "app-1", ReviewerID: "budget",
	}))
	require.NoError(t, store.SaveEvaluation(ctx, &council.Evaluation{
		ID: "e3", ApplicationID: "app-2", ReviewerID: "technical",
	}))

	evals, err := store.ListEvaluations(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, evals, 2)
	// Ordered by reviewer ID.
	assert.Equal(t, "budget", evals[0].ReviewerID)
	assert.Equal(t, "technical", evals[1].ReviewerID)
}

func TestSaveEvaluationReplacesByID(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	eval := &council.Evaluation{ID: "e1", ApplicationID: "app-1", ReviewerID: "technical", Score: 5}
	require.NoError(t, store.SaveEvaluation(ctx, eval))

	eval.Score = 8
	require.NoError(t, store.SaveEvaluation(ctx, eval))

	evals, err := store.ListEvaluations(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, 8, evals[0].Score)
}

func TestDeliberationAndDecisionKeyedByApplication(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetDeliberation(ctx, "app-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SaveDeliberation(ctx, &council.Deliberation{ApplicationID: "app-1"}))
	require.NoError(t, store.SaveDecision(ctx, &council.Decision{ApplicationID: "app-1", ConsensusStrength: 0.75}))

	d, err := store.GetDeliberation(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, "app-1", d.ApplicationID)

	dec, err := store.GetDecision(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, 0.75, dec.ConsensusStrength)
}

func TestObservationFilters(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.SaveObservation(ctx, &council.Observation{
		ID: "o1", ReviewerID: "technical", Status: council.ObservationActive, CreatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, store.SaveObservation(ctx, &council.Observation{
		ID: "o2", ReviewerID: "technical", Status: council.ObservationDraft, CreatedAt: base,
	}))
	require.NoError(t, store.SaveObservation(ctx, &council.Observation{
		ID: "o3", ReviewerID: "budget", Status: council.ObservationActive, CreatedAt: base,
	}))

	technical, err := store.ListObservations(ctx, storage.ObservationFilter{ReviewerID: "technical"})
	require.NoError(t, err)
	require.Len(t, technical, 2)
	// Oldest first.
	assert.Equal(t, "o1", technical[0].ID)

	active, err := store.ListObservations(ctx, storage.ObservationFilter{Status: council.ObservationActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	both, err := store.ListObservations(ctx, storage.ObservationFilter{
		ReviewerID: "budget",
		Status:     council.ObservationActive,
	})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "o3", both[0].ID)
}

func TestOutcomeRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetOutcome(ctx, "app-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SaveOutcome(ctx, &council.GrantOutcome{
		ApplicationID: "app-1",
		Completed:     true,
	}))

	outcome, err := store.GetOutcome(ctx, "app-1")
	require.NoError(t, err)
	assert.True(t, outcome.Completed)
}

func TestUnprocessedLearningEvents(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.SaveLearningEvent(ctx, &council.LearningEvent{
		ID: "ev2", CreatedAt: base, EventType: council.EventOutcome,
	}))
	require.NoError(t, store.SaveLearningEvent(ctx, &council.LearningEvent{
		ID: "ev1", CreatedAt: base.Add(-time.Hour), EventType: council.EventOverride,
	}))
	require.NoError(t, store.SaveLearningEvent(ctx, &council.LearningEvent{
		ID: "ev3", CreatedAt: base, Processed: true,
	}))

	events, err := store.ListUnprocessedLearningEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Oldest first.
	assert.Equal(t, "ev1", events[0].ID)
	assert.Equal(t, "ev2", events[1].ID)

	// Marking processed removes it from the pending list.
	events[0].Processed = true
	require.NoError(t, store.SaveLearningEvent(ctx, events[0]))

	events, err = store.ListUnprocessedLearningEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev2", events[0].ID)
}

func TestTeamsOrderedByCreation(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.SaveTeam(ctx, &council.TeamProfile{ID: "t2", CreatedAt: base}))
	require.NoError(t, store.SaveTeam(ctx, &council.TeamProfile{ID: "t1", CreatedAt: base.Add(-time.Hour)}))

	teams, err := store.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "t1", teams[0].ID)
}
