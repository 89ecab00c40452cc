package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
)

// Bucket names for each entity type.
const (
	BucketApplications  = "COUNCIL_APPLICATIONS"
	BucketTeams         = "COUNCIL_TEAMS"
	BucketEvaluations   = "COUNCIL_EVALUATIONS"
	BucketDeliberations = "COUNCIL_DELIBERATIONS"
	BucketDecisions     = "COUNCIL_DECISIONS"
	BucketObservations  = "COUNCIL_OBSERVATIONS"
	BucketOutcomes      = "COUNCIL_OUTCOMES"
	BucketEvents        = "COUNCIL_LEARNING_EVENTS"
)

// NATSStore is a Store backed by NATS JetStream KV, one bucket per
// entity type. List operations scan bucket keys; the council's data
// volumes (tens of entities per application) keep this cheap.
type NATSStore struct {
	applications  jetstream.KeyValue
	teams         jetstream.KeyValue
	evaluations   jetstream.KeyValue
	deliberations jetstream.KeyValue
	decisions     jetstream.KeyValue
	observations  jetstream.KeyValue
	outcomes      jetstream.KeyValue
	events        jetstream.KeyValue
}

// NewNATSStore creates a NATSStore, creating the KV buckets if they
// don't exist.
func NewNATSStore(ctx context.Context, js jetstream.JetStream) (*NATSStore, error) {
	s := &NATSStore{}
	buckets := []struct {
		name string
		kv   *jetstream.KeyValue
	}{
		{BucketApplications, &s.applications},
		{BucketTeams, &s.teams},
		{BucketEvaluations, &s.evaluations},
		{BucketDeliberations, &s.deliberations},
		{BucketDecisions, &s.decisions},
		{BucketObservations, &s.observations},
		{BucketOutcomes, &s.outcomes},
		{BucketEvents, &s.events},
	}
	for _, b := range buckets {
		kv, err := getOrCreateBucket(ctx, js, b.name)
		if err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", b.name, err)
		}
		*b.kv = kv
	}
	return s, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Grant council %s storage", strings.ToLower(name)),
		History:     5,
	})
}

func putJSON(ctx context.Context, kv jetstream.KeyValue, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if _, err := kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func getJSON[T any](ctx context.Context, kv jetstream.KeyValue, key string) (*T, error) {
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(entry.Value(), &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &v, nil
}

// scanJSON loads every entry in a bucket, skipping entries that fail
// to load or decode.
func scanJSON[T any](ctx context.Context, kv jetstream.KeyValue) ([]*T, error) {
	keys, err := kv.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		entry, err := kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var v T
		if err := json.Unmarshal(entry.Value(), &v); err != nil {
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}

// SaveApplication stores or replaces an application.
func (s *NATSStore) SaveApplication(ctx context.Context, app *council.Application) error {
	return putJSON(ctx, s.applications, app.ID, app)
}

// GetApplication retrieves an application by ID.
func (s *NATSStore) GetApplication(ctx context.Context, id string) (*council.Application, error) {
	return getJSON[council.Application](ctx, s.applications, id)
}

// ListApplications returns applications matching the filter, newest first.
func (s *NATSStore) ListApplications(ctx context.Context, f ApplicationFilter) ([]*council.Application, error) {
	all, err := scanJSON[council.Application](ctx, s.applications)
	if err != nil {
		return nil, err
	}

	apps := all[:0]
	for _, app := range all {
		if f.Status != "" && app.Status != f.Status {
			continue
		}
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	if f.Limit > 0 && len(apps) > f.Limit {
		apps = apps[:f.Limit]
	}
	return apps, nil
}

// SaveTeam stores or replaces a team profile.
func (s *NATSStore) SaveTeam(ctx context.Context, team *council.TeamProfile) error {
	return putJSON(ctx, s.teams, team.ID, team)
}

// GetTeam retrieves a team profile by ID.
func (s *NATSStore) GetTeam(ctx context.Context, id string) (*council.TeamProfile, error) {
	return getJSON[council.TeamProfile](ctx, s.teams, id)
}

// ListTeams returns all team profiles sorted by creation time.
func (s *NATSStore) ListTeams(ctx context.Context) ([]*council.TeamProfile, error) {
	teams, err := scanJSON[council.TeamProfile](ctx, s.teams)
	if err != nil {
		return nil, err
	}
	sort.Slice(teams, func(i, j int) bool {
		return teams[i].CreatedAt.Before(teams[j].CreatedAt)
	})
	return teams, nil
}

// SaveEvaluation stores or replaces an evaluation. The key combines
// reviewer and application IDs so concurrent stage tasks never write
// the same key.
func (s *NATSStore) SaveEvaluation(ctx context.Context, eval *council.Evaluation) error {
	key := evaluationKey(eval.ReviewerID, eval.ApplicationID)
	return putJSON(ctx, s.evaluations, key, eval)
}

func evaluationKey(reviewerID, applicationID string) string {
	return reviewerID + "." + applicationID
}

// ListEvaluations returns all evaluations for an application, ordered
// by reviewer ID.
func (s *NATSStore) ListEvaluations(ctx context.Context, applicationID string) ([]*council.Evaluation, error) {
	all, err := scanJSON[council.Evaluation](ctx, s.evaluations)
	if err != nil {
		return nil, err
	}
	evals := all[:0]
	for _, e := range all {
		if e.ApplicationID == applicationID {
			evals = append(evals, e)
		}
	}
	sort.Slice(evals, func(i, j int) bool {
		return evals[i].ReviewerID < evals[j].ReviewerID
	})
	return evals, nil
}

// SaveDeliberation stores the deliberation record for an application.
func (s *NATSStore) SaveDeliberation(ctx context.Context, d *council.Deliberation) error {
	return putJSON(ctx, s.deliberations, d.ApplicationID, d)
}

// GetDeliberation retrieves the deliberation for an application.
func (s *NATSStore) GetDeliberation(ctx context.Context, applicationID string) (*council.Deliberation, error) {
	return getJSON[council.Deliberation](ctx, s.deliberations, applicationID)
}

// SaveDecision stores the decision for an application.
func (s *NATSStore) SaveDecision(ctx context.Context, d *council.Decision) error {
	return putJSON(ctx, s.decisions, d.ApplicationID, d)
}

// GetDecision retrieves the decision for an application.
func (s *NATSStore) GetDecision(ctx context.Context, applicationID string) (*council.Decision, error) {
	return getJSON[council.Decision](ctx, s.decisions, applicationID)
}

// SaveObservation stores or replaces an observation.
func (s *NATSStore) SaveObservation(ctx context.Context, o *council.Observation) error {
	return putJSON(ctx, s.observations, o.ID, o)
}

// GetObservation retrieves an observation by ID.
func (s *NATSStore) GetObservation(ctx context.Context, id string) (*council.Observation, error) {
	return getJSON[council.Observation](ctx, s.observations, id)
}

// ListObservations returns observations matching the filter, ordered
// by creation time.
func (s *NATSStore) ListObservations(ctx context.Context, f ObservationFilter) ([]*council.Observation, error) {
	all, err := scanJSON[council.Observation](ctx, s.observations)
	if err != nil {
		return nil, err
	}
	obs := all[:0]
	for _, o := range all {
		if f.ReviewerID != "" && o.ReviewerID != f.ReviewerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		obs = append(obs, o)
	}
	sort.Slice(obs, func(i, j int) bool {
		return obs[i].CreatedAt.Before(obs[j].CreatedAt)
	})
	return obs, nil
}

// SaveOutcome stores the outcome for an application.
func (s *NATSStore) SaveOutcome(ctx context.Context, o *council.GrantOutcome) error {
	return putJSON(ctx, s.outcomes, o.ApplicationID, o)
}

// GetOutcome retrieves the outcome for an application.
func (s *NATSStore) GetOutcome(ctx context.Context, applicationID string) (*council.GrantOutcome, error) {
	return getJSON[council.GrantOutcome](ctx, s.outcomes, applicationID)
}

// SaveLearningEvent stores or replaces a learning event.
func (s *NATSStore) SaveLearningEvent(ctx context.Context, e *council.LearningEvent) error {
	return putJSON(ctx, s.events, e.ID, e)
}

// ListUnprocessedLearningEvents returns pending events, oldest first.
func (s *NATSStore) ListUnprocessedLearningEvents(ctx context.Context) ([]*council.LearningEvent, error) {
	all, err := scanJSON[council.LearningEvent](ctx, s.events)
	if err != nil {
		return nil, err
	}
	events := all[:0]
	for _, e := range all {
		if !e.Processed {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "key not found")
}
