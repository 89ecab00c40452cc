package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
)

// MemoryStore is an in-memory Store implementation. It is safe for
// concurrent use and is the default backend for tests and local
// development.
type MemoryStore struct {
	mu sync.RWMutex

	applications  map[string]*council.Application
	teams         map[string]*council.TeamProfile
	evaluations   map[string]*council.Evaluation
	deliberations map[string]*council.Deliberation // keyed by application ID
	decisions     map[string]*council.Decision     // keyed by application ID
	observations  map[string]*council.Observation
	outcomes      map[string]*council.GrantOutcome // keyed by application ID
	events        map[string]*council.LearningEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		applications:  make(map[string]*council.Application),
		teams:         make(map[string]*council.TeamProfile),
		evaluations:   make(map[string]*council.Evaluation),
		deliberations: make(map[string]*council.Deliberation),
		decisions:     make(map[string]*council.Decision),
		observations:  make(map[string]*council.Observation),
		outcomes:      make(map[string]*council.GrantOutcome),
		events:        make(map[string]*council.LearningEvent),
	}
}

// SaveApplication stores or replaces an application.
func (s *MemoryStore) SaveApplication(_ context.Context, app *council.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *app
	s.applications[app.ID] = &cp
	return nil
}

// GetApplication retrieves an application by ID.
func (s *MemoryStore) GetApplication(_ context.Context, id string) (*council.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *app
	return &cp, nil
}

// ListApplications returns applications matching the filter, newest first.
func (s *MemoryStore) ListApplications(_ context.Context, f ApplicationFilter) ([]*council.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]*council.Application, 0, len(s.applications))
	for _, app := range s.applications {
		if f.Status != "" && app.Status != f.Status {
			continue
		}
		cp := *app
		apps = append(apps, &cp)
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
func (s *MemoryStore) SaveTeam(_ context.Context, team *council.TeamProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *team
	s.teams[team.ID] = &cp
	return nil
}

// GetTeam retrieves a team profile by ID.
func (s *MemoryStore) GetTeam(_ context.Context, id string) (*council.TeamProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *team
	return &cp, nil
}

// ListTeams returns all team profiles sorted by creation time.
func (s *MemoryStore) ListTeams(_ context.Context) ([]*council.TeamProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	teams := make([]*council.TeamProfile, 0, len(s.teams))
	for _, team := range s.teams {
		cp := *team
		teams = append(teams, &cp)
	}
	sort.Slice(teams, func(i, j int) bool {
		return teams[i].CreatedAt.Before(teams[j].CreatedAt)
	})
	return teams, nil
}

// SaveEvaluation stores or replaces an evaluation.
func (s *MemoryStore) SaveEvaluation(_ context.Context, eval *council.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *eval
	s.evaluations[eval.ID] = &cp
	return nil
}

// ListEvaluations returns all evaluations for an application, ordered
// by reviewer ID for stable output.
func (s *MemoryStore) ListEvaluations(_ context.Context, applicationID string) ([]*council.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var evals []*council.Evaluation
	for _, e := range s.evaluations {
		if e.ApplicationID == applicationID {
			cp := *e
			evals = append(evals, &cp)
		}
	}
	sort.Slice(evals, func(i, j int) bool {
		return evals[i].ReviewerID < evals[j].ReviewerID
	})
	return evals, nil
}

// SaveDeliberation stores the deliberation record for an application.
func (s *MemoryStore) SaveDeliberation(_ context.Context, d *council.Deliberation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deliberations[d.ApplicationID] = &cp
	return nil
}

// GetDeliberation retrieves the deliberation for an application.
func (s *MemoryStore) GetDeliberation(_ context.Context, applicationID string) (*council.Deliberation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliberations[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// SaveDecision stores the decision for an application.
func (s *MemoryStore) SaveDecision(_ context.Context, d *council.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.decisions[d.ApplicationID] = &cp
	return nil
}

// GetDecision retrieves the decision for an application.
func (s *MemoryStore) GetDecision(_ context.Context, applicationID string) (*council.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// SaveObservation stores or replaces an observation.
func (s *MemoryStore) SaveObservation(_ context.Context, o *council.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.observations[o.ID] = &cp
	return nil
}

// GetObservation retrieves an observation by ID.
func (s *MemoryStore) GetObservation(_ context.Context, id string) (*council.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.observations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// ListObservations returns observations matching the filter, ordered
// by creation time.
func (s *MemoryStore) ListObservations(_ context.Context, f ObservationFilter) ([]*council.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var obs []*council.Observation
	for _, o := range s.observations {
		if f.ReviewerID != "" && o.ReviewerID != f.ReviewerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		obs = append(obs, &cp)
	}
	sort.Slice(obs, func(i, j int) bool {
		return obs[i].CreatedAt.Before(obs[j].CreatedAt)
	})
	return obs, nil
}

// SaveOutcome stores the outcome for an application.
func (s *MemoryStore) SaveOutcome(_ context.Context, o *council.GrantOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.outcomes[o.ApplicationID] = &cp
	return nil
}

// GetOutcome retrieves the outcome for an application.
func (s *MemoryStore) GetOutcome(_ context.Context, applicationID string) (*council.GrantOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// SaveLearningEvent stores or replaces a learning event.
func (s *MemoryStore) SaveLearningEvent(_ context.Context, e *council.LearningEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

// ListUnprocessedLearningEvents returns pending events, oldest first.
func (s *MemoryStore) ListUnprocessedLearningEvents(_ context.Context) ([]*council.LearningEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*council.LearningEvent
	for _, e := range s.events {
		if !e.Processed {
			cp := *e
			events = append(events, &cp)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}
