// Package learning implements the council's learning loop: reflection
// on overrides and outcomes, and the observation lifecycle.
package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

// Confidence recomputation thresholds. Confidence only moves once an
// observation has accumulated enough validation signal to be
// meaningful.
const (
	minSignalForConfidence = 3
	highConfidenceRatio    = 0.8
	mediumConfidenceRatio  = 0.5
)

// Observations manages the observation lifecycle: evidence
// accumulation, promotion, approval, and deprecation.
type Observations struct {
	store       storage.Store
	minEvidence int
	logger      *slog.Logger
}

// NewObservations creates an observation manager. minEvidence is the
// evidence count required for draft-to-reviewed promotion.
func NewObservations(store storage.Store, minEvidence int, logger *slog.Logger) *Observations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observations{store: store, minEvidence: minEvidence, logger: logger}
}

// AddEvidence records one application's evidence for or against an
// observation. The supporting set is deduplicated, so re-reporting the
// same application never inflates the evidence count. Confidence is
// recomputed once validations plus invalidations reach the minimum
// signal.
func (o *Observations) AddEvidence(ctx context.Context, observationID, applicationID string, validated bool) error {
	obs, err := o.store.GetObservation(ctx, observationID)
	if err != nil {
		return fmt.Errorf("load observation: %w", err)
	}

	known := false
	for _, id := range obs.SupportingApplicationIDs {
		if id == applicationID {
			known = true
			break
		}
	}
	if !known {
		obs.SupportingApplicationIDs = append(obs.SupportingApplicationIDs, applicationID)
	}
	obs.EvidenceCount = len(obs.SupportingApplicationIDs)

	if validated {
		obs.Validations++
	} else {
		obs.Invalidations++
	}

	if total := obs.Validations + obs.Invalidations; total >= minSignalForConfidence {
		ratio := float64(obs.Validations) / float64(total)
		switch {
		case ratio >= highConfidenceRatio:
			obs.Confidence = council.ConfidenceHigh
		case ratio >= mediumConfidenceRatio:
			obs.Confidence = council.ConfidenceMedium
		default:
			obs.Confidence = council.ConfidenceLow
		}
	}

	obs.UpdatedAt = time.Now().UTC()
	return o.store.SaveObservation(ctx, obs)
}

// PromoteEligible moves draft observations that have reached the
// evidence minimum to reviewed. It returns the IDs promoted.
func (o *Observations) PromoteEligible(ctx context.Context) ([]string, error) {
	drafts, err := o.store.ListObservations(ctx, storage.ObservationFilter{Status: council.ObservationDraft})
	if err != nil {
		return nil, fmt.Errorf("list draft observations: %w", err)
	}

	var promoted []string
	for _, obs := range drafts {
		if obs.EvidenceCount < o.minEvidence {
			continue
		}
		obs.Status = council.ObservationReviewed
		obs.UpdatedAt = time.Now().UTC()
		if err := o.store.SaveObservation(ctx, obs); err != nil {
			return promoted, fmt.Errorf("promote observation %s: %w", obs.ID, err)
		}
		promoted = append(promoted, obs.ID)
		o.logger.Info("Observation promoted to reviewed",
			"observation_id", obs.ID,
			"reviewer_id", obs.ReviewerID,
			"evidence_count", obs.EvidenceCount)
	}
	return promoted, nil
}

// Approve activates a reviewed observation. Only reviewed observations
// can be activated; activation is the human sign-off step.
func (o *Observations) Approve(ctx context.Context, observationID string) (*council.Observation, error) {
	obs, err := o.store.GetObservation(ctx, observationID)
	if err != nil {
		return nil, fmt.Errorf("load observation: %w", err)
	}
	if obs.Status != council.ObservationReviewed {
		return nil, fmt.Errorf("observation %s is %s, only reviewed observations can be approved", observationID, obs.Status)
	}

	obs.Status = council.ObservationActive
	obs.UpdatedAt = time.Now().UTC()
	if err := o.store.SaveObservation(ctx, obs); err != nil {
		return nil, err
	}
	return obs, nil
}

// Deprecate retires an observation from any status. Deprecation is
// one-way.
func (o *Observations) Deprecate(ctx context.Context, observationID string) (*council.Observation, error) {
	obs, err := o.store.GetObservation(ctx, observationID)
	if err != nil {
		return nil, fmt.Errorf("load observation: %w", err)
	}
	if obs.Status == council.ObservationDeprecated {
		return obs, nil
	}

	obs.Status = council.ObservationDeprecated
	obs.UpdatedAt = time.Now().UTC()
	if err := o.store.SaveObservation(ctx, obs); err != nil {
		return nil, err
	}
	return obs, nil
}
