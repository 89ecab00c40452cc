package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/llm"
	"github.com/SovereignSignal/llm-grants-council-claude1/reviewer"
)

// deliberate runs the configured number of deliberation rounds. Every
// reviewer in a round sees a frozen snapshot of the other evaluations
// taken at the start of that round, so position changes never leak
// into peers' prompts mid-round.
func (c *Coordinator) deliberate(ctx context.Context, app *council.Application, evaluations []*council.Evaluation) (*council.Deliberation, []*council.Evaluation, error) {
	deliberation := &council.Deliberation{
		ApplicationID: app.ID,
		CreatedAt:     time.Now().UTC(),
	}

	summary := "Application details unavailable"
	if app.Parsed != nil {
		summary = fmt.Sprintf("%s: %s", app.Parsed.ProjectName, app.Parsed.ProjectSummary)
	}

	current := evaluations
	for round := 1; round <= c.cfg.Council.DeliberationRounds; round++ {
		snapshot := make([]*council.Evaluation, len(current))
		for i, eval := range current {
			snapshot[i] = eval.Clone()
		}

		updated := make([]*council.Evaluation, len(current))
		rounds := make([]council.DeliberationRound, len(current))

		var wg sync.WaitGroup
		for i, eval := range current {
			persona, ok := reviewer.PersonaByID(c.pool.Personas(), eval.ReviewerID)
			if !ok {
				updated[i] = eval
				rounds[i] = council.DeliberationRound{
					RoundNumber:    round,
					ReviewerID:     eval.ReviewerID,
					PositionChange: council.PositionMaintained,
					Response:       "Reviewer unavailable for deliberation",
				}
				continue
			}

			wg.Add(1)
			go func(i int, persona reviewer.Persona, eval *council.Evaluation) {
				defer wg.Done()
				rounds[i], updated[i] = c.deliberateOne(ctx, round, persona, eval, snapshot, summary)
			}(i, persona, eval)
		}
		wg.Wait()

		deliberation.Rounds = append(deliberation.Rounds, rounds...)
		current = updated
	}

	return deliberation, current, nil
}

// deliberateOne runs one reviewer's deliberation against the frozen
// peer snapshot. A failed call reads as a maintained position.
func (c *Coordinator) deliberateOne(ctx context.Context, round int, persona reviewer.Persona, own *council.Evaluation, snapshot []*council.Evaluation, summary string) (council.DeliberationRound, *council.Evaluation) {
	// Peers are shown at their current position, so round k's revisions
	// are what round k+1 deliberates against.
	var peers []reviewer.PeerEvaluation
	for _, other := range snapshot {
		if other.ReviewerID == own.ReviewerID {
			continue
		}
		peers = append(peers, reviewer.PeerEvaluation{
			Score:          other.Score,
			Recommendation: other.FinalRecommendation(),
			Rationale:      other.FinalRationale(),
			Concerns:       other.Concerns,
		})
	}

	record := council.DeliberationRound{
		RoundNumber: round,
		ReviewerID:  persona.ID,
		PeerSummary: fmt.Sprintf("Saw %d other evaluations", len(peers)),
	}

	prompt := reviewer.BuildDeliberationPrompt(persona, own, peers, summary)
	resp, err := c.client.Complete(ctx, llm.Request{
		Model: c.cfg.LLM.ModelFor(persona.ID),
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Timeout: c.cfg.LLM.DeliberationTimeout,
	})
	if err != nil || resp.Content == "" {
		c.logger.Warn("Deliberation call failed, position maintained",
			"reviewer_id", persona.ID,
			"application_id", own.ApplicationID,
			"error", err)
		record.PositionChange = council.PositionMaintained
		record.Response = "Reviewer did not respond"
		return record, own
	}

	parsed := reviewer.ParseDeliberationResponse(resp.Content)
	record.PositionChange = parsed.PositionChange
	record.Response = parsed.Response
	record.UpdatedRecommendation = parsed.UpdatedRecommendation

	if parsed.UpdatedRecommendation == "" {
		return record, own
	}

	revised := own.Clone()
	revised.RevisedRecommendation = parsed.UpdatedRecommendation
	revised.RevisionRationale = parsed.Response
	revised.PositionChanged = true
	return record, revised
}
