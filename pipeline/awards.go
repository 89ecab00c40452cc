package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

// RecordAward updates the matched team's grant bookkeeping after an
// approval. Applications without a matched team are a no-op.
func RecordAward(ctx context.Context, store storage.Store, app *council.Application) error {
	if app.MatchedTeamID == "" {
		return nil
	}

	team, err := store.GetTeam(ctx, app.MatchedTeamID)
	if err != nil {
		return fmt.Errorf("load team: %w", err)
	}

	for _, id := range team.ApplicationIDs {
		if id == app.ID {
			return nil
		}
	}
	team.ApplicationIDs = append(team.ApplicationIDs, app.ID)
	team.GrantsReceived++
	if app.Parsed != nil {
		team.TotalFunding += app.Parsed.RequestedAmount
	}
	team.UpdatedAt = time.Now().UTC()

	return store.SaveTeam(ctx, team)
}

// RecordCompletion updates the matched team's completion counters from
// a recorded outcome.
func RecordCompletion(ctx context.Context, store storage.Store, app *council.Application, outcome *council.GrantOutcome) error {
	if app.MatchedTeamID == "" {
		return nil
	}

	team, err := store.GetTeam(ctx, app.MatchedTeamID)
	if err != nil {
		return fmt.Errorf("load team: %w", err)
	}

	if outcome.Completed {
		team.GrantsCompleted++
	} else {
		team.GrantsFailed++
	}
	team.UpdatedAt = time.Now().UTC()

	return store.SaveTeam(ctx, team)
}
