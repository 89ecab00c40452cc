package api

import (
	"context"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/pipeline"
)

// recordAward updates the matched team's grant bookkeeping after a
// human approval. Auto-approvals are recorded by the pipeline itself.
func (s *Server) recordAward(ctx context.Context, app *council.Application) {
	if err := pipeline.RecordAward(ctx, s.store, app); err != nil {
		s.logger.Warn("Team award bookkeeping failed",
			"application_id", app.ID,
			"team_id", app.MatchedTeamID,
			"error", err)
	}
}

// recordCompletion updates the matched team's completion counters when
// an outcome is recorded.
func (s *Server) recordCompletion(ctx context.Context, app *council.Application, outcome *council.GrantOutcome) {
	if err := pipeline.RecordCompletion(ctx, s.store, app, outcome); err != nil {
		s.logger.Warn("Team completion bookkeeping failed",
			"application_id", app.ID,
			"team_id", app.MatchedTeamID,
			"error", err)
	}
}
