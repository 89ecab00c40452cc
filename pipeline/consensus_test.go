package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SovereignSignal/llm-grants-council-claude1/config"
	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/pipeline"
)

func councilConfig() config.CouncilConfig {
	return config.CouncilConfig{
		AutoApproveThreshold: 0.85,
		AutoRejectThreshold:  0.85,
		HumanReviewAmount:    50000,
		DeliberationRounds:   1,
	}
}

func makeApp(amount float64) *council.Application {
	return &council.Application{
		ID:     "app-1",
		Status: council.StatusPending,
		Parsed: &council.ParsedApplication{
			ProjectName:     "Test Project",
			RequestedAmount: amount,
		},
	}
}

func makeEvals(recs ...council.Recommendation) []*council.Evaluation {
	reviewers := []string{"technical", "ecosystem", "budget", "impact"}
	evals := make([]*council.Evaluation, len(recs))
	for i, rec := range recs {
		evals[i] = &council.Evaluation{
			ID:             "eval-" + reviewers[i%len(reviewers)],
			ReviewerID:     reviewers[i%len(reviewers)],
			ApplicationID:  "app-1",
			Score:          7,
			Recommendation: rec,
			Confidence:     council.ConfidenceHigh,
			Rationale:      "reasoning",
		}
	}
	return evals
}

func TestTallyUnanimousApprovalAutoExecutes(t *testing.T) {
	app := makeApp(8000)
	evals := makeEvals(council.StrongApprove, council.Approve, council.Approve, council.LeanApprove)

	decision := pipeline.Tally(app, evals, councilConfig())

	assert.True(t, decision.Unanimous)
	assert.Equal(t, 1.0, decision.ConsensusStrength)
	assert.Equal(t, council.Approve, decision.PrimaryRecommendation)
	assert.True(t, decision.AutoExecute)
	assert.False(t, decision.RequiresHumanReview)
	assert.Equal(t, council.StatusAutoApproved, app.Status)
	assert.Equal(t, "auto", app.DecidedBy)
	require.NotNil(t, app.DecidedAt)
}

func TestTallyUnanimousRejectionAutoExecutes(t *testing.T) {
	app := makeApp(8000)
	evals := makeEvals(council.Reject, council.StrongReject, council.LeanReject, council.Reject)

	decision := pipeline.Tally(app, evals, councilConfig())

	assert.True(t, decision.Unanimous)
	assert.Equal(t, council.Reject, decision.PrimaryRecommendation)
	assert.True(t, decision.AutoExecute)
	assert.Equal(t, council.StatusAutoRejected, app.Status)
}

func TestTallyLargeAmountForcesHumanReview(t *testing.T) {
	app := makeApp(60000)
	evals := makeEvals(council.Approve, council.Approve, council.Approve, council.Approve)

	decision := pipeline.Tally(app, evals, councilConfig())

	assert.True(t, decision.Unanimous)
	assert.False(t, decision.AutoExecute)
	assert.True(t, decision.RequiresHumanReview)
	assert.Contains(t, decision.RoutingReason, "exceeds auto-execution threshold")
	assert.Equal(t, council.StatusNeedsReview, app.Status)
	assert.Nil(t, app.DecidedAt)
}

func TestTallyTieLeansReject(t *testing.T) {
	app := makeApp(8000)
	evals := makeEvals(council.Approve, council.Approve, council.Reject, council.Reject)

	decision := pipeline.Tally(app, evals, councilConfig())

	assert.False(t, decision.Unanimous)
	assert.Equal(t, 0.5, decision.ConsensusStrength)
	assert.Equal(t, council.LeanReject, decision.PrimaryRecommendation)
	assert.False(t, decision.AutoExecute)
	assert.Contains(t, decision.RoutingReason, "Split decision")
	assert.Equal(t, council.StatusNeedsReview, app.Status)
}

func TestTallyMajorityNotUnanimousNeedsReview(t *testing.T) {
	app := makeApp(8000)
	evals := makeEvals(council.Approve, council.Approve, council.Approve, council.Reject)

	decision := pipeline.Tally(app, evals, councilConfig())

	assert.False(t, decision.Unanimous)
	assert.Equal(t, 0.75, decision.ConsensusStrength)
	assert.Equal(t, council.Approve, decision.PrimaryRecommendation)
	assert.False(t, decision.AutoExecute)
	assert.Contains(t, decision.RoutingReason, "Moderate consensus")
}

func TestTallyUsesRevisedRecommendations(t *testing.T) {
	app := makeApp(8000)
	evals := makeEvals(council.Approve, council.Approve, council.Approve, council.Reject)

	// The dissenter reversed to approve during deliberation.
	evals[3].RevisedRecommendation = council.Approve
	evals[3].RevisionRationale = "Convinced by peers"
	evals[3].PositionChanged = true

	decision := pipeline.Tally(app, evals, councilConfig())

	assert.True(t, decision.Unanimous)
	assert.True(t, decision.AutoExecute)
	require.Len(t, decision.Votes, 4)
	assert.Equal(t, council.Approve, decision.Votes[3].Recommendation)
	assert.Equal(t, "Convinced by peers", decision.Votes[3].Rationale)
}

func TestTallyKeyPointsDeduplicatedAndCapped(t *testing.T) {
	app := makeApp(8000)
	evals := makeEvals(council.Approve, council.Approve, council.Approve, council.Approve)
	evals[0].Concerns = []string{"tight timeline", "no audit plan", "third concern ignored"}
	evals[1].Concerns = []string{"tight timeline", "unclear scope"}
	evals[2].Concerns = []string{"budget padding", "vague milestones"}
	evals[3].Concerns = []string{"missing maintainers"}

	decision := pipeline.Tally(app, evals, councilConfig())

	// Top 2 per reviewer, deduplicated, capped at 5.
	assert.Equal(t, []string{
		"tight timeline", "no audit plan", "unclear scope", "budget padding", "vague milestones",
	}, decision.KeyConcerns)
}

func TestTallySummaryContents(t *testing.T) {
	app := makeApp(12500)
	evals := makeEvals(council.Approve, council.Approve, council.Approve, council.Approve)

	decision := pipeline.Tally(app, evals, councilConfig())

	assert.Contains(t, decision.Summary, "## Council Evaluation: Test Project")
	assert.Contains(t, decision.Summary, "$12500.00")
	assert.Contains(t, decision.Summary, "Consensus Strength:** 100%")
	assert.Contains(t, decision.Summary, "**Technical**: Approve (high confidence)")
	assert.Contains(t, decision.Summary, "Technical perspective:")
}

func TestTallyNoVotes(t *testing.T) {
	app := makeApp(8000)

	decision := pipeline.Tally(app, nil, councilConfig())

	assert.False(t, decision.Unanimous)
	assert.Equal(t, 0.0, decision.ConsensusStrength)
	assert.Equal(t, council.LeanReject, decision.PrimaryRecommendation)
	assert.False(t, decision.AutoExecute)
	assert.Equal(t, council.StatusNeedsReview, app.Status)
}
