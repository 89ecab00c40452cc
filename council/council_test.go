package council_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
)

func TestExtractTagsBuckets(t *testing.T) {
	tests := []struct {
		name   string
		parsed council.ParsedApplication
		want   []string
	}{
		{
			name: "small solo project",
			parsed: council.ParsedApplication{
				Category:        "Infrastructure",
				RequestedAmount: 5000,
				TeamMembers:     []council.TeamMember{{Name: "alice"}},
				Milestones:      []council.Milestone{{Title: "m1"}},
			},
			want: []string{"infrastructure", "small_grant", "solo_founder", "few_milestones"},
		},
		{
			name: "medium grant small team",
			parsed: council.ParsedApplication{
				Category:        "Tooling",
				RequestedAmount: 25000,
				TeamMembers:     []council.TeamMember{{Name: "a"}, {Name: "b"}, {Name: "c"}},
				Milestones:      []council.Milestone{{}, {}, {}},
			},
			want: []string{"tooling", "medium_grant", "small_team", "detailed_milestones"},
		},
		{
			name: "large grant larger team",
			parsed: council.ParsedApplication{
				RequestedAmount: 75000,
				TeamMembers:     []council.TeamMember{{}, {}, {}, {}},
			},
			want: []string{"large_grant", "larger_team", "few_milestones"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, council.ExtractTags(&tt.parsed))
		})
	}
}

func TestExtractTagsBoundaries(t *testing.T) {
	parsed := council.ParsedApplication{RequestedAmount: 10000}
	assert.Contains(t, council.ExtractTags(&parsed), "medium_grant")

	parsed.RequestedAmount = 50000
	assert.Contains(t, council.ExtractTags(&parsed), "large_grant")
}

func TestValidateParsedCleanApplication(t *testing.T) {
	parsed := council.ParsedApplication{
		ProjectName:        "ZK Light Client",
		ProjectDescription: "A light client for the chain",
		TeamName:           "Nova Builders",
		RequestedAmount:    10000,
		Milestones:         []council.Milestone{{Title: "m1"}},
		BudgetBreakdown: []council.BudgetItem{
			{Category: "dev", Amount: 7000},
			{Category: "audit", Amount: 3000},
		},
	}
	assert.Empty(t, council.ValidateParsed(&parsed))
}

func TestValidateParsedReportsIssues(t *testing.T) {
	parsed := council.ParsedApplication{
		ProjectName: "Unknown Project",
		TeamName:    "",
	}
	issues := council.ValidateParsed(&parsed)

	assert.Contains(t, issues, "missing project name")
	assert.Contains(t, issues, "missing project description")
	assert.Contains(t, issues, "missing team name")
	assert.Contains(t, issues, "invalid or missing requested amount")
	assert.Contains(t, issues, "no milestones defined")
	assert.Contains(t, issues, "no budget breakdown provided")
}

func TestValidateParsedBudgetMismatch(t *testing.T) {
	parsed := council.ParsedApplication{
		ProjectName:        "P",
		ProjectDescription: "D",
		TeamName:           "T",
		RequestedAmount:    10000,
		Milestones:         []council.Milestone{{}},
		BudgetBreakdown:    []council.BudgetItem{{Amount: 8000}},
	}
	issues := council.ValidateParsed(&parsed)
	assert.Len(t, issues, 1)
	assert.Contains(t, issues[0], "doesn't match requested amount")

	// Rounding error inside the tolerance passes.
	parsed.BudgetBreakdown = []council.BudgetItem{{Amount: 9999.50}}
	assert.Empty(t, council.ValidateParsed(&parsed))
}

func TestRecommendationBuckets(t *testing.T) {
	for _, r := range council.Recommendations {
		assert.True(t, r.Valid())
		assert.NotEqual(t, r.IsApprove(), r.IsReject(), "recommendation %s must fall in exactly one bucket", r)
	}
	assert.False(t, council.Recommendation("maybe").Valid())

	assert.True(t, council.LeanApprove.IsApprove())
	assert.True(t, council.LeanReject.IsReject())
}

func TestConfidenceOrdering(t *testing.T) {
	assert.True(t, council.ConfidenceHigh.MoreConfidentThan(council.ConfidenceMedium))
	assert.True(t, council.ConfidenceMedium.MoreConfidentThan(council.ConfidenceLow))
	assert.False(t, council.ConfidenceLow.MoreConfidentThan(council.ConfidenceHigh))
	assert.False(t, council.ConfidenceHigh.MoreConfidentThan(council.ConfidenceHigh))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, council.StatusAutoApproved.Terminal())
	assert.True(t, council.StatusParseFailed.Terminal())
	assert.True(t, council.StatusHumanRejected.Terminal())
	assert.False(t, council.StatusPending.Terminal())
	assert.False(t, council.StatusNeedsReview.Terminal())
}

func TestEvaluationFinalFieldsAndClone(t *testing.T) {
	eval := &council.Evaluation{
		Recommendation: council.Approve,
		Rationale:      "original",
		Concerns:       []string{"c1"},
	}
	assert.Equal(t, council.Approve, eval.FinalRecommendation())
	assert.Equal(t, "original", eval.FinalRationale())

	eval.RevisedRecommendation = council.LeanReject
	eval.RevisionRationale = "changed my mind"
	assert.Equal(t, council.LeanReject, eval.FinalRecommendation())
	assert.Equal(t, "changed my mind", eval.FinalRationale())

	clone := eval.Clone()
	clone.Concerns[0] = "mutated"
	assert.Equal(t, "c1", eval.Concerns[0])
}
