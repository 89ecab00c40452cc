package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/config"
	"github.com/SovereignSignal/llm-grants-council-claude1/council"
)

// Consensus bands below the auto-execution thresholds.
const splitConsensus = 0.6

// Per-reviewer contribution limits for the decision's key points.
const (
	keyPointsPerReviewer = 2
	maxKeyPoints         = 5
	summaryRationaleCap  = 300
)

// Tally aggregates post-deliberation evaluations into a council
// decision and advances the application status. Votes use each
// reviewer's final recommendation.
//
// Routing precedence: the amount ceiling always forces human review,
// then unanimous high-strength consensus auto-executes, then weak
// consensus is flagged as split.
func Tally(app *council.Application, evaluations []*council.Evaluation, cfg config.CouncilConfig) *council.Decision {
	votes := make([]council.Vote, 0, len(evaluations))
	approveVotes, rejectVotes := 0, 0
	for _, eval := range evaluations {
		rec := eval.FinalRecommendation()
		votes = append(votes, council.Vote{
			ReviewerID:     eval.ReviewerID,
			Recommendation: rec,
			Confidence:     eval.Confidence,
			Rationale:      eval.FinalRationale(),
		})
		if rec.IsApprove() {
			approveVotes++
		}
		if rec.IsReject() {
			rejectVotes++
		}
	}

	total := len(votes)
	unanimous := total > 0 && (approveVotes == total || rejectVotes == total)

	strength := 0.0
	if total > 0 {
		if approveVotes > rejectVotes {
			strength = float64(approveVotes) / float64(total)
		} else {
			strength = float64(rejectVotes) / float64(total)
		}
	}

	// Ties lean toward caution.
	var primary council.Recommendation
	switch {
	case approveVotes > rejectVotes:
		primary = council.Approve
	case rejectVotes > approveVotes:
		primary = council.Reject
	default:
		primary = council.LeanReject
	}

	requestedAmount := 0.0
	if app.Parsed != nil {
		requestedAmount = app.Parsed.RequestedAmount
	}

	autoExecute := false
	requiresHumanReview := true
	var routingReason string
	switch {
	case requestedAmount >= cfg.HumanReviewAmount:
		routingReason = fmt.Sprintf("Amount $%.2f exceeds auto-execution threshold", requestedAmount)
	case unanimous && strength >= cfg.AutoApproveThreshold && primary == council.Approve:
		autoExecute = true
		requiresHumanReview = false
		routingReason = "Unanimous high-confidence approval"
	case unanimous && strength >= cfg.AutoRejectThreshold && primary == council.Reject:
		autoExecute = true
		requiresHumanReview = false
		routingReason = "Unanimous high-confidence rejection"
	case strength < splitConsensus:
		routingReason = "Split decision - requires human judgment"
	default:
		routingReason = "Moderate consensus - recommend human review"
	}

	decision := &council.Decision{
		ApplicationID:         app.ID,
		CreatedAt:             time.Now().UTC(),
		Votes:                 votes,
		Unanimous:             unanimous,
		ConsensusStrength:     strength,
		PrimaryRecommendation: primary,
		AutoExecute:           autoExecute,
		RequiresHumanReview:   requiresHumanReview,
		RoutingReason:         routingReason,
		KeyConcerns:           collectKeyPoints(evaluations, func(e *council.Evaluation) []string { return e.Concerns }),
		KeyStrengths:          collectKeyPoints(evaluations, func(e *council.Evaluation) []string { return e.Strengths }),
	}
	decision.Summary = buildSummary(app, evaluations, decision)

	applyDecision(app, decision)
	return decision
}

// applyDecision advances the application status from the routing
// outcome. Auto-executed decisions also stamp the final decision
// fields; everything else waits for a human.
func applyDecision(app *council.Application, decision *council.Decision) {
	if !decision.AutoExecute {
		app.Status = council.StatusNeedsReview
		return
	}

	if decision.PrimaryRecommendation.IsApprove() {
		app.Status = council.StatusAutoApproved
	} else {
		app.Status = council.StatusAutoRejected
	}
	now := time.Now().UTC()
	app.FinalDecision = string(decision.PrimaryRecommendation)
	app.DecisionRationale = decision.Summary
	app.DecidedAt = &now
	app.DecidedBy = "auto"
}

// collectKeyPoints gathers the top points from each evaluation,
// deduplicated in first-seen order, capped at maxKeyPoints.
func collectKeyPoints(evaluations []*council.Evaluation, pick func(*council.Evaluation) []string) []string {
	var points []string
	seen := make(map[string]bool)
	for _, eval := range evaluations {
		items := pick(eval)
		if len(items) > keyPointsPerReviewer {
			items = items[:keyPointsPerReviewer]
		}
		for _, item := range items {
			if seen[item] {
				continue
			}
			seen[item] = true
			points = append(points, item)
		}
	}
	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}

// buildSummary renders the human-readable decision summary shown to
// reviewers and attached to auto-executed applications.
func buildSummary(app *council.Application, evaluations []*council.Evaluation, decision *council.Decision) string {
	projectName := "Unknown Project"
	amount := 0.0
	if app.Parsed != nil {
		projectName = app.Parsed.ProjectName
		amount = app.Parsed.RequestedAmount
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Council Evaluation: %s\n", projectName)
	fmt.Fprintf(&b, "**Requested Amount:** $%.2f\n", amount)
	fmt.Fprintf(&b, "**Recommendation:** %s\n", titleize(string(decision.PrimaryRecommendation)))
	fmt.Fprintf(&b, "**Consensus Strength:** %.0f%%\n", decision.ConsensusStrength*100)

	b.WriteString("\n### Reviewer Votes\n")
	for _, vote := range decision.Votes {
		fmt.Fprintf(&b, "- **%s**: %s (%s confidence)\n",
			titleize(vote.ReviewerID), titleize(string(vote.Recommendation)), vote.Confidence)
	}

	b.WriteString("\n### Key Considerations\n")
	for _, eval := range evaluations {
		fmt.Fprintf(&b, "**%s perspective:**\n", titleize(eval.ReviewerID))
		rationale := eval.Rationale
		if len(rationale) > summaryRationaleCap {
			rationale = rationale[:summaryRationaleCap] + "..."
		}
		b.WriteString(rationale)
		b.WriteString("\n")
	}

	return b.String()
}

// titleize turns snake_case tokens into "Title Case" for display.
func titleize(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
