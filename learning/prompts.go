package learning

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

var (
	patternRe = regexp.MustCompile(`(?is)PATTERN:\s*(.+?)(?:CONTEXT:|TAGS:|$)`)
	contextRe = regexp.MustCompile(`(?is)CONTEXT:\s*(.+?)(?:TAGS:|$)`)
	tagsRe    = regexp.MustCompile(`(?is)TAGS:\s*(.+)$`)
)

// buildOverrideReflectionPrompt asks a reviewer to reflect on a
// decision a human overrode.
func buildOverrideReflectionPrompt(eval *council.Evaluation, parsed *council.ParsedApplication, humanDecision, humanRationale string) string {
	var b strings.Builder

	b.WriteString("You are a grants council reviewer reflecting on a decision that was overridden by a human reviewer.\n\n")

	b.WriteString("## Your Original Evaluation\n")
	fmt.Fprintf(&b, "Reviewer: %s\n", eval.ReviewerID)
	fmt.Fprintf(&b, "Score: %d/10\n", eval.Score)
	fmt.Fprintf(&b, "Recommendation: %s\n", eval.Recommendation)
	fmt.Fprintf(&b, "Rationale: %s\n", eval.Rationale)
	fmt.Fprintf(&b, "Concerns: %s\n", joinOrNone(eval.Concerns))
	fmt.Fprintf(&b, "Strengths: %s\n\n", joinOrNone(eval.Strengths))

	writeApplicationSection(&b, parsed)

	b.WriteString("## What Happened\n")
	fmt.Fprintf(&b, "Your recommendation: %s\n", eval.Recommendation)
	fmt.Fprintf(&b, "Human decision: %s\n", humanDecision)
	fmt.Fprintf(&b, "Human rationale: %s\n\n", humanRationale)

	b.WriteString(`## Your Task
Reflect on why the human reviewer made a different decision. Consider:
1. What signals did you miss that the human caught?
2. What factors might you have overweighted or underweighted?
3. Is there a pattern here that could inform future evaluations?

` + patternFormatInstructions)

	return b.String()
}

// buildOutcomeReflectionPrompt asks a reviewer to compare its
// evaluation against the grant's real-world outcome.
func buildOutcomeReflectionPrompt(eval *council.Evaluation, parsed *council.ParsedApplication, outcome *council.GrantOutcome) string {
	var b strings.Builder

	b.WriteString("You are a grants council reviewer reflecting on the outcome of a grant you evaluated.\n\n")

	b.WriteString("## Your Original Evaluation\n")
	fmt.Fprintf(&b, "Reviewer: %s\n", eval.ReviewerID)
	fmt.Fprintf(&b, "Score: %d/10\n", eval.Score)
	fmt.Fprintf(&b, "Recommendation: %s\n", eval.Recommendation)
	fmt.Fprintf(&b, "Rationale: %s\n", eval.Rationale)
	fmt.Fprintf(&b, "Concerns: %s\n", joinOrNone(eval.Concerns))
	fmt.Fprintf(&b, "Strengths: %s\n\n", joinOrNone(eval.Strengths))

	writeApplicationSection(&b, parsed)

	b.WriteString("## Grant Outcome\n")
	fmt.Fprintf(&b, "Completed: %t\n", outcome.Completed)
	fmt.Fprintf(&b, "Completion: %.0f%%\n", outcome.CompletionPercentage)
	if outcome.QualityScore > 0 {
		fmt.Fprintf(&b, "Quality Score: %d/10\n", outcome.QualityScore)
	} else {
		b.WriteString("Quality Score: N/A\n")
	}
	if outcome.ImpactAssessment != "" {
		fmt.Fprintf(&b, "Impact Assessment: %s\n", outcome.ImpactAssessment)
	} else {
		b.WriteString("Impact Assessment: None provided\n")
	}
	fmt.Fprintf(&b, "Issues: %s\n\n", joinOrNone(outcome.IssuesEncountered))

	b.WriteString(`## Your Task
Analyze whether your evaluation predicted the outcome well. Consider:
1. Did your concerns materialize or were they unfounded?
2. Did your identified strengths hold up?
3. What would you have evaluated differently knowing the outcome?
4. Is there a pattern here that could improve future evaluations?

` + patternFormatInstructions)

	return b.String()
}

const patternFormatInstructions = `If you identify a useful pattern, format it as:

PATTERN: [One sentence describing the pattern]
CONTEXT: [When this pattern applies]
TAGS: [comma-separated tags like: small_grant, infrastructure, new_team, etc.]

If you don't see a clear pattern to learn from, just explain your reflection without the PATTERN format.`

func writeApplicationSection(b *strings.Builder, parsed *council.ParsedApplication) {
	b.WriteString("## The Application\n")
	fmt.Fprintf(b, "Project: %s\n", parsed.ProjectName)
	fmt.Fprintf(b, "Team: %s\n", parsed.TeamName)
	fmt.Fprintf(b, "Amount: $%.2f\n", parsed.RequestedAmount)
	fmt.Fprintf(b, "Summary: %s\n\n", parsed.ProjectSummary)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None noted"
	}
	return strings.Join(items, ", ")
}

// parseObservation pulls a PATTERN/CONTEXT/TAGS block out of a
// reflection reply. A reply without a PATTERN marker yields nil: the
// reviewer reflected but found nothing generalizable.
func parseObservation(responseText, reviewerID, applicationID string) *council.Observation {
	m := patternRe.FindStringSubmatch(responseText)
	if m == nil {
		return nil
	}
	pattern := strings.TrimSpace(m[1])
	if pattern == "" {
		return nil
	}

	context := ""
	if cm := contextRe.FindStringSubmatch(responseText); cm != nil {
		context = strings.TrimSpace(cm[1])
	}

	var tags []string
	if tm := tagsRe.FindStringSubmatch(responseText); tm != nil {
		for _, raw := range strings.Split(tm[1], ",") {
			tag := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
			if tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	now := time.Now().UTC()
	return &council.Observation{
		ID:                       storage.NewID(),
		ReviewerID:               reviewerID,
		CreatedAt:                now,
		UpdatedAt:                now,
		Pattern:                  pattern,
		Context:                  context,
		SupportingApplicationIDs: []string{applicationID},
		EvidenceCount:            1,
		Confidence:               council.ConfidenceLow,
		Tags:                     tags,
		Status:                   council.ObservationDraft,
	}
}
