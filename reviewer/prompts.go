package reviewer

import (
	"fmt"
	"strings"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
)

// Prompt assembly limits: how much peer context and learned history is
// injected into each call.
const (
	maxObservationsInPrompt = 5
	maxSimilarInPrompt      = 3
	maxRationaleExcerpt     = 500
	maxPeerConcerns         = 3
)

// SimilarCase summarizes a previously decided application offered as
// context during evaluation.
type SimilarCase struct {
	ApplicationID string  `json:"application_id"`
	ProjectName   string  `json:"project_name"`
	Amount        float64 `json:"amount"`
	Decision      string  `json:"decision"`
	Outcome       string  `json:"outcome,omitempty"`
	Summary       string  `json:"summary,omitempty"`
}

// EvaluationPromptInput collects everything a persona sees when
// evaluating an application.
type EvaluationPromptInput struct {
	Parsed       *council.ParsedApplication
	Team         *council.TeamProfile
	Similar      []SimilarCase
	Observations []*council.Observation
}

// BuildEvaluationPrompt assembles the stage-2 evaluation prompt:
// persona character, learned observations, team history, similar
// cases, the application itself, then the response format.
func BuildEvaluationPrompt(p Persona, in EvaluationPromptInput) string {
	var b strings.Builder

	b.WriteString(p.SystemPrompt)
	b.WriteString("\n---\n")

	if len(in.Observations) > 0 {
		b.WriteString("## Patterns You've Learned\n")
		b.WriteString("Based on your experience reviewing applications, you've developed these insights:\n\n")
		obs := in.Observations
		if len(obs) > maxObservationsInPrompt {
			obs = obs[:maxObservationsInPrompt]
		}
		for _, o := range obs {
			fmt.Fprintf(&b, "- **%s** (confidence: %s, based on %d cases)\n", o.Pattern, o.Confidence, o.EvidenceCount)
			fmt.Fprintf(&b, "  Context: %s\n\n", o.Context)
		}
		b.WriteString("---\n")
	}

	if in.Team != nil {
		b.WriteString("## Team History\n")
		fmt.Fprintf(&b, "**Team:** %s\n", in.Team.CanonicalName)
		if len(in.Team.Aliases) > 0 {
			fmt.Fprintf(&b, "Also known as: %s\n", strings.Join(in.Team.Aliases, ", "))
		}
		b.WriteString("\n**Grant History:**\n")
		fmt.Fprintf(&b, "- Applications submitted: %d\n", len(in.Team.ApplicationIDs))
		fmt.Fprintf(&b, "- Grants received: %d\n", in.Team.GrantsReceived)
		fmt.Fprintf(&b, "- Grants completed successfully: %d\n", in.Team.GrantsCompleted)
		fmt.Fprintf(&b, "- Grants failed/incomplete: %d\n", in.Team.GrantsFailed)
		fmt.Fprintf(&b, "- Total funding received: $%.2f\n", in.Team.TotalFunding)
		if in.Team.ReputationNotes != "" {
			fmt.Fprintf(&b, "\n**Notes:** %s\n", in.Team.ReputationNotes)
		}
		b.WriteString("\n---\n")
	}

	if len(in.Similar) > 0 {
		b.WriteString("## Similar Applications\n")
		b.WriteString("Here are similar applications you've seen before and their outcomes:\n\n")
		similar := in.Similar
		if len(similar) > maxSimilarInPrompt {
			similar = similar[:maxSimilarInPrompt]
		}
		for _, s := range similar {
			fmt.Fprintf(&b, "**%s**\n", s.ProjectName)
			fmt.Fprintf(&b, "- Requested: $%.2f\n", s.Amount)
			fmt.Fprintf(&b, "- Decision: %s\n", s.Decision)
			if s.Outcome != "" {
				fmt.Fprintf(&b, "- Outcome: %s\n", s.Outcome)
			}
			if s.Summary != "" {
				fmt.Fprintf(&b, "- Summary: %s\n", s.Summary)
			}
			b.WriteString("\n")
		}
		b.WriteString("---\n")
	}

	writeApplication(&b, in.Parsed)

	b.WriteString("## Your Evaluation\n\n")
	b.WriteString(p.EvaluationInstructions)
	b.WriteString(`

**Format your response as follows:**

SCORE: [1-10]
RECOMMENDATION: [strong_approve/approve/lean_approve/lean_reject/reject/strong_reject]
CONFIDENCE: [high/medium/low]

RATIONALE:
[Your detailed reasoning]

STRENGTHS:
- [Strength 1]
- [Strength 2]
...

CONCERNS:
- [Concern 1]
- [Concern 2]
...

QUESTIONS:
- [Question 1 that would help clarify]
- [Question 2]
...
`)

	return b.String()
}

// writeApplication renders the application section shared by every
// persona's evaluation prompt.
func writeApplication(b *strings.Builder, parsed *council.ParsedApplication) {
	b.WriteString("## Current Application\n\n")
	fmt.Fprintf(b, "**Project Name:** %s\n\n", parsed.ProjectName)
	fmt.Fprintf(b, "**Team:** %s\n", parsed.TeamName)
	if len(parsed.TeamMembers) > 0 {
		members := make([]string, 0, len(parsed.TeamMembers))
		for _, m := range parsed.TeamMembers {
			if m.Role != "" {
				members = append(members, fmt.Sprintf("%s (%s)", m.Name, m.Role))
			} else {
				members = append(members, m.Name)
			}
		}
		fmt.Fprintf(b, "**Team Members:** %s\n", strings.Join(members, ", "))
	}
	fmt.Fprintf(b, "\n**Requested Amount:** $%.2f\n\n", parsed.RequestedAmount)

	fmt.Fprintf(b, "**Summary:**\n%s\n\n", parsed.ProjectSummary)
	fmt.Fprintf(b, "**Full Description:**\n%s\n\n", parsed.ProjectDescription)

	if parsed.TeamBackground != "" {
		fmt.Fprintf(b, "**Team Background:**\n%s\n\n", parsed.TeamBackground)
	}
	if parsed.PriorWork != "" {
		fmt.Fprintf(b, "**Prior Work:**\n%s\n\n", parsed.PriorWork)
	}

	if len(parsed.BudgetBreakdown) > 0 {
		b.WriteString("**Budget Breakdown:**\n")
		for _, item := range parsed.BudgetBreakdown {
			fmt.Fprintf(b, "- %s: $%.2f", item.Category, item.Amount)
			if item.Description != "" {
				fmt.Fprintf(b, " - %s", item.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(parsed.Milestones) > 0 {
		b.WriteString("**Milestones:**\n")
		for i, ms := range parsed.Milestones {
			fmt.Fprintf(b, "%d. **%s**", i+1, ms.Title)
			if ms.Timeline != "" {
				fmt.Fprintf(b, " (%s)", ms.Timeline)
			}
			fmt.Fprintf(b, "\n   %s\n", ms.Description)
			if len(ms.Deliverables) > 0 {
				fmt.Fprintf(b, "   Deliverables: %s\n", strings.Join(ms.Deliverables, ", "))
			}
		}
		b.WriteString("\n")
	}

	if parsed.EcosystemBenefit != "" {
		fmt.Fprintf(b, "**Ecosystem Benefit:**\n%s\n\n", parsed.EcosystemBenefit)
	}
	if parsed.GitHubURL != "" {
		fmt.Fprintf(b, "**GitHub:** %s\n", parsed.GitHubURL)
	}
	if parsed.WebsiteURL != "" {
		fmt.Fprintf(b, "**Website:** %s\n", parsed.WebsiteURL)
	}

	b.WriteString("\n---\n")
}

// PeerEvaluation is the anonymized view of another reviewer's
// evaluation shown during deliberation.
type PeerEvaluation struct {
	Score          int
	Recommendation council.Recommendation
	Rationale      string
	Concerns       []string
}

// BuildDeliberationPrompt assembles the stage-3 prompt: the persona
// re-reads its own evaluation alongside anonymized peer snapshots and
// decides whether to move.
func BuildDeliberationPrompt(p Persona, own *council.Evaluation, peers []PeerEvaluation, applicationSummary string) string {
	var b strings.Builder

	b.WriteString(p.SystemPrompt)
	b.WriteString("\n---\n")

	b.WriteString("## Deliberation Phase\n\n")
	b.WriteString("You previously evaluated this application. Now you can see how other reviewers assessed it.\n\n")
	fmt.Fprintf(&b, "**Application Summary:** %s\n\n", applicationSummary)

	b.WriteString("### Your Initial Evaluation\n")
	fmt.Fprintf(&b, "- Score: %d/10\n", own.Score)
	fmt.Fprintf(&b, "- Recommendation: %s\n", own.Recommendation)
	fmt.Fprintf(&b, "- Confidence: %s\n", own.Confidence)
	fmt.Fprintf(&b, "- Key points: %s...\n\n", excerpt(own.Rationale, maxRationaleExcerpt))

	b.WriteString("### Other Reviewers' Evaluations\n\n")
	for i, peer := range peers {
		fmt.Fprintf(&b, "**Reviewer %d:**\n", i+1)
		fmt.Fprintf(&b, "- Score: %d/10\n", peer.Score)
		fmt.Fprintf(&b, "- Recommendation: %s\n", peer.Recommendation)
		fmt.Fprintf(&b, "- Key reasoning: %s...\n", excerpt(peer.Rationale, maxRationaleExcerpt))
		if len(peer.Concerns) > 0 {
			concerns := peer.Concerns
			if len(concerns) > maxPeerConcerns {
				concerns = concerns[:maxPeerConcerns]
			}
			fmt.Fprintf(&b, "- Concerns: %s\n", strings.Join(concerns, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	b.WriteString(`## Your Task

Review the other evaluations and consider whether they raise valid points you missed or whether your original assessment stands.

You may:
1. **Maintain** your position if you believe your assessment is correct
2. **Strengthen** your position if others' concerns don't apply
3. **Weaken** your position if others raise valid points
4. **Reverse** your position if you were convinced you were wrong

**Format your response:**

POSITION_CHANGE: [maintained/strengthened/weakened/reversed]

UPDATED_RECOMMENDATION: [only if changed - strong_approve/approve/lean_approve/lean_reject/reject/strong_reject]

DELIBERATION_RESPONSE:
[Your response to other reviewers' points. What do you agree with? Disagree with? What did they miss or catch that you didn't?]
`)

	return b.String()
}

// excerpt truncates s to at most n bytes on a rune boundary.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !isRuneStart(s[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
