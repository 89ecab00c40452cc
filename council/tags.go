package council

import "strings"

// Amount and team-size bucket boundaries for tag extraction.
const (
	smallGrantLimit  = 10000
	mediumGrantLimit = 50000
	smallTeamLimit   = 3
	fewMilestones    = 2
)

// ExtractTags derives the categorical tag set used to rank observation
// relevance: category, amount bucket, team-size bucket, and milestone
// density. The result is unordered; callers must not rely on position.
func ExtractTags(parsed *ParsedApplication) []string {
	var tags []string

	if parsed.Category != "" {
		tags = append(tags, strings.ToLower(parsed.Category))
	}

	switch {
	case parsed.RequestedAmount < smallGrantLimit:
		tags = append(tags, "small_grant")
	case parsed.RequestedAmount < mediumGrantLimit:
		tags = append(tags, "medium_grant")
	default:
		tags = append(tags, "large_grant")
	}

	switch {
	case len(parsed.TeamMembers) == 1:
		tags = append(tags, "solo_founder")
	case len(parsed.TeamMembers) <= smallTeamLimit:
		tags = append(tags, "small_team")
	default:
		tags = append(tags, "larger_team")
	}

	if len(parsed.Milestones) <= fewMilestones {
		tags = append(tags, "few_milestones")
	} else {
		tags = append(tags, "detailed_milestones")
	}

	return tags
}
