package council

import "fmt"

// budgetTolerance is the allowed rounding error between the budget
// breakdown total and the requested amount, in USD.
const budgetTolerance = 1.0

// ValidateParsed performs a structural sanity check on a parsed
// application. The issues it returns are advisory: the pipeline logs
// them and proceeds.
func ValidateParsed(parsed *ParsedApplication) []string {
	var issues []string

	if parsed.ProjectName == "" || parsed.ProjectName == "Unknown Project" {
		issues = append(issues, "missing project name")
	}
	if parsed.ProjectDescription == "" {
		issues = append(issues, "missing project description")
	}
	if parsed.TeamName == "" || parsed.TeamName == "Unknown Team" {
		issues = append(issues, "missing team name")
	}
	if parsed.RequestedAmount <= 0 {
		issues = append(issues, "invalid or missing requested amount")
	}
	if len(parsed.Milestones) == 0 {
		issues = append(issues, "no milestones defined")
	}
	if len(parsed.BudgetBreakdown) == 0 {
		issues = append(issues, "no budget breakdown provided")
	}

	if len(parsed.BudgetBreakdown) > 0 {
		var total float64
		for _, item := range parsed.BudgetBreakdown {
			total += item.Amount
		}
		diff := total - parsed.RequestedAmount
		if diff < 0 {
			diff = -diff
		}
		if diff > budgetTolerance {
			issues = append(issues, fmt.Sprintf(
				"budget breakdown ($%.2f) doesn't match requested amount ($%.2f)",
				total, parsed.RequestedAmount))
		}
	}

	return issues
}
