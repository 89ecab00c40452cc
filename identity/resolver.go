// Package identity resolves a parsed application to a known team
// profile using tiered matching heuristics.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/storage"
)

// Match confidence tiers, strongest first. An exact wallet match is
// definitive and always outranks name or member heuristics.
const (
	confidenceExactWallet   = 1.0
	confidenceExactName     = 0.9
	confidenceNameContains  = 0.7
	confidenceStrongOverlap = 0.8
	confidenceWeakOverlap   = 0.6

	// confirmationThreshold: matches below this confidence require
	// human confirmation.
	confirmationThreshold = 0.9

	strongOverlapRatio = 0.5
	weakOverlapRatio   = 0.3
)

// Resolver matches applications against stored team profiles.
type Resolver struct {
	store  storage.Store
	logger *slog.Logger
}

// NewResolver creates a resolver over the given store.
func NewResolver(store storage.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve finds the single best-scoring team match for the parsed
// application across all profiles, or nil if no profile matches at
// all. When two profiles tie on confidence the first one in listing
// order is kept.
func (r *Resolver) Resolve(ctx context.Context, parsed *council.ParsedApplication) (*council.TeamMatch, error) {
	teams, err := r.store.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	var best *council.TeamMatch
	for _, team := range teams {
		match := scoreProfile(parsed, team)
		if match == nil {
			continue
		}
		if best == nil || match.Confidence > best.Confidence {
			best = match
		}
	}

	if best != nil {
		r.logger.Debug("Resolved team identity",
			"team_id", best.MatchedTeamID,
			"confidence", best.Confidence,
			"match_type", best.MatchType)
	}
	return best, nil
}

// scoreProfile scores one profile against the application, taking the
// maximum across the tiers that apply. Returns nil when nothing
// matches.
func scoreProfile(parsed *council.ParsedApplication, team *council.TeamProfile) *council.TeamMatch {
	// Wallet match is definitive; skip the weaker tiers entirely.
	if parsed.WalletAddress != "" {
		wallet := strings.ToLower(parsed.WalletAddress)
		for _, w := range team.WalletAddrs {
			if strings.ToLower(w) == wallet {
				return &council.TeamMatch{
					MatchedTeamID: team.ID,
					Confidence:    confidenceExactWallet,
					MatchType:     "exact_wallet",
					Evidence: []string{
						fmt.Sprintf("Wallet address %s matches team wallet", parsed.WalletAddress),
					},
				}
			}
		}
	}

	var (
		confidence float64
		matchType  string
		evidence   []string
	)

	submitted := strings.ToLower(strings.TrimSpace(parsed.TeamName))
	if submitted != "" {
		known := append([]string{team.CanonicalName}, team.Aliases...)
		for _, name := range known {
			candidate := strings.ToLower(strings.TrimSpace(name))
			if candidate == "" {
				continue
			}
			if submitted == candidate {
				confidence = max(confidence, confidenceExactName)
				matchType = "fuzzy_name"
				evidence = append(evidence,
					fmt.Sprintf("Team name %q matches %q", parsed.TeamName, name))
				break
			}
			if strings.Contains(candidate, submitted) || strings.Contains(submitted, candidate) {
				if confidenceNameContains > confidence {
					confidence = confidenceNameContains
					matchType = "fuzzy_name"
				}
				evidence = append(evidence,
					fmt.Sprintf("Team name %q partially matches %q", parsed.TeamName, name))
			}
		}
	}

	if overlap, ratio := memberOverlap(parsed.TeamMembers, team.Members); ratio >= weakOverlapRatio {
		tier := confidenceWeakOverlap
		if ratio >= strongOverlapRatio {
			tier = confidenceStrongOverlap
		}
		if tier > confidence {
			confidence = tier
			matchType = "member_overlap"
		}
		evidence = append(evidence,
			fmt.Sprintf("Member overlap: %s", strings.Join(overlap, ", ")))
	}

	if confidence == 0 {
		return nil
	}

	return &council.TeamMatch{
		MatchedTeamID:        team.ID,
		Confidence:           confidence,
		MatchType:            matchType,
		RequiresConfirmation: confidence < confirmationThreshold,
		Evidence:             evidence,
	}
}

// memberOverlap computes the overlapping member names and the overlap
// ratio |intersection| / max(|submitted|, |profile|).
func memberOverlap(submitted []council.TeamMember, known []council.TeamMember) ([]string, float64) {
	if len(submitted) == 0 || len(known) == 0 {
		return nil, 0
	}

	knownNames := make(map[string]bool, len(known))
	for _, m := range known {
		knownNames[strings.ToLower(m.Name)] = true
	}

	var overlap []string
	seen := make(map[string]bool, len(submitted))
	for _, m := range submitted {
		name := strings.ToLower(m.Name)
		if knownNames[name] && !seen[name] {
			overlap = append(overlap, name)
			seen[name] = true
		}
	}
	if len(overlap) == 0 {
		return nil, 0
	}

	denom := len(submitted)
	if len(known) > denom {
		denom = len(known)
	}
	return overlap, float64(len(overlap)) / float64(denom)
}
