package reviewer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
)

// Marker regexes for the structured response format. Case-insensitive
// because models drift on casing.
var (
	scoreRe          = regexp.MustCompile(`(?i)SCORE:\s*(\d+)`)
	recommendationRe = regexp.MustCompile(`(?i)RECOMMENDATION:\s*(\w+)`)
	confidenceRe     = regexp.MustCompile(`(?i)CONFIDENCE:\s*(\w+)`)
	rationaleRe      = regexp.MustCompile(`(?is)RATIONALE:\s*(.+?)(?:STRENGTHS:|CONCERNS:|QUESTIONS:|$)`)
	strengthsRe      = regexp.MustCompile(`(?is)STRENGTHS:\s*(.+?)(?:CONCERNS:|QUESTIONS:|$)`)
	concernsRe       = regexp.MustCompile(`(?is)CONCERNS:\s*(.+?)(?:QUESTIONS:|$)`)
	questionsRe      = regexp.MustCompile(`(?is)QUESTIONS:\s*(.+)$`)

	positionChangeRe = regexp.MustCompile(`(?i)POSITION_CHANGE:\s*(\w+)`)
	updatedRecRe     = regexp.MustCompile(`(?i)UPDATED_RECOMMENDATION:\s*(\w+)`)
	delibResponseRe  = regexp.MustCompile(`(?is)DELIBERATION_RESPONSE:\s*(.+)$`)
)

// ParsedEvaluation is the structured result of an evaluation reply.
// Fields that could not be parsed carry caution-biased defaults and
// set Degraded.
type ParsedEvaluation struct {
	Score          int
	Recommendation council.Recommendation
	Confidence     council.ConfidenceLevel
	Rationale      string
	Strengths      []string
	Concerns       []string
	Questions      []string
	Degraded       bool
}

// ParseEvaluationResponse parses a reviewer's structured evaluation
// reply. Missing or malformed fields fall back to a neutral score,
// lean_reject, and medium confidence rather than failing the whole
// evaluation.
func ParseEvaluationResponse(text string) ParsedEvaluation {
	result := ParsedEvaluation{
		Score:          5,
		Recommendation: council.LeanReject,
		Confidence:     council.ConfidenceMedium,
	}

	if m := scoreRe.FindStringSubmatch(text); m != nil {
		if score, err := strconv.Atoi(m[1]); err == nil {
			result.Score = clampScore(score)
		} else {
			result.Degraded = true
		}
	} else {
		result.Degraded = true
	}

	if m := recommendationRe.FindStringSubmatch(text); m != nil {
		if rec, ok := parseRecommendation(m[1]); ok {
			result.Recommendation = rec
		} else {
			result.Degraded = true
		}
	} else {
		result.Degraded = true
	}

	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		conf := council.ConfidenceLevel(strings.ToLower(m[1]))
		if conf.Valid() {
			result.Confidence = conf
		}
	}

	if m := rationaleRe.FindStringSubmatch(text); m != nil {
		result.Rationale = strings.TrimSpace(m[1])
	}
	if m := strengthsRe.FindStringSubmatch(text); m != nil {
		result.Strengths = parseBullets(m[1])
	}
	if m := concernsRe.FindStringSubmatch(text); m != nil {
		result.Concerns = parseBullets(m[1])
	}
	if m := questionsRe.FindStringSubmatch(text); m != nil {
		result.Questions = parseBullets(m[1])
	}

	return result
}

// ParsedDeliberation is the structured result of a deliberation reply.
type ParsedDeliberation struct {
	PositionChange        council.PositionChange
	UpdatedRecommendation council.Recommendation
	Response              string
}

// ParseDeliberationResponse parses a reviewer's deliberation reply.
// An unrecognized position change reads as maintained; an invalid
// updated recommendation is dropped.
func ParseDeliberationResponse(text string) ParsedDeliberation {
	result := ParsedDeliberation{
		PositionChange: council.PositionMaintained,
	}

	if m := positionChangeRe.FindStringSubmatch(text); m != nil {
		switch council.PositionChange(strings.ToLower(m[1])) {
		case council.PositionStrengthened:
			result.PositionChange = council.PositionStrengthened
		case council.PositionWeakened:
			result.PositionChange = council.PositionWeakened
		case council.PositionReversed:
			result.PositionChange = council.PositionReversed
		}
	}

	if m := updatedRecRe.FindStringSubmatch(text); m != nil {
		rec := council.Recommendation(strings.ToLower(m[1]))
		if rec.Valid() {
			result.UpdatedRecommendation = rec
		}
	}

	if m := delibResponseRe.FindStringSubmatch(text); m != nil {
		result.Response = strings.TrimSpace(m[1])
	}

	return result
}

// clampScore clamps a score into the 1-10 range.
func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// parseRecommendation maps a raw token to a recommendation level.
// Unrecognized tokens that still mention approve/reject fall to the
// nearest plain level.
func parseRecommendation(raw string) (council.Recommendation, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))

	rec := council.Recommendation(token)
	if rec.Valid() {
		return rec, true
	}

	hasStrong := strings.Contains(token, "strong")
	switch {
	case hasStrong && strings.Contains(token, "approve"):
		return council.StrongApprove, true
	case hasStrong && strings.Contains(token, "reject"):
		return council.StrongReject, true
	case strings.Contains(token, "approve"):
		return council.Approve, true
	case strings.Contains(token, "reject"):
		return council.Reject, true
	}
	return "", false
}

// parseBullets splits a bullet-list section into trimmed items,
// dropping empty lines and bare markers.
func parseBullets(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		item := strings.TrimSpace(line)
		item = strings.TrimLeft(item, "-* \t")
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}
