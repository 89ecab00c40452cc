package reviewer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SovereignSignal/llm-grants-council-claude1/council"
	"github.com/SovereignSignal/llm-grants-council-claude1/reviewer"
)

func TestParseEvaluationResponseWellFormed(t *testing.T) {
	text := `SCORE: 8
RECOMMENDATION: approve
CONFIDENCE: high

RATIONALE:
Solid team with prior delivery record. Architecture is straightforward.

STRENGTHS:
- Experienced team
- Clear milestones

CONCERNS:
- Timeline is tight

QUESTIONS:
- Who maintains this after the grant ends?
`

	result := reviewer.ParseEvaluationResponse(text)

	assert.Equal(t, 8, result.Score)
	assert.Equal(t, council.Approve, result.Recommendation)
	assert.Equal(t, council.ConfidenceHigh, result.Confidence)
	assert.Equal(t, "Solid team with prior delivery record. Architecture is straightforward.", result.Rationale)
	assert.Equal(t, []string{"Experienced team", "Clear milestones"}, result.Strengths)
	assert.Equal(t, []string{"Timeline is tight"}, result.Concerns)
	assert.Equal(t, []string{"Who maintains this after the grant ends?"}, result.Questions)
	assert.False(t, result.Degraded)
}

func TestParseEvaluationResponseScoreClamped(t *testing.T) {
	result := reviewer.ParseEvaluationResponse("SCORE: 15\nRECOMMENDATION: strong_approve\nCONFIDENCE: high")
	assert.Equal(t, 10, result.Score)
	assert.False(t, result.Degraded)

	result = reviewer.ParseEvaluationResponse("SCORE: 0\nRECOMMENDATION: reject\nCONFIDENCE: low")
	assert.Equal(t, 1, result.Score)
}

func TestParseEvaluationResponseCaseInsensitive(t *testing.T) {
	result := reviewer.ParseEvaluationResponse("score: 7\nrecommendation: LEAN_APPROVE\nconfidence: Medium")
	assert.Equal(t, 7, result.Score)
	assert.Equal(t, council.LeanApprove, result.Recommendation)
	assert.Equal(t, council.ConfidenceMedium, result.Confidence)
	assert.False(t, result.Degraded)
}

func TestParseEvaluationResponseRecommendationKeywordFallback(t *testing.T) {
	result := reviewer.ParseEvaluationResponse("SCORE: 6\nRECOMMENDATION: approved")
	assert.Equal(t, council.Approve, result.Recommendation)

	result = reviewer.ParseEvaluationResponse("SCORE: 2\nRECOMMENDATION: rejected")
	assert.Equal(t, council.Reject, result.Recommendation)

	result = reviewer.ParseEvaluationResponse("SCORE: 9\nRECOMMENDATION: strongly_approve")
	assert.Equal(t, council.StrongApprove, result.Recommendation)

	result = reviewer.ParseEvaluationResponse("SCORE: 1\nRECOMMENDATION: strongly_rejected")
	assert.Equal(t, council.StrongReject, result.Recommendation)
}

func TestParseEvaluationResponseMissingMarkers(t *testing.T) {
	result := reviewer.ParseEvaluationResponse("The model rambled and produced no structure at all.")

	assert.Equal(t, 5, result.Score)
	assert.Equal(t, council.LeanReject, result.Recommendation)
	assert.Equal(t, council.ConfidenceMedium, result.Confidence)
	assert.True(t, result.Degraded)
}

func TestParseEvaluationResponseUnknownRecommendationDegrades(t *testing.T) {
	result := reviewer.ParseEvaluationResponse("SCORE: 5\nRECOMMENDATION: maybe\nCONFIDENCE: low")
	assert.Equal(t, council.LeanReject, result.Recommendation)
	assert.True(t, result.Degraded)
	assert.Equal(t, council.ConfidenceLow, result.Confidence)
}

func TestParseEvaluationResponseBulletVariants(t *testing.T) {
	text := `SCORE: 6
RECOMMENDATION: lean_approve
CONFIDENCE: medium

STRENGTHS:
* Starred bullet
- Dashed bullet

CONCERNS:
-
- Real concern
`
	result := reviewer.ParseEvaluationResponse(text)
	assert.Equal(t, []string{"Starred bullet", "Dashed bullet"}, result.Strengths)
	assert.Equal(t, []string{"Real concern"}, result.Concerns)
}

func TestParseDeliberationResponse(t *testing.T) {
	text := `POSITION_CHANGE: weakened

UPDATED_RECOMMENDATION: lean_reject

DELIBERATION_RESPONSE:
The budget analyst's concern about front-loading is valid and I missed it.`

	result := reviewer.ParseDeliberationResponse(text)
	assert.Equal(t, council.PositionWeakened, result.PositionChange)
	assert.Equal(t, council.LeanReject, result.UpdatedRecommendation)
	assert.Contains(t, result.Response, "front-loading")
}

func TestParseDeliberationResponseDefaults(t *testing.T) {
	result := reviewer.ParseDeliberationResponse("nothing structured here")
	assert.Equal(t, council.PositionMaintained, result.PositionChange)
	assert.Empty(t, result.UpdatedRecommendation)

	// Invalid updated recommendation is dropped, not guessed.
	result = reviewer.ParseDeliberationResponse("POSITION_CHANGE: reversed\nUPDATED_RECOMMENDATION: dunno")
	assert.Equal(t, council.PositionReversed, result.PositionChange)
	assert.Empty(t, result.UpdatedRecommendation)
}
