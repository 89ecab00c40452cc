// Package council defines the domain model for the grant council:
// applications, team profiles, reviewer evaluations, deliberations,
// decisions, learned observations, and outcomes.
package council

import (
	"time"
)

// DecisionStatus represents the lifecycle status of an application.
type DecisionStatus string

const (
	StatusPending       DecisionStatus = "pending"
	StatusParseFailed   DecisionStatus = "parse_failed"
	StatusAutoApproved  DecisionStatus = "auto_approved"
	StatusAutoRejected  DecisionStatus = "auto_rejected"
	StatusNeedsReview   DecisionStatus = "needs_review"
	StatusHumanApproved DecisionStatus = "human_approved"
	StatusHumanRejected DecisionStatus = "human_rejected"
)

// Terminal reports whether the status admits no further pipeline stages.
func (s DecisionStatus) Terminal() bool {
	switch s {
	case StatusParseFailed, StatusAutoApproved, StatusAutoRejected,
		StatusHumanApproved, StatusHumanRejected:
		return true
	}
	return false
}

// Recommendation is one of the six ordered recommendation levels a
// reviewer can produce.
type Recommendation string

const (
	StrongApprove Recommendation = "strong_approve"
	Approve       Recommendation = "approve"
	LeanApprove   Recommendation = "lean_approve"
	LeanReject    Recommendation = "lean_reject"
	Reject        Recommendation = "reject"
	StrongReject  Recommendation = "strong_reject"
)

// Recommendations lists all valid levels, strongest approve first.
var Recommendations = []Recommendation{
	StrongApprove, Approve, LeanApprove, LeanReject, Reject, StrongReject,
}

// Valid reports whether r is one of the six levels.
func (r Recommendation) Valid() bool {
	for _, v := range Recommendations {
		if r == v {
			return true
		}
	}
	return false
}

// IsApprove reports whether r falls in the approve-leaning bucket.
func (r Recommendation) IsApprove() bool {
	return r == StrongApprove || r == Approve || r == LeanApprove
}

// IsReject reports whether r falls in the reject-leaning bucket.
func (r Recommendation) IsReject() bool {
	return r == LeanReject || r == Reject || r == StrongReject
}

// ConfidenceLevel expresses how certain a reviewer or observation is.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Valid reports whether c is a recognized confidence level.
func (c ConfidenceLevel) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// rank orders confidence levels for sorting, higher is more confident.
func (c ConfidenceLevel) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// MoreConfidentThan reports whether c ranks above other.
func (c ConfidenceLevel) MoreConfidentThan(other ConfidenceLevel) bool {
	return c.rank() > other.rank()
}

// ObservationStatus is the lifecycle status of a learned observation.
// Transitions are draft -> reviewed -> active; deprecated is reachable
// from any status and is one-way.
type ObservationStatus string

const (
	ObservationDraft      ObservationStatus = "draft"
	ObservationReviewed   ObservationStatus = "reviewed"
	ObservationActive     ObservationStatus = "active"
	ObservationDeprecated ObservationStatus = "deprecated"
)

// TeamMember is a member of an applicant team.
type TeamMember struct {
	Name            string            `json:"name"`
	Role            string            `json:"role,omitempty"`
	WalletAddresses []string          `json:"wallet_addresses,omitempty"`
	Aliases         []string          `json:"aliases,omitempty"`
	SocialLinks     map[string]string `json:"social_links,omitempty"`
}

// TeamProfile aggregates one applicant's history across applications.
// It is updated only by award/outcome bookkeeping, never by the
// evaluation pipeline.
type TeamProfile struct {
	ID            string       `json:"id"`
	CanonicalName string       `json:"canonical_name"`
	Aliases       []string     `json:"aliases,omitempty"`
	Members       []TeamMember `json:"members,omitempty"`
	WalletAddrs   []string     `json:"wallet_addresses,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`

	ApplicationIDs  []string `json:"application_ids,omitempty"`
	GrantsReceived  int      `json:"grants_received"`
	GrantsCompleted int      `json:"grants_completed"`
	GrantsFailed    int      `json:"grants_failed"`
	TotalFunding    float64  `json:"total_funding_received"`

	ReputationNotes string `json:"reputation_notes,omitempty"`
}

// TeamMatch is the result of identity resolution for an application.
type TeamMatch struct {
	MatchedTeamID        string   `json:"matched_team_id,omitempty"`
	Confidence           float64  `json:"match_confidence"`
	MatchType            string   `json:"match_type"` // "exact_wallet", "fuzzy_name", "member_overlap", "none"
	RequiresConfirmation bool     `json:"requires_confirmation"`
	Evidence             []string `json:"match_evidence,omitempty"`
}

// BudgetItem is a line item in an application budget.
type BudgetItem struct {
	Category      string  `json:"category"`
	Description   string  `json:"description,omitempty"`
	Amount        float64 `json:"amount"`
	Justification string  `json:"justification,omitempty"`
}

// Milestone is a project milestone in an application.
type Milestone struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Deliverables      []string `json:"deliverables,omitempty"`
	Timeline          string   `json:"timeline,omitempty"`
	FundingPercentage float64  `json:"funding_percentage,omitempty"`
}

// ParsedApplication is the structured record produced by the extractor.
// Downstream components consume it read-only.
type ParsedApplication struct {
	ProjectName        string `json:"project_name"`
	ProjectSummary     string `json:"project_summary"`
	ProjectDescription string `json:"project_description"`

	TeamName       string       `json:"team_name"`
	TeamMembers    []TeamMember `json:"team_members,omitempty"`
	TeamBackground string       `json:"team_background,omitempty"`
	PriorWork      string       `json:"prior_work,omitempty"`
	WalletAddress  string       `json:"wallet_address,omitempty"`

	RequestedAmount float64      `json:"requested_amount"`
	BudgetBreakdown []BudgetItem `json:"budget_breakdown,omitempty"`

	Milestones       []Milestone `json:"milestones,omitempty"`
	Timeline         string      `json:"timeline,omitempty"`
	Category         string      `json:"category,omitempty"`
	EcosystemBenefit string      `json:"ecosystem_benefit,omitempty"`

	GitHubURL      string            `json:"github_url,omitempty"`
	WebsiteURL     string            `json:"website_url,omitempty"`
	SocialLinks    map[string]string `json:"social_links,omitempty"`
	AdditionalInfo string            `json:"additional_info,omitempty"`
}

// Application is a submitted grant application. RawContent is immutable
// after intake; Status advances once per pipeline stage.
type Application struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Source   string `json:"source"` // "webhook", "api", "manual"
	SourceID string `json:"source_id,omitempty"`

	RawContent string             `json:"raw_content"`
	Parsed     *ParsedApplication `json:"parsed,omitempty"`

	TeamMatch     *TeamMatch `json:"team_match,omitempty"`
	MatchedTeamID string     `json:"matched_team_id,omitempty"`

	Status            DecisionStatus `json:"status"`
	FinalDecision     string         `json:"final_decision,omitempty"`
	DecisionRationale string         `json:"decision_rationale,omitempty"`
	DecidedAt         *time.Time     `json:"decided_at,omitempty"`
	DecidedBy         string         `json:"decided_by,omitempty"` // "auto" or "human"

	WasOverridden  bool   `json:"was_overridden,omitempty"`
	OverrideReason string `json:"override_reason,omitempty"`
}

// Evaluation is one reviewer's assessment of one application. Created in
// stage 2; the revision fields are set at most once during deliberation.
type Evaluation struct {
	ID            string    `json:"id"`
	ReviewerID    string    `json:"reviewer_id"`
	ApplicationID string    `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`

	Score          int             `json:"score"` // 1-10
	Recommendation Recommendation  `json:"recommendation"`
	Confidence     ConfidenceLevel `json:"confidence"`

	Rationale string   `json:"rationale"`
	Strengths []string `json:"strengths,omitempty"`
	Concerns  []string `json:"concerns,omitempty"`
	Questions []string `json:"questions,omitempty"`

	ObservationsUsed  []string `json:"observations_used,omitempty"`
	SimilarReferenced []string `json:"similar_applications_referenced,omitempty"`

	// Degraded marks evaluations where the reviewer reply was missing or
	// malformed and one or more fields fell back to defaults.
	Degraded bool `json:"degraded,omitempty"`

	RevisedScore          int            `json:"revised_score,omitempty"`
	RevisedRecommendation Recommendation `json:"revised_recommendation,omitempty"`
	RevisionRationale     string         `json:"revision_rationale,omitempty"`
	PositionChanged       bool           `json:"position_changed,omitempty"`
}

// FinalRecommendation returns the revised recommendation when the
// reviewer changed position during deliberation, else the original.
func (e *Evaluation) FinalRecommendation() Recommendation {
	if e.RevisedRecommendation != "" {
		return e.RevisedRecommendation
	}
	return e.Recommendation
}

// FinalRationale returns the revision rationale if present, else the
// original rationale.
func (e *Evaluation) FinalRationale() string {
	if e.RevisionRationale != "" {
		return e.RevisionRationale
	}
	return e.Rationale
}

// Clone returns a deep-enough copy for deliberation updates: slice
// fields are copied so revisions never alias the stage-2 record.
func (e *Evaluation) Clone() *Evaluation {
	c := *e
	c.Strengths = append([]string(nil), e.Strengths...)
	c.Concerns = append([]string(nil), e.Concerns...)
	c.Questions = append([]string(nil), e.Questions...)
	c.ObservationsUsed = append([]string(nil), e.ObservationsUsed...)
	c.SimilarReferenced = append([]string(nil), e.SimilarReferenced...)
	return &c
}

// PositionChange classifies how a reviewer's position moved during
// deliberation.
type PositionChange string

const (
	PositionMaintained   PositionChange = "maintained"
	PositionStrengthened PositionChange = "strengthened"
	PositionWeakened     PositionChange = "weakened"
	PositionReversed     PositionChange = "reversed"
)

// DeliberationRound records one reviewer's deliberation in one round.
type DeliberationRound struct {
	RoundNumber int    `json:"round_number"`
	ReviewerID  string `json:"reviewer_id"`

	PeerSummary string `json:"peer_summary"`

	Response              string         `json:"response"`
	PositionChange        PositionChange `json:"position_change"`
	UpdatedRecommendation Recommendation `json:"updated_recommendation,omitempty"`
}

// Deliberation is the full deliberation record for an application.
type Deliberation struct {
	ApplicationID string              `json:"application_id"`
	Rounds        []DeliberationRound `json:"rounds"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Vote is one reviewer's final vote as tallied in stage 4.
type Vote struct {
	ReviewerID     string          `json:"reviewer_id"`
	Recommendation Recommendation  `json:"recommendation"`
	Confidence     ConfidenceLevel `json:"confidence"`
	Rationale      string          `json:"rationale"`
}

// Decision is the council's collective decision. Immutable once
// created; human overrides are recorded as separate learning events.
type Decision struct {
	ApplicationID string    `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`

	Votes []Vote `json:"votes"`

	Unanimous             bool           `json:"unanimous"`
	ConsensusStrength     float64        `json:"consensus_strength"`
	PrimaryRecommendation Recommendation `json:"primary_recommendation"`

	AutoExecute         bool   `json:"auto_execute"`
	RequiresHumanReview bool   `json:"requires_human_review"`
	RoutingReason       string `json:"routing_reason"`

	Summary      string   `json:"summary"`
	KeyConcerns  []string `json:"key_concerns,omitempty"`
	KeyStrengths []string `json:"key_strengths,omitempty"`
}

// Observation is a learned pattern owned by exactly one reviewer
// persona. EvidenceCount always equals len(SupportingApplicationIDs).
type Observation struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Pattern string `json:"pattern"`
	Context string `json:"context,omitempty"`

	SupportingApplicationIDs []string `json:"supporting_application_ids"`
	EvidenceCount            int      `json:"evidence_count"`

	Confidence ConfidenceLevel   `json:"confidence"`
	Tags       []string          `json:"tags,omitempty"`
	Status     ObservationStatus `json:"status"`

	Validations   int `json:"validations"`
	Invalidations int `json:"invalidations"`
}

// MilestoneOutcome records how one milestone turned out.
type MilestoneOutcome struct {
	MilestoneIndex int        `json:"milestone_index"`
	Completed      bool       `json:"completed"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// GrantOutcome is the recorded real-world result of a funded grant.
type GrantOutcome struct {
	ApplicationID string    `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`

	Completed            bool    `json:"completed"`
	CompletionPercentage float64 `json:"completion_percentage"`

	MilestoneOutcomes []MilestoneOutcome `json:"milestone_outcomes,omitempty"`
	ImpactAssessment  string             `json:"impact_assessment,omitempty"`
	QualityScore      int                `json:"quality_score,omitempty"`

	Notes             string   `json:"notes,omitempty"`
	IssuesEncountered []string `json:"issues_encountered,omitempty"`
}

// LearningEventType distinguishes the triggers of the learning loop.
type LearningEventType string

const (
	EventOverride LearningEventType = "override"
	EventOutcome  LearningEventType = "outcome"
)

// LearningEvent is an override or outcome occurrence that feeds the
// learning loop. Marked processed once consumed.
type LearningEvent struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventType     LearningEventType `json:"event_type"`
	ApplicationID string            `json:"application_id"`

	Description string            `json:"description"`
	Context     map[string]string `json:"context,omitempty"`

	GeneratedObservations []string `json:"generated_observations,omitempty"`
	Processed             bool     `json:"processed"`
}
