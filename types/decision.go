package types

import "time"

// Certainty is the qualitative grade of a decision, combining confidence,
// consensus strength and evidence quality.
type Certainty string

const (
	CertaintyVeryHigh Certainty = "very_high"
	CertaintyHigh     Certainty = "high"
	CertaintyMedium   Certainty = "medium"
	CertaintyLow      Certainty = "low"
	CertaintyVeryLow  Certainty = "very_low"
)

// Multiplier returns the final-confidence discount applied per certainty
// grade.
func (c Certainty) Multiplier() float64 {
	switch c {
	case CertaintyVeryHigh:
		return 1.0
	case CertaintyHigh:
		return 0.95
	case CertaintyMedium:
		return 0.85
	case CertaintyLow:
		return 0.7
	default:
		return 0.5
	}
}

// RiskLevel grades the operational risk of acting on a decision.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment lists the conditions that make a decision risky and how to
// mitigate them.
type RiskAssessment struct {
	Level       RiskLevel `json:"level"`
	Factors     []string  `json:"factors,omitempty"`
	Mitigations []string  `json:"mitigations,omitempty"`
}

// ConsensusLabel qualifies raw-count agreement between contributors.
type ConsensusLabel string

const (
	ConsensusStrong   ConsensusLabel = "strong"
	ConsensusModerate ConsensusLabel = "moderate"
	ConsensusWeak     ConsensusLabel = "weak"
	ConsensusNone     ConsensusLabel = "none"
)

// ConsensusSummary describes head-count agreement (unweighted) among the
// contributing agents.
type ConsensusSummary struct {
	MajorityVerdict Verdict        `json:"majority_verdict"`
	AgreementRatio  float64        `json:"agreement_ratio"`
	Dissenting      []string       `json:"dissenting,omitempty"`
	Label           ConsensusLabel `json:"label"`
}

// DecisionResult is the terminal artifact of the pipeline: the defensible
// final opinion handed to the report layer.
type DecisionResult struct {
	RequestID       string           `json:"request_id"`
	Verdict         Verdict          `json:"verdict"`
	Confidence      float64          `json:"confidence"`
	Certainty       Certainty        `json:"certainty"`
	Risk            RiskAssessment   `json:"risk"`
	Consensus       ConsensusSummary `json:"consensus"`
	Recommendations []string         `json:"recommendations,omitempty"`
	Reasoning       string           `json:"reasoning,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}
