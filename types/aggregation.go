package types

import "time"

// AgentContribution is the per-agent view used inside aggregation: what the
// agent said and how much its opinion counted. Derived, never persisted.
type AgentContribution struct {
	AgentID       string  `json:"agent_id"`
	Verdict       Verdict `json:"verdict"`
	Confidence    float64 `json:"confidence"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
	HealthScore   float64 `json:"health_score"`
}

// AggregationResult is the weighted consensus over all successful agent
// responses of one workflow.
type AggregationResult struct {
	RequestID        string              `json:"request_id"`
	WorkflowID       string              `json:"workflow_id"`
	ConsensusVerdict Verdict             `json:"consensus_verdict"`
	RawConfidence    float64             `json:"raw_confidence"`
	Confidence       float64             `json:"confidence"`
	Evidence         []Evidence          `json:"evidence,omitempty"`
	Contributions    []AgentContribution `json:"contributions,omitempty"`

	TotalAgents      int     `json:"total_agents"`
	SuccessfulAgents int     `json:"successful_agents"`
	FailedAgents     int     `json:"failed_agents"`
	MeanConfidence   float64 `json:"mean_confidence"`
	ConsensusStrength float64 `json:"consensus_strength"`
	EvidenceQuality  float64 `json:"evidence_quality"`

	Timestamp time.Time `json:"timestamp"`
}
