package types

import "time"

// EvidenceType classifies a piece of supporting evidence.
type EvidenceType string

const (
	EvidenceSource         EvidenceType = "source"
	EvidenceFactCheck      EvidenceType = "fact_check"
	EvidenceExpertOpinion  EvidenceType = "expert_opinion"
	EvidenceDataAnalysis   EvidenceType = "data_analysis"
	EvidenceCrossReference EvidenceType = "cross_reference"
)

// Evidence is one supporting item attached to an agent response.
// Reliability is normalized to [0,1].
type Evidence struct {
	Type        EvidenceType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Reliability float64      `json:"reliability"`
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
}

// AgentResponse is one agent's opinion about one request. Produced at most
// once per agent per workflow; owned by the workflow until handed to
// aggregation.
type AgentResponse struct {
	AgentID    string            `json:"agent_id"`
	Verdict    Verdict           `json:"verdict"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Evidence   []Evidence        `json:"evidence,omitempty"`
	Latency    time.Duration     `json:"latency"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
