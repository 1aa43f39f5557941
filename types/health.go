package types

import "time"

// HealthStatus is the coarse health grade of one agent.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// AgentHealth is the rolling health snapshot of one agent. Mutated only by
// the health monitor; read-only everywhere else.
type AgentHealth struct {
	AgentID             string        `json:"agent_id"`
	Status              HealthStatus  `json:"status"`
	ResponseTime        time.Duration `json:"response_time"`
	SuccessRate         float64       `json:"success_rate"`
	MeanConfidence      float64       `json:"mean_confidence"`
	ErrorCount          int           `json:"error_count"`
	TotalRequests       int           `json:"total_requests"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	HealthScore         float64       `json:"health_score"`
	LastChecked         time.Time     `json:"last_checked"`
}

// AgentMetric is one observed agent invocation outcome. The workflow
// manager records one per settled attempt chain; the background poller
// records synthetic ones from availability probes.
type AgentMetric struct {
	AgentID    string        `json:"agent_id"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	Confidence float64       `json:"confidence"`
	Timestamp  time.Time     `json:"timestamp"`
}

// AlertType classifies what a health alert is about.
type AlertType string

const (
	AlertPerformance  AlertType = "performance"
	AlertAvailability AlertType = "availability"
	AlertErrorRate    AlertType = "error_rate"
	AlertResponseTime AlertType = "response_time"
)

// AlertSeverity grades how urgent a health alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// SystemHealth is the fleet-wide summary derived from every agent's health
// snapshot and the active alert count.
type SystemHealth struct {
	Status          HealthStatus `json:"status"`
	MeanScore       float64      `json:"mean_score"`
	AgentCount      int          `json:"agent_count"`
	HealthyAgents   int          `json:"healthy_agents"`
	DegradedAgents  int          `json:"degraded_agents"`
	UnhealthyAgents int          `json:"unhealthy_agents"`
	ActiveAlerts    int          `json:"active_alerts"`
	Timestamp       time.Time    `json:"timestamp"`
}

// HealthAlert is a de-duplicated health condition raised for one agent.
// At most one unresolved alert per (agent, type) exists inside the cooldown
// window.
type HealthAlert struct {
	ID         string        `json:"id"`
	AgentID    string        `json:"agent_id"`
	Type       AlertType     `json:"type"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
	Resolved   bool          `json:"resolved"`
}
