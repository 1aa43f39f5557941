package types

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies orchestration lifecycle events.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventAgentResponse     EventType = "agent_response"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventError             EventType = "error"
	EventHealthUpdate      EventType = "health_update"
)

// Event is one entry of the ordered observability stream emitted by the
// engine. Payload is event-type specific and must be JSON-serializable.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	RequestID  string    `json:"request_id,omitempty"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// NewEvent stamps identity and time.
func NewEvent(eventType EventType, requestID, workflowID string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		RequestID:  requestID,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// WorkflowStartedPayload accompanies EventWorkflowStarted.
type WorkflowStartedPayload struct {
	AgentIDs []string `json:"agent_ids"`
	Waves    int      `json:"waves"`
	Priority Priority `json:"priority"`
}

// AgentResponsePayload accompanies EventAgentResponse, one per agent
// that settled successfully.
type AgentResponsePayload struct {
	AgentID    string        `json:"agent_id"`
	Verdict    Verdict       `json:"verdict"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency"`
	Attempts   int           `json:"attempts"`
}

// AgentErrorPayload accompanies EventError, one per agent that
// exhausted its retries.
type AgentErrorPayload struct {
	AgentID  string `json:"agent_id"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
}

// WorkflowCompletedPayload accompanies EventWorkflowCompleted for every
// terminal status, not only completed.
type WorkflowCompletedPayload struct {
	Status    WorkflowStatus `json:"status"`
	Successes int            `json:"successes"`
	Failures  int            `json:"failures"`
	Duration  time.Duration  `json:"duration"`
}

// HealthUpdatePayload accompanies EventHealthUpdate raised by the health
// monitor when an alert fires or resolves.
type HealthUpdatePayload struct {
	AgentID string       `json:"agent_id"`
	Status  HealthStatus `json:"status"`
	Score   float64      `json:"score"`
	Alert   *HealthAlert `json:"alert,omitempty"`
}
