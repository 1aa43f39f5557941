package types

import "time"

// WorkflowStatus is the lifecycle state of a workflow execution.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
	WorkflowCancelled WorkflowStatus = "cancelled"
	WorkflowTimeout   WorkflowStatus = "timeout"
)

// IsTerminal reports whether the status is final. A terminal workflow never
// changes status again.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowCompleted, WorkflowFailed, WorkflowCancelled, WorkflowTimeout:
		return true
	}
	return false
}

// WorkflowStep is one planned agent invocation within a workflow.
type WorkflowStep struct {
	AgentID    string        `json:"agent_id"`
	DependsOn  []string      `json:"depends_on,omitempty"`
	Timeout    time.Duration `json:"timeout"`
	Retries    int           `json:"retries"`
	MaxRetries int           `json:"max_retries"`
}

// WorkflowExecution records one run of a verification workflow. Once the
// status is terminal, every selected agent appears in exactly one of
// Results or Errors.
type WorkflowExecution struct {
	ID          string                    `json:"id"`
	RequestID   string                    `json:"request_id"`
	Steps       []WorkflowStep            `json:"steps"`
	Status      WorkflowStatus            `json:"status"`
	StartedAt   time.Time                 `json:"started_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	Results     map[string]*AgentResponse `json:"results"`
	Errors      map[string]string         `json:"errors"`
}

// SuccessCount returns the number of agents that produced a response.
func (e *WorkflowExecution) SuccessCount() int { return len(e.Results) }

// FailureCount returns the number of agents that exhausted their retries.
func (e *WorkflowExecution) FailureCount() int { return len(e.Errors) }

// Duration returns the wall-clock execution time, or zero while running.
func (e *WorkflowExecution) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}
