package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Orchestration error codes
const (
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"
	ErrNoCandidateAgents      ErrorCode = "NO_CANDIDATE_AGENTS"
	ErrCircularDependency     ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrAgentInvocation        ErrorCode = "AGENT_INVOCATION_FAILURE"
	ErrAgentTimeout           ErrorCode = "AGENT_TIMEOUT"
	ErrInsufficientEvidence   ErrorCode = "INSUFFICIENT_EVIDENCE"
	ErrWorkflowCancelled      ErrorCode = "WORKFLOW_CANCELLED"
	ErrWorkflowNotFound       ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrAgentAlreadyRegistered ErrorCode = "AGENT_ALREADY_REGISTERED"
	ErrAgentNotFound          ErrorCode = "AGENT_NOT_FOUND"
	ErrAlertNotFound          ErrorCode = "ALERT_NOT_FOUND"
)

// Infrastructure error codes
const (
	ErrStoreFailure       ErrorCode = "STORE_FAILURE"
	ErrCacheMiss          ErrorCode = "CACHE_MISS"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	AgentID    string    `json:"agent_id,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgentID attributes the error to one agent.
func (e *Error) WithAgentID(agentID string) *Error {
	e.AgentID = agentID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code anywhere in its
// chain.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
