// Package agent defines the verification agent contract and the registry
// that owns agent lifecycle. It sits directly above types and has no other
// engine dependencies.
package agent

import (
	"context"
	"time"

	"github.com/veriflow-ai/veriflow/types"
)

// Agent is the capability contract every verification worker implements.
// The engine treats agents as opaque: how an agent reaches its verdict
// (heuristic, model, third-party call) is invisible to orchestration.
// Implementations must be safe for concurrent use; the workflow manager
// invokes Analyze from multiple goroutines.
type Agent interface {
	// ID returns the unique agent identifier used in routing tables.
	ID() string

	// Name returns a human-readable display name.
	Name() string

	// Analyze renders an opinion about the request. Implementations should
	// honor ctx cancellation; the engine enforces per-attempt timeouts on
	// top of it.
	Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error)

	// Health reports the agent's own view of its health.
	Health(ctx context.Context) types.AgentHealth

	// IsAvailable reports whether the agent can accept work right now.
	IsAvailable(ctx context.Context) bool

	// SupportedContentKinds lists the content kinds the agent can analyze.
	SupportedContentKinds() []types.ContentKind

	// MaxProcessingTime is the agent's declared worst-case latency, used
	// by routing time estimates.
	MaxProcessingTime() time.Duration
}

// Supports reports whether the agent declares support for the given kind.
func Supports(a Agent, kind types.ContentKind) bool {
	for _, k := range a.SupportedContentKinds() {
		if k == kind {
			return true
		}
	}
	return false
}
