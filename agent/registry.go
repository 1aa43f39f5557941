package agent

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/event"
	"github.com/veriflow-ai/veriflow/types"
)

// Registry is the in-memory store of registered agents. It is an explicit
// dependency handed to the router, workflow manager and health monitor —
// never a process-wide global. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
	closed bool

	bus    event.Bus
	logger *zap.Logger
}

// NewRegistry creates an empty registry. bus may be nil; when present,
// registration changes are published as health_update events.
func NewRegistry(logger *zap.Logger, bus event.Bus) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		agents: make(map[string]Agent),
		bus:    bus,
		logger: logger.With(zap.String("component", "agent_registry")),
	}
}

// Register adds an agent. Registering a duplicate ID is an error.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return types.NewError(types.ErrInvalidRequest, "agent is nil")
	}
	if a.ID() == "" {
		return types.NewError(types.ErrInvalidRequest, "agent id is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.NewError(types.ErrServiceUnavailable, "registry is closed")
	}
	if _, exists := r.agents[a.ID()]; exists {
		return types.NewError(types.ErrAgentAlreadyRegistered, "agent already registered: "+a.ID()).
			WithAgentID(a.ID())
	}

	r.agents[a.ID()] = a

	r.logger.Info("agent registered",
		zap.String("agent_id", a.ID()),
		zap.String("name", a.Name()),
		zap.Int("supported_kinds", len(a.SupportedContentKinds())),
	)
	r.publish(a.ID(), "registered")
	return nil
}

// Unregister removes an agent by ID.
func (r *Registry) Unregister(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agentID]; !exists {
		return types.NewError(types.ErrAgentNotFound, "agent not found: "+agentID).
			WithAgentID(agentID)
	}
	delete(r.agents, agentID)

	r.logger.Info("agent unregistered", zap.String("agent_id", agentID))
	r.publish(agentID, "unregistered")
	return nil
}

// Get returns the agent registered under the ID.
func (r *Registry) Get(agentID string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.agents[agentID]
	if !exists {
		return nil, types.NewError(types.ErrAgentNotFound, "agent not found: "+agentID).
			WithAgentID(agentID)
	}
	return a, nil
}

// List returns all registered agents ordered by ID, so callers iterating
// the registry behave deterministically.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID() < agents[j].ID() })
	return agents
}

// IDs returns the sorted IDs of all registered agents.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Close empties the registry and rejects further registrations. Idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.agents = make(map[string]Agent)
	r.logger.Info("agent registry closed")
	return nil
}

func (r *Registry) publish(agentID, action string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(types.NewEvent(types.EventHealthUpdate, "", "", map[string]string{
		"agent_id": agentID,
		"action":   action,
	}))
}
