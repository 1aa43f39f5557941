// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/types"
)

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	decisions  map[string]*memoryEntry   // requestID -> entry
	executions map[string]*memoryExecRow // executionID -> row
	ttl        time.Duration
	listLimit  int
	closed     bool
	done       chan struct{}
}

type memoryEntry struct {
	decision *types.DecisionResult
	storedAt time.Time
}

type memoryExecRow struct {
	execution *types.WorkflowExecution
	storedAt  time.Time
}

// NewMemoryStore creates a new in-memory store. When cfg.TTL is positive a
// background sweeper evicts expired entries; reads also check expiry so a
// stale entry is never returned between sweeps.
func NewMemoryStore(cfg config.StoreConfig) *MemoryStore {
	listLimit := cfg.ListLimit
	if listLimit <= 0 {
		listLimit = 50
	}

	store := &MemoryStore{
		decisions:  make(map[string]*memoryEntry),
		executions: make(map[string]*memoryExecRow),
		ttl:        cfg.TTL,
		listLimit:  listLimit,
		done:       make(chan struct{}),
	}

	if cfg.TTL > 0 {
		go store.cleanupLoop(cfg.TTL)
	}

	return store
}

// SaveExecution persists a workflow execution record.
func (s *MemoryStore) SaveExecution(ctx context.Context, execution *types.WorkflowExecution) error {
	if execution == nil {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	s.executions[execution.ID] = &memoryExecRow{
		execution: execution,
		storedAt:  time.Now(),
	}

	return nil
}

// SaveDecision persists a decision, overwriting any earlier decision for
// the same request ID.
func (s *MemoryStore) SaveDecision(ctx context.Context, decision *types.DecisionResult) error {
	if decision == nil || decision.RequestID == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if decision.Timestamp.IsZero() {
		decision.Timestamp = time.Now().UTC()
	}

	s.decisions[decision.RequestID] = &memoryEntry{
		decision: decision,
		storedAt: time.Now(),
	}

	return nil
}

// GetDecision retrieves the decision for a request ID.
func (s *MemoryStore) GetDecision(ctx context.Context, requestID string) (*types.DecisionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	entry, ok := s.decisions[requestID]
	if !ok || s.expired(entry.storedAt) {
		return nil, ErrNotFound
	}

	return entry.decision, nil
}

// ListDecisions returns up to limit decisions, newest first by decision
// timestamp, matching the ordering of the indexed backends.
func (s *MemoryStore) ListDecisions(ctx context.Context, limit int) ([]*types.DecisionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = s.listLimit
	}

	result := make([]*types.DecisionResult, 0, len(s.decisions))
	for _, entry := range s.decisions {
		if s.expired(entry.storedAt) {
			continue
		}
		result = append(result, entry.decision)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Ping checks if the store is healthy.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close closes the store. Subsequent calls are no-ops.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

func (s *MemoryStore) expired(storedAt time.Time) bool {
	return s.ttl > 0 && time.Since(storedAt) > s.ttl
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired removes expired decisions and executions so the maps stay
// bounded even without reads.
func (s *MemoryStore) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	for id, entry := range s.decisions {
		if s.expired(entry.storedAt) {
			delete(s.decisions, id)
		}
	}

	for id, row := range s.executions {
		if s.expired(row.storedAt) {
			delete(s.executions, id)
		}
	}
}
