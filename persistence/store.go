// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"errors"

	"github.com/veriflow-ai/veriflow/types"
)

// Common errors returned by all store implementations.
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType identifies a storage backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeMongo  StoreType = "mongo"
	StoreTypeSQL    StoreType = "sql"
)

// Store persists verification decisions and the workflow executions that
// produced them. Decisions are keyed by request ID and saving twice for the
// same request overwrites the earlier record.
type Store interface {
	// SaveExecution persists a workflow execution record.
	SaveExecution(ctx context.Context, execution *types.WorkflowExecution) error

	// SaveDecision persists a decision, overwriting any earlier decision
	// for the same request ID.
	SaveDecision(ctx context.Context, decision *types.DecisionResult) error

	// GetDecision retrieves the decision for a request ID.
	// Returns ErrNotFound if no decision is stored.
	GetDecision(ctx context.Context, requestID string) (*types.DecisionResult, error)

	// ListDecisions returns up to limit decisions, newest first. A
	// non-positive limit falls back to the configured default page size.
	ListDecisions(ctx context.Context, limit int) ([]*types.DecisionResult, error)

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
