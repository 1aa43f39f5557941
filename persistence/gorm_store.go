// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/types"
)

// decisionRecord is the relational row for a decision. The queryable columns
// are denormalized; the full decision is kept as a JSON payload so the row
// survives schema drift in the decision shape.
type decisionRecord struct {
	RequestID  string    `gorm:"column:request_id;primaryKey;size:64"`
	Verdict    string    `gorm:"column:verdict;size:32;index"`
	Certainty  string    `gorm:"column:certainty;size:16"`
	Confidence float64   `gorm:"column:confidence"`
	RiskLevel  string    `gorm:"column:risk_level;size:16"`
	Payload    []byte    `gorm:"column:payload"`
	CreatedAt  time.Time `gorm:"column:created_at;index"`
}

// TableName keeps the table in sync with the shipped migrations.
func (decisionRecord) TableName() string { return "verification_decisions" }

// executionRecord is the relational row for a workflow execution.
type executionRecord struct {
	ID          string     `gorm:"column:id;primaryKey;size:64"`
	RequestID   string     `gorm:"column:request_id;size:64;index"`
	Status      string     `gorm:"column:status;size:16"`
	Payload     []byte     `gorm:"column:payload"`
	StartedAt   time.Time  `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
}

// TableName keeps the table in sync with the shipped migrations.
func (executionRecord) TableName() string { return "verification_executions" }

// GormStore is a relational implementation of Store on top of GORM.
// It works with any dialect the connection pool supports. The schema is
// managed by the shipped migrations, not by the store itself.
type GormStore struct {
	db        *gorm.DB
	listLimit int
	logger    *zap.Logger
}

// NewGormStore creates a new relational store over an open GORM handle.
func NewGormStore(db *gorm.DB, cfg config.StoreConfig, logger *zap.Logger) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	listLimit := cfg.ListLimit
	if listLimit <= 0 {
		listLimit = 50
	}

	return &GormStore{
		db:        db,
		listLimit: listLimit,
		logger:    logger.With(zap.String("component", "sql_store")),
	}, nil
}

// SaveExecution persists a workflow execution record.
func (s *GormStore) SaveExecution(ctx context.Context, execution *types.WorkflowExecution) error {
	if execution == nil {
		return ErrInvalidInput
	}

	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	payload, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	rec := executionRecord{
		ID:          execution.ID,
		RequestID:   execution.RequestID,
		Status:      string(execution.Status),
		Payload:     payload,
		StartedAt:   execution.StartedAt,
		CompletedAt: execution.CompletedAt,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// SaveDecision persists a decision, overwriting any earlier decision for
// the same request ID.
func (s *GormStore) SaveDecision(ctx context.Context, decision *types.DecisionResult) error {
	if decision == nil || decision.RequestID == "" {
		return ErrInvalidInput
	}

	if decision.Timestamp.IsZero() {
		decision.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	rec := decisionRecord{
		RequestID:  decision.RequestID,
		Verdict:    string(decision.Verdict),
		Certainty:  string(decision.Certainty),
		Confidence: decision.Confidence,
		RiskLevel:  string(decision.Risk.Level),
		Payload:    payload,
		CreatedAt:  decision.Timestamp,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
}

// GetDecision retrieves the decision for a request ID.
func (s *GormStore) GetDecision(ctx context.Context, requestID string) (*types.DecisionResult, error) {
	var rec decisionRecord
	err := s.db.WithContext(ctx).First(&rec, "request_id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var decision types.DecisionResult
	if err := json.Unmarshal(rec.Payload, &decision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision payload: %w", err)
	}

	return &decision, nil
}

// ListDecisions returns up to limit decisions, newest first.
func (s *GormStore) ListDecisions(ctx context.Context, limit int) ([]*types.DecisionResult, error) {
	if limit <= 0 {
		limit = s.listLimit
	}

	var recs []decisionRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	result := make([]*types.DecisionResult, 0, len(recs))
	for _, rec := range recs {
		var decision types.DecisionResult
		if err := json.Unmarshal(rec.Payload, &decision); err != nil {
			s.logger.Warn("skipping undecodable decision row",
				zap.String("request_id", rec.RequestID),
				zap.Error(err),
			)
			continue
		}
		result = append(result, &decision)
	}

	return result, nil
}

// Ping checks if the store is healthy.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
