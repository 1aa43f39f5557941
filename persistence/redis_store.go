// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/types"
)

// RedisStore is a Redis-based implementation of Store.
// Suitable for distributed deployments. Decisions are stored as JSON values
// with a sorted-set index keyed by decision timestamp for newest-first
// listing.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	listLimit int
	logger    *zap.Logger
}

// NewRedisStore creates a new Redis-based store and verifies connectivity.
func NewRedisStore(cfg config.RedisConfig, store config.StoreConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "veriflow:"
	}

	listLimit := store.ListLimit
	if listLimit <= 0 {
		listLimit = 50
	}

	s := &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       store.TTL,
		listLimit: listLimit,
		logger:    logger.With(zap.String("component", "redis_store")),
	}

	s.logger.Info("redis store connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
	)

	return s, nil
}

// decisionKey returns the Redis key for a decision.
func (s *RedisStore) decisionKey(requestID string) string {
	return s.keyPrefix + "decision:" + requestID
}

// executionKey returns the Redis key for a workflow execution.
func (s *RedisStore) executionKey(executionID string) string {
	return s.keyPrefix + "execution:" + executionID
}

// indexKey returns the Redis key of the decision timestamp index.
func (s *RedisStore) indexKey() string {
	return s.keyPrefix + "decisions"
}

// SaveExecution persists a workflow execution record.
func (s *RedisStore) SaveExecution(ctx context.Context, execution *types.WorkflowExecution) error {
	if execution == nil {
		return ErrInvalidInput
	}

	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	return s.client.Set(ctx, s.executionKey(execution.ID), data, s.ttl).Err()
}

// SaveDecision persists a decision, overwriting any earlier decision for
// the same request ID.
func (s *RedisStore) SaveDecision(ctx context.Context, decision *types.DecisionResult) error {
	if decision == nil || decision.RequestID == "" {
		return ErrInvalidInput
	}

	if decision.Timestamp.IsZero() {
		decision.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.decisionKey(decision.RequestID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(decision.Timestamp.UnixNano()),
		Member: decision.RequestID,
	})
	// Values expire individually; refreshing the index TTL on every save
	// lets the whole index disappear once the store goes idle.
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(), s.ttl)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// GetDecision retrieves the decision for a request ID.
func (s *RedisStore) GetDecision(ctx context.Context, requestID string) (*types.DecisionResult, error) {
	data, err := s.client.Get(ctx, s.decisionKey(requestID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var decision types.DecisionResult
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, err
	}

	return &decision, nil
}

// ListDecisions returns up to limit decisions, newest first. Index members
// whose value already expired are removed from the index on the way.
func (s *RedisStore) ListDecisions(ctx context.Context, limit int) ([]*types.DecisionResult, error) {
	if limit <= 0 {
		limit = s.listLimit
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*types.DecisionResult{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.decisionKey(id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*types.DecisionResult, 0, len(ids))
	var stale []interface{}
	for i, val := range vals {
		if val == nil {
			stale = append(stale, ids[i])
			continue
		}
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var decision types.DecisionResult
		if err := json.Unmarshal([]byte(raw), &decision); err != nil {
			s.logger.Warn("skipping undecodable decision",
				zap.String("request_id", ids[i]),
				zap.Error(err),
			)
			continue
		}
		result = append(result, &decision)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.logger.Warn("failed to prune stale index members", zap.Error(err))
		}
	}

	return result, nil
}

// Ping checks if the store is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
