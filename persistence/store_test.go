// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/types"
)

func sampleDecision(requestID string, ts time.Time) *types.DecisionResult {
	return &types.DecisionResult{
		RequestID:  requestID,
		Verdict:    types.VerdictVerifiedTrue,
		Confidence: 0.87,
		Certainty:  types.CertaintyHigh,
		Risk: types.RiskAssessment{
			Level:   types.RiskLow,
			Factors: []string{"minor dissent"},
		},
		Consensus: types.ConsensusSummary{
			MajorityVerdict: types.VerdictVerifiedTrue,
			AgreementRatio:  0.75,
			Dissenting:      []string{"fact-check"},
			Label:           types.ConsensusStrong,
		},
		Recommendations: []string{"publish with attribution"},
		Reasoning:       "3 of 4 contributors agree",
		Timestamp:       ts,
	}
}

func sampleExecution(requestID string) *types.WorkflowExecution {
	completed := time.Now().UTC()
	return &types.WorkflowExecution{
		ID:        "exec-" + requestID,
		RequestID: requestID,
		Steps: []types.WorkflowStep{
			{AgentID: "content-analysis", Timeout: 30 * time.Second, MaxRetries: 2},
			{AgentID: "fact-check", DependsOn: []string{"content-analysis"}, Timeout: 30 * time.Second, MaxRetries: 2},
		},
		Status:      types.WorkflowCompleted,
		StartedAt:   completed.Add(-2 * time.Second),
		CompletedAt: &completed,
		Results: map[string]*types.AgentResponse{
			"content-analysis": {AgentID: "content-analysis", Verdict: types.VerdictVerifiedTrue, Confidence: 0.9},
		},
		Errors: map[string]string{
			"fact-check": "AGENT_TIMEOUT: step timed out",
		},
	}
}

// TestMemoryStore tests the in-memory store
func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(config.StoreConfig{ListLimit: 50})
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetDecision", func(t *testing.T) {
		decision := sampleDecision("req-1", base)

		if err := store.SaveDecision(ctx, decision); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		retrieved, err := store.GetDecision(ctx, "req-1")
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}

		if retrieved.Verdict != decision.Verdict {
			t.Errorf("Verdict mismatch: got %s, want %s", retrieved.Verdict, decision.Verdict)
		}
		if retrieved.Consensus.Label != types.ConsensusStrong {
			t.Errorf("Consensus label mismatch: got %s", retrieved.Consensus.Label)
		}
	})

	t.Run("GetMissingDecision", func(t *testing.T) {
		_, err := store.GetDecision(ctx, "no-such-request")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := store.SaveDecision(ctx, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for nil decision, got %v", err)
		}
		if err := store.SaveDecision(ctx, &types.DecisionResult{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for empty request ID, got %v", err)
		}
		if err := store.SaveExecution(ctx, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for nil execution, got %v", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		// Insert out of chronological order; listing sorts by timestamp.
		if err := store.SaveDecision(ctx, sampleDecision("req-old", base.Add(-2*time.Minute))); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}
		if err := store.SaveDecision(ctx, sampleDecision("req-new", base.Add(2*time.Minute))); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}
		if err := store.SaveDecision(ctx, sampleDecision("req-mid", base.Add(time.Minute))); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		decisions, err := store.ListDecisions(ctx, 0)
		if err != nil {
			t.Fatalf("ListDecisions failed: %v", err)
		}

		if len(decisions) != 4 {
			t.Fatalf("Expected 4 decisions, got %d", len(decisions))
		}
		if decisions[0].RequestID != "req-new" || decisions[1].RequestID != "req-mid" {
			t.Errorf("Wrong order: got %s, %s first", decisions[0].RequestID, decisions[1].RequestID)
		}
		if decisions[3].RequestID != "req-old" {
			t.Errorf("Expected req-old last, got %s", decisions[3].RequestID)
		}

		limited, err := store.ListDecisions(ctx, 2)
		if err != nil {
			t.Fatalf("ListDecisions with limit failed: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("Expected 2 decisions with limit, got %d", len(limited))
		}
	})

	t.Run("OverwriteDecision", func(t *testing.T) {
		first := sampleDecision("req-dup", base)
		if err := store.SaveDecision(ctx, first); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		second := sampleDecision("req-dup", base.Add(time.Minute))
		second.Verdict = types.VerdictMisleading
		if err := store.SaveDecision(ctx, second); err != nil {
			t.Fatalf("SaveDecision overwrite failed: %v", err)
		}

		retrieved, err := store.GetDecision(ctx, "req-dup")
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}
		if retrieved.Verdict != types.VerdictMisleading {
			t.Errorf("Expected overwritten verdict, got %s", retrieved.Verdict)
		}

		decisions, err := store.ListDecisions(ctx, 0)
		if err != nil {
			t.Fatalf("ListDecisions failed: %v", err)
		}
		seen := 0
		for _, d := range decisions {
			if d.RequestID == "req-dup" {
				seen++
			}
		}
		if seen != 1 {
			t.Errorf("Expected a single entry for req-dup, got %d", seen)
		}
	})

	t.Run("SaveExecution", func(t *testing.T) {
		execution := sampleExecution("req-1")
		if err := store.SaveExecution(ctx, execution); err != nil {
			t.Fatalf("SaveExecution failed: %v", err)
		}

		anonymous := sampleExecution("req-2")
		anonymous.ID = ""
		if err := store.SaveExecution(ctx, anonymous); err != nil {
			t.Fatalf("SaveExecution failed: %v", err)
		}
		if anonymous.ID == "" {
			t.Error("Expected a generated execution ID")
		}
	})

	t.Run("StampsZeroTimestamp", func(t *testing.T) {
		decision := sampleDecision("req-stamp", time.Time{})
		if err := store.SaveDecision(ctx, decision); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}
		if decision.Timestamp.IsZero() {
			t.Error("Expected the store to stamp a zero timestamp")
		}
	})

	t.Run("ClosedStore", func(t *testing.T) {
		closed := NewMemoryStore(config.StoreConfig{})
		if err := closed.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := closed.Close(); err != nil {
			t.Errorf("Second Close should be a no-op, got %v", err)
		}

		if err := closed.SaveDecision(ctx, sampleDecision("req-x", base)); !errors.Is(err, ErrStoreClosed) {
			t.Errorf("Expected ErrStoreClosed, got %v", err)
		}
		if _, err := closed.GetDecision(ctx, "req-x"); !errors.Is(err, ErrStoreClosed) {
			t.Errorf("Expected ErrStoreClosed, got %v", err)
		}
		if _, err := closed.ListDecisions(ctx, 0); !errors.Is(err, ErrStoreClosed) {
			t.Errorf("Expected ErrStoreClosed, got %v", err)
		}
		if err := closed.Ping(ctx); !errors.Is(err, ErrStoreClosed) {
			t.Errorf("Expected ErrStoreClosed, got %v", err)
		}
	})
}

// TestMemoryStoreTTL tests expiry in the in-memory store
func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(config.StoreConfig{TTL: 30 * time.Millisecond})
	defer store.Close()

	ctx := context.Background()

	if err := store.SaveDecision(ctx, sampleDecision("req-ttl", time.Now().UTC())); err != nil {
		t.Fatalf("SaveDecision failed: %v", err)
	}
	if err := store.SaveExecution(ctx, sampleExecution("req-ttl")); err != nil {
		t.Fatalf("SaveExecution failed: %v", err)
	}

	if _, err := store.GetDecision(ctx, "req-ttl"); err != nil {
		t.Fatalf("GetDecision before expiry failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := store.GetDecision(ctx, "req-ttl"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}

	decisions, err := store.ListDecisions(ctx, 0)
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(decisions) != 0 {
		t.Errorf("Expected no decisions after expiry, got %d", len(decisions))
	}

	store.sweepExpired()
	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.decisions) != 0 {
		t.Errorf("Expected sweep to drop expired decisions, %d left", len(store.decisions))
	}
	if len(store.executions) != 0 {
		t.Errorf("Expected sweep to drop expired executions, %d left", len(store.executions))
	}
}

func setupRedisStore(t *testing.T, store config.StoreConfig) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis failed to start: %v", err)
	}

	s, err := NewRedisStore(
		config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"},
		store,
		zap.NewNop(),
	)
	if err != nil {
		mr.Close()
		t.Fatalf("NewRedisStore failed: %v", err)
	}

	return mr, s
}

// TestRedisStore tests the Redis-based store against miniredis
func TestRedisStore(t *testing.T) {
	mr, store := setupRedisStore(t, config.StoreConfig{ListLimit: 10})
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetDecision", func(t *testing.T) {
		decision := sampleDecision("req-1", base)

		if err := store.SaveDecision(ctx, decision); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		retrieved, err := store.GetDecision(ctx, "req-1")
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}

		if retrieved.Verdict != decision.Verdict {
			t.Errorf("Verdict mismatch: got %s, want %s", retrieved.Verdict, decision.Verdict)
		}
		if retrieved.Confidence != decision.Confidence {
			t.Errorf("Confidence mismatch: got %f, want %f", retrieved.Confidence, decision.Confidence)
		}
		if retrieved.Risk.Level != types.RiskLow {
			t.Errorf("Risk level mismatch: got %s", retrieved.Risk.Level)
		}
		if len(retrieved.Consensus.Dissenting) != 1 || retrieved.Consensus.Dissenting[0] != "fact-check" {
			t.Errorf("Dissenting mismatch: got %v", retrieved.Consensus.Dissenting)
		}
	})

	t.Run("GetMissingDecision", func(t *testing.T) {
		_, err := store.GetDecision(ctx, "no-such-request")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := store.SaveDecision(ctx, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for nil decision, got %v", err)
		}
		if err := store.SaveExecution(ctx, nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for nil execution, got %v", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		for i, id := range []string{"req-a", "req-b", "req-c"} {
			decision := sampleDecision(id, base.Add(time.Duration(i)*time.Minute))
			if err := store.SaveDecision(ctx, decision); err != nil {
				t.Fatalf("SaveDecision failed: %v", err)
			}
		}

		decisions, err := store.ListDecisions(ctx, 3)
		if err != nil {
			t.Fatalf("ListDecisions failed: %v", err)
		}
		if len(decisions) != 3 {
			t.Fatalf("Expected 3 decisions, got %d", len(decisions))
		}
		if decisions[0].RequestID != "req-c" || decisions[2].RequestID != "req-a" {
			t.Errorf("Wrong order: got %s first, %s last", decisions[0].RequestID, decisions[2].RequestID)
		}
	})

	t.Run("OverwriteKeepsSingleIndexEntry", func(t *testing.T) {
		decision := sampleDecision("req-a", base.Add(10*time.Minute))
		decision.Verdict = types.VerdictUnverified
		if err := store.SaveDecision(ctx, decision); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}

		n, err := store.client.ZCard(ctx, store.indexKey()).Result()
		if err != nil {
			t.Fatalf("ZCard failed: %v", err)
		}
		// req-1 plus req-a/b/c from the subtests above.
		if n != 4 {
			t.Errorf("Expected 4 index members, got %d", n)
		}

		retrieved, err := store.GetDecision(ctx, "req-a")
		if err != nil {
			t.Fatalf("GetDecision failed: %v", err)
		}
		if retrieved.Verdict != types.VerdictUnverified {
			t.Errorf("Expected overwritten verdict, got %s", retrieved.Verdict)
		}
	})

	t.Run("ListRepairsStaleIndex", func(t *testing.T) {
		// Drop a value behind the index's back, as TTL expiry would.
		if !mr.Del(store.decisionKey("req-b")) {
			t.Fatal("Expected req-b value to exist")
		}

		decisions, err := store.ListDecisions(ctx, 10)
		if err != nil {
			t.Fatalf("ListDecisions failed: %v", err)
		}
		for _, d := range decisions {
			if d.RequestID == "req-b" {
				t.Error("Expected req-b to be dropped from the listing")
			}
		}

		n, err := store.client.ZCard(ctx, store.indexKey()).Result()
		if err != nil {
			t.Fatalf("ZCard failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Expected stale member pruned from index, got %d members", n)
		}
	})

	t.Run("SaveExecution", func(t *testing.T) {
		execution := sampleExecution("req-1")
		if err := store.SaveExecution(ctx, execution); err != nil {
			t.Fatalf("SaveExecution failed: %v", err)
		}
		if !mr.Exists(store.executionKey(execution.ID)) {
			t.Error("Expected execution key to exist")
		}
	})
}

// TestRedisStoreTTL tests that configured TTLs reach Redis
func TestRedisStoreTTL(t *testing.T) {
	mr, store := setupRedisStore(t, config.StoreConfig{TTL: time.Hour})
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()

	if err := store.SaveDecision(ctx, sampleDecision("req-ttl", time.Now().UTC())); err != nil {
		t.Fatalf("SaveDecision failed: %v", err)
	}

	if ttl := mr.TTL(store.decisionKey("req-ttl")); ttl <= 0 {
		t.Errorf("Expected a positive TTL on the decision key, got %v", ttl)
	}
	if ttl := mr.TTL(store.indexKey()); ttl <= 0 {
		t.Errorf("Expected a positive TTL on the index key, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.GetDecision(ctx, "req-ttl"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
}

// TestRedisStoreConnectError tests fail-fast construction
func TestRedisStoreConnectError(t *testing.T) {
	_, err := NewRedisStore(
		config.RedisConfig{Addr: "127.0.0.1:1"},
		config.StoreConfig{},
		nil,
	)
	if err == nil {
		t.Fatal("Expected a connection error")
	}
}

// TestNewStore tests the backend factory
func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		cfg := config.DefaultConfig()
		store, err := NewStore(ctx, cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("NewStore failed: %v", err)
		}
		defer store.Close()

		if _, ok := store.(*MemoryStore); !ok {
			t.Errorf("Expected *MemoryStore, got %T", store)
		}
	})

	t.Run("Redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("miniredis failed to start: %v", err)
		}
		defer mr.Close()

		cfg := config.DefaultConfig()
		cfg.Store.Type = "redis"
		cfg.Redis.Addr = mr.Addr()

		store, err := NewStore(ctx, cfg, zap.NewNop())
		if err != nil {
			t.Fatalf("NewStore failed: %v", err)
		}
		defer store.Close()

		if _, ok := store.(*RedisStore); !ok {
			t.Errorf("Expected *RedisStore, got %T", store)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Store.Type = "cassandra"

		_, err := NewStore(ctx, cfg, zap.NewNop())
		if err == nil || !strings.Contains(err.Error(), "unsupported store type") {
			t.Errorf("Expected unsupported store type error, got %v", err)
		}
	})

	t.Run("MustNewStorePanics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected MustNewStore to panic")
			}
		}()

		cfg := config.DefaultConfig()
		cfg.Store.Type = "cassandra"
		MustNewStore(ctx, cfg, zap.NewNop())
	})
}
