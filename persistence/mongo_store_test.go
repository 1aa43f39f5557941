// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/types"
)

// TestDecisionDocRoundTrip tests that the stored envelope survives BSON
// encoding, including the embedded decision. BSON datetimes carry
// millisecond precision, so timestamps are truncated accordingly.
func TestDecisionDocRoundTrip(t *testing.T) {
	ts := time.Now().UTC().Truncate(time.Millisecond)
	decision := sampleDecision("req-1", ts)

	data, err := bson.Marshal(decisionDoc{
		RequestID: decision.RequestID,
		Timestamp: decision.Timestamp,
		Decision:  decision,
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded decisionDoc
	if err := bson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.RequestID != "req-1" {
		t.Errorf("RequestID mismatch: got %s", decoded.RequestID)
	}
	if !decoded.Timestamp.Equal(ts) {
		t.Errorf("Timestamp mismatch: got %v, want %v", decoded.Timestamp, ts)
	}
	if decoded.Decision == nil {
		t.Fatal("Expected an embedded decision")
	}
	if decoded.Decision.Verdict != types.VerdictVerifiedTrue {
		t.Errorf("Verdict mismatch: got %s", decoded.Decision.Verdict)
	}
	if decoded.Decision.Confidence != decision.Confidence {
		t.Errorf("Confidence mismatch: got %f", decoded.Decision.Confidence)
	}
	if decoded.Decision.Risk.Level != types.RiskLow {
		t.Errorf("Risk level mismatch: got %s", decoded.Decision.Risk.Level)
	}
	if decoded.Decision.Consensus.AgreementRatio != 0.75 {
		t.Errorf("Agreement ratio mismatch: got %f", decoded.Decision.Consensus.AgreementRatio)
	}
	if len(decoded.Decision.Recommendations) != 1 {
		t.Errorf("Recommendations mismatch: got %v", decoded.Decision.Recommendations)
	}
	if !decoded.Decision.Timestamp.Equal(ts) {
		t.Errorf("Embedded timestamp mismatch: got %v", decoded.Decision.Timestamp)
	}
}

// TestExecutionDocRoundTrip tests the execution envelope, covering duration
// fields, result maps and the optional completion time.
func TestExecutionDocRoundTrip(t *testing.T) {
	execution := sampleExecution("req-1")
	completed := time.Now().UTC().Truncate(time.Millisecond)
	execution.StartedAt = completed.Add(-2 * time.Second)
	execution.CompletedAt = &completed
	execution.Results["content-analysis"].Timestamp = completed
	execution.Results["content-analysis"].Latency = 120 * time.Millisecond

	data, err := bson.Marshal(executionDoc{
		ID:        execution.ID,
		RequestID: execution.RequestID,
		Status:    string(execution.Status),
		StartedAt: execution.StartedAt,
		Execution: execution,
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded executionDoc
	if err := bson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.ID != execution.ID {
		t.Errorf("ID mismatch: got %s", decoded.ID)
	}
	if decoded.Status != string(types.WorkflowCompleted) {
		t.Errorf("Status mismatch: got %s", decoded.Status)
	}
	if decoded.Execution == nil {
		t.Fatal("Expected an embedded execution")
	}
	if len(decoded.Execution.Steps) != 2 {
		t.Fatalf("Steps mismatch: got %d", len(decoded.Execution.Steps))
	}
	if decoded.Execution.Steps[0].Timeout != 30*time.Second {
		t.Errorf("Step timeout mismatch: got %v", decoded.Execution.Steps[0].Timeout)
	}
	response, ok := decoded.Execution.Results["content-analysis"]
	if !ok {
		t.Fatal("Expected the content-analysis result to survive")
	}
	if response.Latency != 120*time.Millisecond {
		t.Errorf("Latency mismatch: got %v", response.Latency)
	}
	if decoded.Execution.Errors["fact-check"] == "" {
		t.Error("Expected the fact-check error to survive")
	}
	if decoded.Execution.CompletedAt == nil || !decoded.Execution.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt mismatch: got %v", decoded.Execution.CompletedAt)
	}
}

// TestNewMongoStoreConnectError tests fail-fast construction
func TestNewMongoStoreConnectError(t *testing.T) {
	cfg := config.MongoConfig{
		URI:            "mongodb://127.0.0.1:1",
		Database:       "veriflow_test",
		ConnectTimeout: 200 * time.Millisecond,
	}

	_, err := NewMongoStore(context.Background(), cfg, config.StoreConfig{}, nil)
	if err == nil {
		t.Fatal("Expected a connection error")
	}
}
