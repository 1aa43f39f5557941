// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/types"
)

const (
	decisionCollection  = "verification_decisions"
	executionCollection = "verification_executions"

	defaultMongoTimeout = 10 * time.Second
)

// decisionDoc is the stored envelope for a decision. The envelope fields
// carry the queryable keys; the full decision is embedded as a subdocument.
type decisionDoc struct {
	RequestID string                `bson:"request_id"`
	Timestamp time.Time             `bson:"timestamp"`
	Decision  *types.DecisionResult `bson:"decision"`
}

// executionDoc is the stored envelope for a workflow execution.
type executionDoc struct {
	ID        string                   `bson:"_id"`
	RequestID string                   `bson:"request_id"`
	Status    string                   `bson:"status"`
	StartedAt time.Time                `bson:"started_at"`
	Execution *types.WorkflowExecution `bson:"execution"`
}

// MongoStore is a MongoDB-based implementation of Store.
type MongoStore struct {
	client     *mongo.Client
	decisions  *mongo.Collection
	executions *mongo.Collection
	listLimit  int
	logger     *zap.Logger
}

// NewMongoStore creates a new MongoDB-based store, verifies connectivity
// and ensures the indexes the store relies on.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, store config.StoreConfig, logger *zap.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "veriflow"
	}

	listLimit := store.ListLimit
	if listLimit <= 0 {
		listLimit = 50
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		decisions:  db.Collection(decisionCollection),
		executions: db.Collection(executionCollection),
		listLimit:  listLimit,
		logger:     logger.With(zap.String("component", "mongo_store")),
	}

	if err := s.ensureIndexes(ctx, timeout); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	s.logger.Info("mongo store connected", zap.String("database", database))

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context, timeout time.Duration) error {
	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := s.decisions.Indexes().CreateMany(idxCtx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to ensure decision indexes: %w", err)
	}

	_, err = s.executions.Indexes().CreateMany(idxCtx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "request_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to ensure execution indexes: %w", err)
	}

	return nil
}

// SaveExecution persists a workflow execution record.
func (s *MongoStore) SaveExecution(ctx context.Context, execution *types.WorkflowExecution) error {
	if execution == nil {
		return ErrInvalidInput
	}

	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	doc := executionDoc{
		ID:        execution.ID,
		RequestID: execution.RequestID,
		Status:    string(execution.Status),
		StartedAt: execution.StartedAt,
		Execution: execution,
	}

	filter := bson.D{{Key: "_id", Value: execution.ID}}
	_, err := s.executions.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

// SaveDecision persists a decision, overwriting any earlier decision for
// the same request ID.
func (s *MongoStore) SaveDecision(ctx context.Context, decision *types.DecisionResult) error {
	if decision == nil || decision.RequestID == "" {
		return ErrInvalidInput
	}

	if decision.Timestamp.IsZero() {
		decision.Timestamp = time.Now().UTC()
	}

	doc := decisionDoc{
		RequestID: decision.RequestID,
		Timestamp: decision.Timestamp,
		Decision:  decision,
	}

	filter := bson.D{{Key: "request_id", Value: decision.RequestID}}
	_, err := s.decisions.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

// GetDecision retrieves the decision for a request ID.
func (s *MongoStore) GetDecision(ctx context.Context, requestID string) (*types.DecisionResult, error) {
	filter := bson.D{{Key: "request_id", Value: requestID}}

	var doc decisionDoc
	err := s.decisions.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if doc.Decision == nil {
		return nil, ErrNotFound
	}

	return doc.Decision, nil
}

// ListDecisions returns up to limit decisions, newest first.
func (s *MongoStore) ListDecisions(ctx context.Context, limit int) ([]*types.DecisionResult, error) {
	if limit <= 0 {
		limit = s.listLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.decisions.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}

	var docs []decisionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	result := make([]*types.DecisionResult, 0, len(docs))
	for _, doc := range docs {
		if doc.Decision == nil {
			continue
		}
		result = append(result, doc.Decision)
	}

	return result, nil
}

// Ping checks if the store is healthy.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close closes the store and disconnects from the server.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
