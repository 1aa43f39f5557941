// Copyright (c) VeriFlow Authors.
// Licensed under the MIT License.

package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/internal/database"
)

// NewStore creates a Store based on the configured backend type. The context
// bounds backend connection setup; it is not retained by the store.
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	switch StoreType(cfg.Store.Type) {
	case StoreTypeMemory, "":
		return NewMemoryStore(cfg.Store), nil
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis, cfg.Store, logger)
	case StoreTypeMongo:
		return NewMongoStore(ctx, cfg.Mongo, cfg.Store, logger)
	case StoreTypeSQL:
		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		// The store owns the handle from here; closing the store closes
		// the pooled connections.
		return NewGormStore(pool.DB(), cfg.Store, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}

// MustNewStore creates a Store or panics on error.
//
// Intended for application initialization only (main or init). For runtime
// store creation use NewStore and handle the error.
func MustNewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) Store {
	store, err := NewStore(ctx, cfg, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create store: %v", err))
	}
	return store
}
