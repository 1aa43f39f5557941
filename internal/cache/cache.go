// Package cache provides the Redis-backed decision cache.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 💾 决策缓存
// =============================================================================

// ErrCacheMiss 缓存未命中哨兵错误
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// DecisionCache 以内容摘要为键缓存最终决策。同一内容在 TTL 内重复
// 提交时直接命中，跳过整条编排管线。
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New 创建决策缓存并验证 Redis 连通性
func New(ctx context.Context, cfg config.CacheConfig, rcfg config.RedisConfig, logger *zap.Logger) (*DecisionCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         rcfg.Addr,
		Password:     rcfg.Password,
		DB:           rcfg.DB,
		PoolSize:     rcfg.PoolSize,
		MinIdleConns: rcfg.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "veriflow:decision:"
	}

	c := &DecisionCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.With(zap.String("component", "decision_cache")),
	}

	c.logger.Info("decision cache initialized",
		zap.String("addr", rcfg.Addr),
		zap.Duration("ttl", ttl),
	)
	return c, nil
}

// newWithClient 供测试注入已有客户端（如 miniredis）
func newWithClient(client *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *DecisionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecisionCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.With(zap.String("component", "decision_cache")),
	}
}

// Key 计算内容摘要键：sha256(content|kind) 的十六进制。相同内容与
// 类别的请求共享同一个键，与请求 ID 无关。
func Key(content string, kind types.ContentKind) string {
	sum := sha256.Sum256([]byte(content + "|" + string(kind)))
	return hex.EncodeToString(sum[:])
}

// Get 读取缓存的决策。未命中返回 ErrCacheMiss。
func (c *DecisionCache) Get(ctx context.Context, key string) (*types.DecisionResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errors.New("decision cache is closed")
	}

	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var result types.DecisionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		// 损坏条目按未命中处理并顺手删除
		c.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return nil, ErrCacheMiss
	}
	return &result, nil
}

// Set 写入决策，使用配置的 TTL
func (c *DecisionCache) Set(ctx context.Context, key string, result *types.DecisionResult) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.New("decision cache is closed")
	}
	if result == nil {
		return errors.New("decision result is nil")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate 删除指定键的缓存条目
func (c *DecisionCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.New("decision cache is closed")
	}
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	return nil
}

// Ping 检查 Redis 连接
func (c *DecisionCache) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.New("decision cache is closed")
	}
	return c.client.Ping(ctx).Err()
}

// Close 关闭缓存并释放连接
func (c *DecisionCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Info("closing decision cache")
	return c.client.Close()
}
