package health

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	// BreakerClosed 正常状态，放行探测
	BreakerClosed BreakerState = iota
	// BreakerOpen 熔断状态，恢复窗口内拒绝探测
	BreakerOpen
	// BreakerHalfOpen 半开状态，放行单次试探
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig 可用性熔断器配置
type BreakerConfig struct {
	// FailureThreshold 连续探测失败多少次后熔断
	FailureThreshold int `yaml:"failure_threshold"`
	// RecoveryTimeout 熔断后等待多久进入半开试探
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
}

// DefaultBreakerConfig 返回默认熔断配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
	}
}

func (c *BreakerConfig) normalize() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
}

// Breaker 是单个 agent 可用性探测的三态熔断器。探活循环串行驱动它，
// 但 Monitor 的查询接口会并发读取状态，故仍需加锁。
type Breaker struct {
	agentID string
	config  BreakerConfig
	logger  *zap.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// NewBreaker 创建熔断器
func NewBreaker(agentID string, config BreakerConfig, logger *zap.Logger) *Breaker {
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		agentID: agentID,
		config:  config,
		logger:  logger.With(zap.String("agent_id", agentID)),
		state:   BreakerClosed,
	}
}

// Allow 报告当前是否放行一次探测。熔断打开且恢复窗口已过时自动转入
// 半开并放行试探。
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(b.lastFailure) >= b.config.RecoveryTimeout {
			b.transition(BreakerHalfOpen, "recovery timeout elapsed")
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess 记录一次探测成功
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != BreakerClosed {
		b.transition(BreakerClosed, "probe succeeded")
	}
}

// RecordFailure 记录一次探测失败
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.transition(BreakerOpen, fmt.Sprintf("%d consecutive probe failures", b.failures))
		}
	case BreakerHalfOpen:
		// 试探失败，重新熔断并重置恢复窗口
		b.transition(BreakerOpen, "probe failed in half-open state")
	}
}

// State 返回当前状态
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 手动恢复到关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerClosed {
		b.transition(BreakerClosed, "manual reset")
	}
	b.failures = 0
}

// transition 状态转换，须在锁内调用
func (b *Breaker) transition(next BreakerState, reason string) {
	prev := b.state
	b.state = next
	b.logger.Info("availability breaker state change",
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
		zap.String("reason", reason),
		zap.Int("failures", b.failures),
	)
}
