// MockAgent 的核验 Agent 测试模拟实现。
//
// 支持固定裁定、错误注入、延迟模拟与阻塞（超时测试）场景。
package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

// 编译期确认 MockAgent 满足 Agent 契约
var _ agent.Agent = (*MockAgent)(nil)

// MockAgent 是 agent.Agent 的可编程模拟实现
type MockAgent struct {
	mu sync.RWMutex

	id   string
	name string

	// 响应配置
	verdict    types.Verdict
	confidence float64
	reasoning  string
	evidence   []types.Evidence

	// 行为控制
	latency       time.Duration // 每次调用的模拟耗时（可被 ctx 取消）
	err           error         // 固定错误注入
	failFirst     int           // 前 N 次调用失败，之后成功
	blocking      bool          // 阻塞直到 ctx 取消（用于超时测试）
	available     bool
	kinds         []types.ContentKind
	maxProcessing time.Duration

	analyzeFunc func(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error)

	callCount atomic.Int32
}

// NewMockAgent 创建默认可用、支持全部内容类别的模拟 Agent
func NewMockAgent(id string) *MockAgent {
	return &MockAgent{
		id:         id,
		name:       "mock-" + id,
		verdict:    types.VerdictVerifiedTrue,
		confidence: 0.9,
		reasoning:  "mock reasoning",
		available:  true,
		kinds: []types.ContentKind{
			types.ContentKindText,
			types.ContentKindURL,
			types.ContentKindImage,
			types.ContentKindVideo,
			types.ContentKindSocialMedia,
			types.ContentKindNews,
			types.ContentKindAcademic,
		},
		maxProcessing: 5 * time.Second,
	}
}

// WithVerdict 设置固定裁定与置信度
func (m *MockAgent) WithVerdict(v types.Verdict, confidence float64) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdict = v
	m.confidence = confidence
	return m
}

// WithReasoning 设置推理文本
func (m *MockAgent) WithReasoning(reasoning string) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasoning = reasoning
	return m
}

// WithEvidence 设置返回的证据列表
func (m *MockAgent) WithEvidence(evidence ...types.Evidence) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evidence = evidence
	return m
}

// WithLatency 设置每次调用的模拟耗时
func (m *MockAgent) WithLatency(d time.Duration) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
	return m
}

// WithError 设置固定错误，所有调用都失败
func (m *MockAgent) WithError(err error) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailFirst 设置前 N 次调用失败，之后成功（重试测试）
func (m *MockAgent) WithFailFirst(n int) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst = n
	return m
}

// Blocking 设置 Analyze 阻塞直到 ctx 取消（超时竞速测试）
func (m *MockAgent) Blocking() *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = true
	return m
}

// WithAvailability 设置可用性自报告
func (m *MockAgent) WithAvailability(available bool) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
	return m
}

// WithKinds 限定支持的内容类别
func (m *MockAgent) WithKinds(kinds ...types.ContentKind) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = kinds
	return m
}

// WithMaxProcessingTime 设置声明的最大处理时间
func (m *MockAgent) WithMaxProcessingTime(d time.Duration) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxProcessing = d
	return m
}

// WithAnalyzeFunc 完全接管 Analyze 行为
func (m *MockAgent) WithAnalyzeFunc(fn func(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error)) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzeFunc = fn
	return m
}

// CallCount 返回 Analyze 被调用的次数
func (m *MockAgent) CallCount() int32 {
	return m.callCount.Load()
}

// --- agent.Agent 接口实现 ---

func (m *MockAgent) ID() string   { return m.id }
func (m *MockAgent) Name() string { return m.name }

func (m *MockAgent) Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error) {
	n := m.callCount.Add(1)

	m.mu.RLock()
	analyzeFunc := m.analyzeFunc
	blocking := m.blocking
	latency := m.latency
	err := m.err
	failFirst := m.failFirst
	verdict := m.verdict
	confidence := m.confidence
	reasoning := m.reasoning
	evidence := m.evidence
	m.mu.RUnlock()

	if analyzeFunc != nil {
		return analyzeFunc(ctx, req)
	}

	if blocking {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if failFirst > 0 && int(n) <= failFirst {
		return nil, types.NewError(types.ErrAgentInvocation, "transient mock failure").
			WithAgentID(m.id).WithRetryable(true)
	}

	return &types.AgentResponse{
		AgentID:    m.id,
		Verdict:    verdict,
		Confidence: confidence,
		Reasoning:  reasoning,
		Evidence:   evidence,
		Latency:    time.Since(start),
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (m *MockAgent) Health(ctx context.Context) types.AgentHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := types.HealthHealthy
	if !m.available {
		status = types.HealthUnhealthy
	}
	return types.AgentHealth{
		AgentID:     m.id,
		Status:      status,
		LastChecked: time.Now().UTC(),
	}
}

func (m *MockAgent) IsAvailable(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

func (m *MockAgent) SupportedContentKinds() []types.ContentKind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kinds := make([]types.ContentKind, len(m.kinds))
	copy(kinds, m.kinds)
	return kinds
}

func (m *MockAgent) MaxProcessingTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxProcessing
}
