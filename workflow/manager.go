package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/event"
	"github.com/veriflow-ai/veriflow/types"
)

// MetricRecorder 接收每个 agent 落定后的调用指标。
// 由健康监控器实现；为 nil 时不记录。
type MetricRecorder interface {
	RecordMetric(metric types.AgentMetric)
}

// Config 工作流管理器配置
type Config struct {
	// BaseStepTimeout 单次尝试的基础超时，按请求优先级缩放
	BaseStepTimeout time.Duration `yaml:"base_step_timeout"`
	// MaxRetries 每步最大重试次数（总尝试次数 = MaxRetries + 1）
	MaxRetries int `yaml:"max_retries"`
	// BackoffBase 第一次重试前的退避时长，之后按 2 的幂递增
	BackoffBase time.Duration `yaml:"backoff_base"`
	// BackoffCap 退避时长上限
	BackoffCap time.Duration `yaml:"backoff_cap"`
	// Retention 终态工作流在活动表中的保留时长，0 表示永久保留
	Retention time.Duration `yaml:"retention"`
}

// DefaultConfig 返回默认工作流配置
func DefaultConfig() *Config {
	return &Config{
		BaseStepTimeout: 30 * time.Second,
		MaxRetries:      2,
		BackoffBase:     time.Second,
		BackoffCap:      10 * time.Second,
		Retention:       10 * time.Minute,
	}
}

func (c *Config) normalize() {
	if c.BaseStepTimeout <= 0 {
		c.BaseStepTimeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap < c.BackoffBase {
		c.BackoffCap = 10 * c.BackoffBase
	}
}

// Manager 工作流管理器。
// 持有活动工作流表（单锁保护），对外提供 Execute / Get / Cancel /
// Active / Close。每个执行记录再由自身的锁保护，Cancel 与波次合并
// 可以安全并发。
type Manager struct {
	registry *agent.Registry
	bus      event.Bus
	recorder MetricRecorder
	config   *Config
	logger   *zap.Logger

	mu        sync.RWMutex
	workflows map[string]*workflowState
	closed    bool
}

type workflowState struct {
	mu     sync.Mutex
	exec   *types.WorkflowExecution
	cancel context.CancelFunc
}

// NewManager 创建工作流管理器。bus 与 recorder 允许为 nil。
func NewManager(registry *agent.Registry, bus event.Bus, recorder MetricRecorder, config *Config, logger *zap.Logger) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry:  registry,
		bus:       bus,
		recorder:  recorder,
		config:    config,
		logger:    logger.With(zap.String("component", "workflow_manager")),
		workflows: make(map[string]*workflowState),
	}
}

// stepOutcome 一个 agent 落定后的结果（成功响应或最终错误）
type stepOutcome struct {
	agentID  string
	index    int
	response *types.AgentResponse
	err      error
	attempts int
	latency  time.Duration
}

// Execute 按波次运行一次核验工作流，阻塞直到终态并返回执行记录。
//
// executionOrder 被视为严格线性链：每个 agent 依赖其全部前序 agent。
// 单个 agent 的失败只写入 Errors，不会中断同波或后续波次。规划失败
// （执行顺序与选中集不一致、依赖成环）将状态置为 failed 并返回错误，
// 此时返回的执行记录仍然有效。
func (m *Manager) Execute(ctx context.Context, req *types.VerificationRequest, selectedAgents, executionOrder []string) (*types.WorkflowExecution, error) {
	if req == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "verification request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(selectedAgents) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "no agents selected for workflow")
	}

	wfCtx, cancel := context.WithCancel(ctx)
	exec := &types.WorkflowExecution{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		Steps:     m.buildSteps(executionOrder, req.Priority),
		Status:    types.WorkflowPending,
		StartedAt: time.Now().UTC(),
		Results:   make(map[string]*types.AgentResponse),
		Errors:    make(map[string]string),
	}
	st := &workflowState{exec: exec, cancel: cancel}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return nil, types.NewError(types.ErrServiceUnavailable, "workflow manager is closed")
	}
	m.workflows[exec.ID] = st
	m.mu.Unlock()
	defer cancel()

	waves, err := m.plan(selectedAgents, executionOrder)
	if err != nil {
		m.failPlanning(st, err)
		return exec, err
	}

	st.mu.Lock()
	if st.exec.Status == types.WorkflowPending {
		st.exec.Status = types.WorkflowRunning
	}
	st.mu.Unlock()

	m.logger.Info("starting workflow execution",
		zap.String("workflow_id", exec.ID),
		zap.String("request_id", req.ID),
		zap.Int("agents", len(selectedAgents)),
		zap.Int("waves", len(waves)),
	)
	m.publish(types.EventWorkflowStarted, req.ID, exec.ID, types.WorkflowStartedPayload{
		AgentIDs: selectedAgents,
		Waves:    len(waves),
		Priority: req.Priority,
	})

	stepIndex := make(map[string]int, len(exec.Steps))
	for i, step := range exec.Steps {
		stepIndex[step.AgentID] = i
	}

	for waveIdx, wave := range waves {
		if wfCtx.Err() != nil {
			break
		}
		m.logger.Debug("executing wave",
			zap.String("workflow_id", exec.ID),
			zap.Int("wave", waveIdx),
			zap.Strings("agents", wave),
		)
		outcomes := m.runWave(wfCtx, req, wave, stepIndex, exec.Steps)
		if !m.settleWave(st, req.ID, outcomes) {
			// 工作流已被取消，迟到结果作废
			break
		}
	}

	m.finalize(st, wfCtx)

	st.mu.Lock()
	snap := snapshotLocked(st.exec)
	st.mu.Unlock()
	return snap, nil
}

// Get 返回执行记录的独立快照。
func (m *Manager) Get(id string) (*types.WorkflowExecution, error) {
	m.mu.RLock()
	st, ok := m.workflows[id]
	m.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrWorkflowNotFound, fmt.Sprintf("workflow %s not found", id))
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return snapshotLocked(st.exec), nil
}

// Cancel 协作式取消：置状态为 cancelled 并停止调度后续波次。
// 已派发的 agent 调用不被强制终止，其迟到结果被丢弃。对已终态的
// 工作流是无害的空操作。
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	st, ok := m.workflows[id]
	m.mu.RUnlock()
	if !ok {
		return types.NewError(types.ErrWorkflowNotFound, fmt.Sprintf("workflow %s not found", id))
	}
	if m.cancelState(st, "workflow cancelled") {
		m.logger.Info("workflow cancelled", zap.String("workflow_id", id))
	}
	return nil
}

// Active 返回所有未终态工作流的快照，按开始时间排序。
func (m *Manager) Active() []*types.WorkflowExecution {
	m.mu.RLock()
	states := make([]*workflowState, 0, len(m.workflows))
	for _, st := range m.workflows {
		states = append(states, st)
	}
	m.mu.RUnlock()

	active := make([]*types.WorkflowExecution, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		if !st.exec.Status.IsTerminal() {
			active = append(active, snapshotLocked(st.exec))
		}
		st.mu.Unlock()
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].StartedAt.Equal(active[j].StartedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].StartedAt.Before(active[j].StartedAt)
	})
	return active
}

// Close 取消全部未终态工作流并拒绝后续 Execute。幂等。
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	states := make([]*workflowState, 0, len(m.workflows))
	for _, st := range m.workflows {
		states = append(states, st)
	}
	m.mu.Unlock()

	for _, st := range states {
		m.cancelState(st, "workflow manager closed")
	}
	m.logger.Info("workflow manager closed", zap.Int("workflows", len(states)))
	return nil
}

// --- 规划 ---

func (m *Manager) buildSteps(executionOrder []string, priority types.Priority) []types.WorkflowStep {
	timeout := time.Duration(float64(m.config.BaseStepTimeout) * priority.TimeoutMultiplier())
	steps := make([]types.WorkflowStep, len(executionOrder))
	for i, agentID := range executionOrder {
		steps[i] = types.WorkflowStep{
			AgentID:    agentID,
			DependsOn:  append([]string(nil), executionOrder[:i]...),
			Timeout:    timeout,
			MaxRetries: m.config.MaxRetries,
		}
	}
	return steps
}

// plan 校验执行顺序并构建波次。executionOrder 必须恰好是
// selectedAgents 的一个排列。
func (m *Manager) plan(selectedAgents, executionOrder []string) ([][]string, error) {
	if len(executionOrder) != len(selectedAgents) {
		return nil, types.NewError(types.ErrInvalidRequest,
			"execution order must be a permutation of the selected agents")
	}
	selected := make(map[string]bool, len(selectedAgents))
	for _, id := range selectedAgents {
		selected[id] = true
	}
	seen := make(map[string]bool, len(executionOrder))
	for _, id := range executionOrder {
		if !selected[id] || seen[id] {
			return nil, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("execution order entry %q is duplicated or not among the selected agents", id))
		}
		seen[id] = true
	}
	return buildWaves(executionOrder, linearDependencies(executionOrder))
}

// failPlanning 将规划失败落为 failed 终态并补齐错误映射。
func (m *Manager) failPlanning(st *workflowState, planErr error) {
	st.mu.Lock()
	if !st.exec.Status.IsTerminal() {
		st.exec.Status = types.WorkflowFailed
		now := time.Now().UTC()
		st.exec.CompletedAt = &now
		fillUnsettledLocked(st.exec, planErr.Error())
	}
	requestID, workflowID := st.exec.RequestID, st.exec.ID
	st.mu.Unlock()

	m.logger.Error("workflow planning failed",
		zap.String("workflow_id", workflowID),
		zap.Error(planErr),
	)
	m.publish(types.EventError, requestID, workflowID, types.AgentErrorPayload{Message: planErr.Error()})
	m.scheduleEviction(workflowID)
}

// --- 波次执行 ---

// runWave 并发运行一波 agent，落定式收集：任何一步的失败都不会取消
// 同波其余 agent。
func (m *Manager) runWave(ctx context.Context, req *types.VerificationRequest, wave []string, stepIndex map[string]int, steps []types.WorkflowStep) []stepOutcome {
	outcomes := make([]stepOutcome, len(wave))
	var g errgroup.Group
	for i, agentID := range wave {
		idx := stepIndex[agentID]
		step := steps[idx]
		g.Go(func() error {
			resp, attempts, latency, err := m.runStep(ctx, req, step)
			outcomes[i] = stepOutcome{
				agentID:  agentID,
				index:    idx,
				response: resp,
				err:      err,
				attempts: attempts,
				latency:  latency,
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// runStep 执行一个 agent 步骤：最多 MaxRetries+1 次尝试，失败之间
// 按指数退避休眠。返回最后一次尝试的结果与总尝试次数。
func (m *Manager) runStep(ctx context.Context, req *types.VerificationRequest, step types.WorkflowStep) (*types.AgentResponse, int, time.Duration, error) {
	ag, err := m.registry.Get(step.AgentID)
	if err != nil {
		return nil, 0, 0, types.NewError(types.ErrAgentNotFound,
			fmt.Sprintf("agent %s is not registered", step.AgentID)).WithAgentID(step.AgentID).WithCause(err)
	}

	var (
		lastErr     error
		attempts    int
		lastLatency time.Duration
	)
	for attempt := 0; attempt <= step.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := m.backoffDelay(attempt)
			m.logger.Debug("retrying agent step",
				zap.String("agent_id", step.AgentID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, attempts, lastLatency, lastErr
			case <-time.After(delay):
			}
		}

		attempts++
		start := time.Now()
		resp, err := m.attempt(ctx, ag, req, step.Timeout)
		lastLatency = time.Since(start)
		if err == nil {
			return resp, attempts, lastLatency, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	m.logger.Warn("agent step exhausted retries",
		zap.String("agent_id", step.AgentID),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return nil, attempts, lastLatency, lastErr
}

type attemptResult struct {
	response *types.AgentResponse
	err      error
}

// attempt 将一次 agent 调用与步骤超时竞速。结果通道带缓冲，超时后
// goroutine 不会泄漏；计时器触发后迟到的成功结果作废。
func (m *Manager) attempt(ctx context.Context, ag agent.Agent, req *types.VerificationRequest, timeout time.Duration) (*types.AgentResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan attemptResult, 1)
	go func() {
		resp, err := ag.Analyze(attemptCtx, req)
		resultCh <- attemptResult{response: resp, err: err}
	}()

	timedOut := func() error {
		return types.NewError(types.ErrAgentTimeout,
			fmt.Sprintf("agent %s exceeded attempt timeout %s", ag.ID(), timeout)).
			WithAgentID(ag.ID()).
			WithRetryable(true)
	}

	select {
	case r := <-resultCh:
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, timedOut()
		}
		if r.err != nil {
			return nil, r.err
		}
		if r.response == nil {
			return nil, types.NewError(types.ErrAgentInvocation,
				fmt.Sprintf("agent %s returned an empty response", ag.ID())).WithAgentID(ag.ID())
		}
		return r.response, nil

	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			code, msg := types.ErrWorkflowCancelled, "workflow cancelled during agent call"
			if errors.Is(err, context.DeadlineExceeded) {
				code, msg = types.ErrTimeout, "workflow deadline exceeded during agent call"
			}
			return nil, types.NewError(code, msg).WithAgentID(ag.ID()).WithCause(err)
		}
		return nil, timedOut()
	}
}

// backoffDelay 第 retry 次重试前的退避时长：base·2^(retry-1)，不超过上限。
func (m *Manager) backoffDelay(retry int) time.Duration {
	d := m.config.BackoffBase << uint(retry-1)
	if d <= 0 || d > m.config.BackoffCap {
		d = m.config.BackoffCap
	}
	return d
}

// --- 落定与终态 ---

// settleWave 将一波落定结果合并进执行记录并发布事件。工作流已离开
// running 状态时返回 false，本波结果被整体丢弃。
func (m *Manager) settleWave(st *workflowState, requestID string, outcomes []stepOutcome) bool {
	st.mu.Lock()
	if st.exec.Status != types.WorkflowRunning {
		st.mu.Unlock()
		return false
	}
	workflowID := st.exec.ID
	for _, o := range outcomes {
		if o.attempts > 0 {
			st.exec.Steps[o.index].Retries = o.attempts - 1
		}
		if o.err != nil {
			st.exec.Errors[o.agentID] = o.err.Error()
		} else {
			st.exec.Results[o.agentID] = o.response
		}
	}
	st.mu.Unlock()

	for _, o := range outcomes {
		if o.err != nil {
			m.publish(types.EventError, requestID, workflowID, types.AgentErrorPayload{
				AgentID:  o.agentID,
				Message:  o.err.Error(),
				Attempts: o.attempts,
			})
		} else {
			m.publish(types.EventAgentResponse, requestID, workflowID, types.AgentResponsePayload{
				AgentID:    o.agentID,
				Verdict:    o.response.Verdict,
				Confidence: o.response.Confidence,
				Latency:    o.response.Latency,
				Attempts:   o.attempts,
			})
		}
		m.recordOutcome(o)
	}
	return true
}

// recordOutcome 把落定结果转为健康指标。工作流级取消/超时不算
// agent 的失败，不记录。
func (m *Manager) recordOutcome(o stepOutcome) {
	if m.recorder == nil {
		return
	}
	if o.err != nil {
		switch types.GetErrorCode(o.err) {
		case types.ErrWorkflowCancelled, types.ErrTimeout:
			return
		}
		m.recorder.RecordMetric(types.AgentMetric{
			AgentID:   o.agentID,
			Success:   false,
			Latency:   o.latency,
			Timestamp: time.Now().UTC(),
		})
		return
	}
	m.recorder.RecordMetric(types.AgentMetric{
		AgentID:    o.agentID,
		Success:    true,
		Latency:    o.latency,
		Confidence: o.response.Confidence,
		Timestamp:  time.Now().UTC(),
	})
}

// finalize 收敛终态：正常跑完为 completed，父上下文超时为 timeout，
// 其余取消路径为 cancelled。已终态（Cancel 先到）则保持不变。
func (m *Manager) finalize(st *workflowState, wfCtx context.Context) {
	st.mu.Lock()
	exec := st.exec
	if exec.Status == types.WorkflowRunning || exec.Status == types.WorkflowPending {
		switch {
		case errors.Is(wfCtx.Err(), context.DeadlineExceeded):
			exec.Status = types.WorkflowTimeout
			fillUnsettledLocked(exec, "workflow deadline exceeded")
		case wfCtx.Err() != nil:
			exec.Status = types.WorkflowCancelled
			fillUnsettledLocked(exec, "workflow cancelled")
		default:
			exec.Status = types.WorkflowCompleted
		}
		now := time.Now().UTC()
		exec.CompletedAt = &now
	}
	payload := types.WorkflowCompletedPayload{
		Status:    exec.Status,
		Successes: exec.SuccessCount(),
		Failures:  exec.FailureCount(),
		Duration:  exec.Duration(),
	}
	requestID, workflowID := exec.RequestID, exec.ID
	st.mu.Unlock()

	m.logger.Info("workflow finished",
		zap.String("workflow_id", workflowID),
		zap.String("status", string(payload.Status)),
		zap.Int("successes", payload.Successes),
		zap.Int("failures", payload.Failures),
		zap.Duration("duration", payload.Duration),
	)
	m.publish(types.EventWorkflowCompleted, requestID, workflowID, payload)
	m.scheduleEviction(workflowID)
}

// cancelState 尝试将一个工作流置为 cancelled，成功返回 true。
func (m *Manager) cancelState(st *workflowState, reason string) bool {
	st.mu.Lock()
	if st.exec.Status.IsTerminal() {
		st.mu.Unlock()
		return false
	}
	st.exec.Status = types.WorkflowCancelled
	now := time.Now().UTC()
	st.exec.CompletedAt = &now
	fillUnsettledLocked(st.exec, reason)
	st.mu.Unlock()

	st.cancel()
	return true
}

// fillUnsettledLocked 为尚未落定的 agent 补齐错误条目，保证终态时
// 每个选中 agent 恰好出现在 Results 或 Errors 之一。
func fillUnsettledLocked(exec *types.WorkflowExecution, reason string) {
	for _, step := range exec.Steps {
		if _, ok := exec.Results[step.AgentID]; ok {
			continue
		}
		if _, ok := exec.Errors[step.AgentID]; ok {
			continue
		}
		exec.Errors[step.AgentID] = reason
	}
}

func snapshotLocked(exec *types.WorkflowExecution) *types.WorkflowExecution {
	cp := *exec
	cp.Steps = append([]types.WorkflowStep(nil), exec.Steps...)
	cp.Results = make(map[string]*types.AgentResponse, len(exec.Results))
	for k, v := range exec.Results {
		cp.Results[k] = v
	}
	cp.Errors = make(map[string]string, len(exec.Errors))
	for k, v := range exec.Errors {
		cp.Errors[k] = v
	}
	if exec.CompletedAt != nil {
		t := *exec.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func (m *Manager) publish(eventType types.EventType, requestID, workflowID string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(types.NewEvent(eventType, requestID, workflowID, payload))
}

func (m *Manager) scheduleEviction(id string) {
	if m.config.Retention <= 0 {
		return
	}
	time.AfterFunc(m.config.Retention, func() {
		m.mu.Lock()
		delete(m.workflows, id)
		m.mu.Unlock()
	})
}
