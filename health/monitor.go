package health

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/event"
	"github.com/veriflow-ai/veriflow/types"
)

// 成功率高于可用性下限但低于此值时降级为 degraded
const successRateDegraded = 0.98

// 窗口样本不足该数量时跳过比率类告警，连续失败告警不受限
const minAlertSamples = 3

// Config 健康监控配置
type Config struct {
	// HistoryCap 每个 agent 的滚动指标窗口容量
	HistoryCap int `yaml:"history_cap"`
	// LatencyThreshold 响应时间阈值，同时参与评分与告警
	LatencyThreshold time.Duration `yaml:"latency_threshold"`
	// AvailabilityThreshold 成功率低于该值判定 unhealthy 并触发可用性告警
	AvailabilityThreshold float64 `yaml:"availability_threshold"`
	// ErrorRateThreshold 窗口错误率超过该值触发错误率告警
	ErrorRateThreshold float64 `yaml:"error_rate_threshold"`
	// ConsecutiveFailureLimit 连续失败达到该数触发 critical 性能告警
	ConsecutiveFailureLimit int `yaml:"consecutive_failure_limit"`
	// AlertCooldown 同一 (agent, type) 的未解决告警在窗口内不重复告警
	AlertCooldown time.Duration `yaml:"alert_cooldown"`
	// PollInterval 后台可用性探活周期
	PollInterval time.Duration `yaml:"poll_interval"`
	// ProbeTimeout 单次探活预算
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// Breaker 探活熔断配置
	Breaker BreakerConfig `yaml:"breaker"`
}

// DefaultConfig 返回默认健康监控配置
func DefaultConfig() *Config {
	return &Config{
		HistoryCap:              100,
		LatencyThreshold:        5 * time.Second,
		AvailabilityThreshold:   0.9,
		ErrorRateThreshold:      0.25,
		ConsecutiveFailureLimit: 3,
		AlertCooldown:           5 * time.Minute,
		PollInterval:            30 * time.Second,
		ProbeTimeout:            5 * time.Second,
		Breaker:                 DefaultBreakerConfig(),
	}
}

func (c *Config) normalize() {
	if c.HistoryCap <= 0 {
		c.HistoryCap = 100
	}
	if c.LatencyThreshold <= 0 {
		c.LatencyThreshold = 5 * time.Second
	}
	if c.AvailabilityThreshold <= 0 || c.AvailabilityThreshold > 1 {
		c.AvailabilityThreshold = 0.9
	}
	if c.ErrorRateThreshold <= 0 || c.ErrorRateThreshold >= 1 {
		c.ErrorRateThreshold = 0.25
	}
	if c.ConsecutiveFailureLimit <= 0 {
		c.ConsecutiveFailureLimit = 3
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	c.Breaker.normalize()
}

// agentStats 单个 agent 的滚动窗口与增量统计。
// 零置信度的指标（可用性探测、失败）不进入置信度均值。
type agentStats struct {
	history         []types.AgentMetric
	latencySum      time.Duration
	confidenceSum   float64
	confidenceCount int
	windowSuccesses int

	consecutiveFailures int
	totalRequests       int
	totalErrors         int
	lastSeen            time.Time
}

func (s *agentStats) push(metric types.AgentMetric, limit int) {
	if len(s.history) >= limit {
		oldest := s.history[0]
		s.latencySum -= oldest.Latency
		if oldest.Success {
			s.windowSuccesses--
		}
		if oldest.Confidence > 0 {
			s.confidenceSum -= oldest.Confidence
			s.confidenceCount--
		}
		copy(s.history, s.history[1:])
		s.history[len(s.history)-1] = metric
	} else {
		s.history = append(s.history, metric)
	}

	s.latencySum += metric.Latency
	if metric.Confidence > 0 {
		s.confidenceSum += metric.Confidence
		s.confidenceCount++
	}
	s.totalRequests++
	if metric.Success {
		s.windowSuccesses++
		s.consecutiveFailures = 0
	} else {
		s.totalErrors++
		s.consecutiveFailures++
	}
	s.lastSeen = metric.Timestamp
}

func (s *agentStats) successRate() float64 {
	if len(s.history) == 0 {
		return 0
	}
	return float64(s.windowSuccesses) / float64(len(s.history))
}

func (s *agentStats) meanLatency() time.Duration {
	if len(s.history) == 0 {
		return 0
	}
	return s.latencySum / time.Duration(len(s.history))
}

func (s *agentStats) meanConfidence() float64 {
	if s.confidenceCount == 0 {
		return 0
	}
	return s.confidenceSum / float64(s.confidenceCount)
}

// Monitor 健康监控器。
// 被动侧实现 workflow.MetricRecorder 接收真实调用指标；主动侧由 Start
// 启动的探活循环补充合成指标。全部表由单一读写锁保护。
type Monitor struct {
	registry *agent.Registry
	bus      event.Bus
	config   *Config
	logger   *zap.Logger

	mu        sync.RWMutex
	stats     map[string]*agentStats
	available map[string]bool
	breakers  map[string]*Breaker
	alerts    []*types.HealthAlert
	lastAlert map[string]*types.HealthAlert
	alertByID map[string]*types.HealthAlert

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor 创建健康监控器。registry 为 nil 时探活循环空转，bus 为
// nil 时不发布事件；被动指标记录不受影响。
func NewMonitor(registry *agent.Registry, bus event.Bus, config *Config, logger *zap.Logger) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		registry:  registry,
		bus:       bus,
		config:    config,
		logger:    logger.With(zap.String("component", "health_monitor")),
		stats:     make(map[string]*agentStats),
		available: make(map[string]bool),
		breakers:  make(map[string]*Breaker),
		lastAlert: make(map[string]*types.HealthAlert),
		alertByID: make(map[string]*types.HealthAlert),
	}
}

// RecordMetric 记录一条调用指标并立即评估告警条件。
func (m *Monitor) RecordMetric(metric types.AgentMetric) {
	if metric.AgentID == "" {
		return
	}
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now().UTC()
	}

	now := time.Now().UTC()
	m.mu.Lock()
	st, ok := m.stats[metric.AgentID]
	if !ok {
		st = &agentStats{}
		m.stats[metric.AgentID] = st
	}
	st.push(metric, m.config.HistoryCap)
	raised := m.evaluateAlertsLocked(metric.AgentID, st, now)
	var snapshot types.AgentHealth
	if len(raised) > 0 {
		snapshot = m.healthLocked(metric.AgentID, now)
	}
	m.mu.Unlock()

	for i := range raised {
		m.publishUpdate(snapshot, &raised[i])
	}
}

// Health 返回单个 agent 的健康快照。没有任何数据时状态为 unknown、
// 评分取中性值 0.5。
func (m *Monitor) Health(agentID string) types.AgentHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthLocked(agentID, time.Now().UTC())
}

// AllHealth 返回已注册 agent 与已有观测数据 agent 的健康快照并集。
func (m *Monitor) AllHealth() map[string]types.AgentHealth {
	ids := make(map[string]struct{})
	if m.registry != nil {
		for _, id := range m.registry.IDs() {
			ids[id] = struct{}{}
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for id := range m.stats {
		ids[id] = struct{}{}
	}
	for id := range m.available {
		ids[id] = struct{}{}
	}

	now := time.Now().UTC()
	out := make(map[string]types.AgentHealth, len(ids))
	for id := range ids {
		out[id] = m.healthLocked(id, now)
	}
	return out
}

// Scores 返回 agent 到健康评分的映射，供聚合器做权重折扣。
func (m *Monitor) Scores() map[string]float64 {
	all := m.AllHealth()
	scores := make(map[string]float64, len(all))
	for id, h := range all {
		scores[id] = h.HealthScore
	}
	return scores
}

// SystemHealth 返回全局健康摘要：平均评分 + 活动告警数映射到整体状态。
func (m *Monitor) SystemHealth() types.SystemHealth {
	all := m.AllHealth()
	summary := types.SystemHealth{
		AgentCount: len(all),
		Timestamp:  time.Now().UTC(),
	}
	if len(all) == 0 {
		summary.Status = types.HealthUnknown
		return summary
	}

	var sum float64
	for _, h := range all {
		sum += h.HealthScore
		switch h.Status {
		case types.HealthHealthy:
			summary.HealthyAgents++
		case types.HealthDegraded:
			summary.DegradedAgents++
		case types.HealthUnhealthy:
			summary.UnhealthyAgents++
		}
	}
	summary.MeanScore = sum / float64(len(all))
	summary.ActiveAlerts = m.activeAlertCount()

	switch {
	case summary.MeanScore >= 0.8 && summary.ActiveAlerts == 0:
		summary.Status = types.HealthHealthy
	case summary.MeanScore >= 0.5:
		summary.Status = types.HealthDegraded
	default:
		summary.Status = types.HealthUnhealthy
	}
	return summary
}

// Alerts 返回按创建时间从新到旧排序的告警；includeResolved 为 false 时
// 仅返回未解决告警。
func (m *Monitor) Alerts(includeResolved bool) []types.HealthAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.HealthAlert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if a.Resolved && !includeResolved {
			continue
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ResolveAlert 将告警标记为已解决并发布更新事件。解除同组合的告警
// 抑制。重复解决是幂等的。
func (m *Monitor) ResolveAlert(alertID string) error {
	now := time.Now().UTC()

	m.mu.Lock()
	alert, ok := m.alertByID[alertID]
	if !ok {
		m.mu.Unlock()
		return types.NewError(types.ErrAlertNotFound, "alert not found: "+alertID)
	}
	if alert.Resolved {
		m.mu.Unlock()
		return nil
	}
	alert.Resolved = true
	alert.ResolvedAt = &now
	resolved := *alert
	snapshot := m.healthLocked(alert.AgentID, now)
	m.mu.Unlock()

	m.logger.Info("health alert resolved",
		zap.String("alert_id", alertID),
		zap.String("agent_id", resolved.AgentID),
		zap.String("type", string(resolved.Type)),
	)
	m.publishUpdate(snapshot, &resolved)
	return nil
}

// BreakerStates 返回每个被探测过的 agent 的熔断器状态。
func (m *Monitor) BreakerStates() map[string]BreakerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]BreakerState, len(m.breakers))
	for id, b := range m.breakers {
		states[id] = b.State()
	}
	return states
}

// Start 启动后台探活循环。重复调用是空操作。
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	pollCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(pollCtx)
	m.logger.Info("health monitor started",
		zap.Duration("poll_interval", m.config.PollInterval),
	)
}

// Stop 停止探活循环并等待其退出。未启动时是空操作。
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("health monitor stopped")
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	m.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	if m.registry == nil {
		return
	}
	for _, a := range m.registry.List() {
		if ctx.Err() != nil {
			return
		}
		m.probe(ctx, a)
	}
}

// probe 通过熔断器探测单个 agent。熔断打开时跳过真实探测且不记录
// 指标，agent 保持不可用标记。
func (m *Monitor) probe(ctx context.Context, a agent.Agent) {
	breaker := m.breakerFor(a.ID())
	if !breaker.Allow() {
		m.markAvailability(a.ID(), false)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	start := time.Now()
	available := a.IsAvailable(probeCtx)
	cancel()
	latency := time.Since(start)

	if available {
		breaker.RecordSuccess()
	} else {
		breaker.RecordFailure()
	}
	m.markAvailability(a.ID(), available)
	m.RecordMetric(types.AgentMetric{
		AgentID:   a.ID(),
		Success:   available,
		Latency:   latency,
		Timestamp: time.Now().UTC(),
	})
}

func (m *Monitor) breakerFor(agentID string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[agentID]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[agentID]; ok {
		return b
	}
	b = NewBreaker(agentID, m.config.Breaker, m.logger)
	m.breakers[agentID] = b
	return b
}

func (m *Monitor) markAvailability(agentID string, available bool) {
	m.mu.Lock()
	m.available[agentID] = available
	m.mu.Unlock()
}

// healthLocked 推导单个 agent 的健康快照，须持有（读）锁调用。
func (m *Monitor) healthLocked(agentID string, now time.Time) types.AgentHealth {
	h := types.AgentHealth{
		AgentID:     agentID,
		Status:      types.HealthUnknown,
		HealthScore: 0.5,
		LastChecked: now,
	}
	available, probed := m.available[agentID]
	st := m.stats[agentID]

	if st == nil || len(st.history) == 0 {
		if probed && !available {
			h.Status = types.HealthUnhealthy
			h.HealthScore = 0
		}
		return h
	}

	successRate := st.successRate()
	meanLatency := st.meanLatency()
	meanConfidence := st.meanConfidence()

	responseTimeScore := math.Max(0, 1-float64(meanLatency)/float64(m.config.LatencyThreshold))
	score := 0.3*responseTimeScore + 0.5*successRate + 0.2*meanConfidence

	status := types.HealthHealthy
	switch {
	case probed && !available:
		status = types.HealthUnhealthy
	case successRate < m.config.AvailabilityThreshold:
		status = types.HealthUnhealthy
	case meanLatency > m.config.LatencyThreshold || successRate < successRateDegraded:
		status = types.HealthDegraded
	}

	h.Status = status
	h.ResponseTime = meanLatency
	h.SuccessRate = successRate
	h.MeanConfidence = meanConfidence
	h.ErrorCount = st.totalErrors
	h.TotalRequests = st.totalRequests
	h.ConsecutiveFailures = st.consecutiveFailures
	h.HealthScore = math.Max(0, math.Min(1, score))
	h.LastChecked = st.lastSeen
	return h
}

// evaluateAlertsLocked 评估四类告警条件，返回本次新建的告警。
func (m *Monitor) evaluateAlertsLocked(agentID string, st *agentStats, now time.Time) []types.HealthAlert {
	var raised []types.HealthAlert

	if st.consecutiveFailures >= m.config.ConsecutiveFailureLimit {
		if alert, ok := m.raiseLocked(agentID, types.AlertPerformance, types.SeverityCritical,
			fmt.Sprintf("agent failed %d consecutive times", st.consecutiveFailures), now); ok {
			raised = append(raised, alert)
		}
	}

	if len(st.history) < minAlertSamples {
		return raised
	}

	if meanLatency := st.meanLatency(); meanLatency > m.config.LatencyThreshold {
		if alert, ok := m.raiseLocked(agentID, types.AlertResponseTime, types.SeverityWarning,
			fmt.Sprintf("mean latency %s exceeds threshold %s", meanLatency, m.config.LatencyThreshold), now); ok {
			raised = append(raised, alert)
		}
	}

	successRate := st.successRate()
	if errorRate := 1 - successRate; errorRate > m.config.ErrorRateThreshold {
		if alert, ok := m.raiseLocked(agentID, types.AlertErrorRate, types.SeverityWarning,
			fmt.Sprintf("error rate %.0f%% over the last %d calls", errorRate*100, len(st.history)), now); ok {
			raised = append(raised, alert)
		}
	}

	available, probed := m.available[agentID]
	switch {
	case probed && !available:
		if alert, ok := m.raiseLocked(agentID, types.AlertAvailability, types.SeverityCritical,
			"agent reported unavailable", now); ok {
			raised = append(raised, alert)
		}
	case successRate < m.config.AvailabilityThreshold:
		if alert, ok := m.raiseLocked(agentID, types.AlertAvailability, types.SeverityCritical,
			fmt.Sprintf("success rate %.2f below availability floor %.2f", successRate, m.config.AvailabilityThreshold), now); ok {
			raised = append(raised, alert)
		}
	}

	return raised
}

// raiseLocked 创建告警，除非同 (agent, type) 的未解决告警仍在冷却窗口内。
func (m *Monitor) raiseLocked(agentID string, alertType types.AlertType, severity types.AlertSeverity, message string, now time.Time) (types.HealthAlert, bool) {
	key := agentID + "/" + string(alertType)
	if prev, ok := m.lastAlert[key]; ok && !prev.Resolved && now.Sub(prev.CreatedAt) < m.config.AlertCooldown {
		return types.HealthAlert{}, false
	}

	alert := &types.HealthAlert{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: now,
	}
	m.alerts = append(m.alerts, alert)
	m.lastAlert[key] = alert
	m.alertByID[alert.ID] = alert

	m.logger.Warn("health alert raised",
		zap.String("agent_id", agentID),
		zap.String("type", string(alertType)),
		zap.String("severity", string(severity)),
		zap.String("message", message),
	)
	return *alert, true
}

func (m *Monitor) activeAlertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, a := range m.alerts {
		if !a.Resolved {
			count++
		}
	}
	return count
}

func (m *Monitor) publishUpdate(h types.AgentHealth, alert *types.HealthAlert) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(types.NewEvent(types.EventHealthUpdate, "", "", types.HealthUpdatePayload{
		AgentID: alert.AgentID,
		Status:  h.Status,
		Score:   h.HealthScore,
		Alert:   alert,
	}))
}
