package health

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/veriflow-ai/veriflow/types"
)

// drawMetrics 生成单个 agent 的任意调用指标序列
func drawMetrics(rt *rapid.T, agentID string) []types.AgentMetric {
	n := rapid.IntRange(1, 40).Draw(rt, "metric_count")
	metrics := make([]types.AgentMetric, 0, n)
	for i := 0; i < n; i++ {
		m := types.AgentMetric{
			AgentID:   agentID,
			Success:   rapid.Bool().Draw(rt, "success"),
			Latency:   time.Duration(rapid.IntRange(0, 10000).Draw(rt, "latency_ms")) * time.Millisecond,
			Timestamp: time.Now().UTC(),
		}
		if rapid.Bool().Draw(rt, "has_confidence") {
			m.Confidence = rapid.Float64Range(0.01, 1).Draw(rt, "confidence")
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// 任意指标序列下快照字段必须有界，且滚动窗口的统计值与对窗口尾部
// 重新全量计算的结果一致（校验增量淘汰路径）。
func TestProperty_Monitor_WindowStatsMatchRecompute(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.HistoryCap = rapid.IntRange(1, 8).Draw(rt, "history_cap")
		cfg.LatencyThreshold = time.Second
		m := NewMonitor(nil, nil, cfg, zap.NewNop())

		metrics := drawMetrics(rt, "agent-x")
		for _, metric := range metrics {
			m.RecordMetric(metric)
		}

		tail := metrics
		if len(tail) > cfg.HistoryCap {
			tail = tail[len(tail)-cfg.HistoryCap:]
		}

		var (
			successes  int
			latencySum time.Duration
			confSum    float64
			confCount  int
		)
		for _, metric := range tail {
			if metric.Success {
				successes++
			}
			latencySum += metric.Latency
			if metric.Confidence > 0 {
				confSum += metric.Confidence
				confCount++
			}
		}
		wantRate := float64(successes) / float64(len(tail))
		wantLatency := latencySum / time.Duration(len(tail))
		wantConfidence := 0.0
		if confCount > 0 {
			wantConfidence = confSum / float64(confCount)
		}

		h := m.Health("agent-x")
		assert.GreaterOrEqual(t, h.HealthScore, 0.0)
		assert.LessOrEqual(t, h.HealthScore, 1.0)
		assert.InDelta(t, wantRate, h.SuccessRate, 1e-12)
		assert.Equal(t, wantLatency, h.ResponseTime)
		assert.InDelta(t, wantConfidence, h.MeanConfidence, 1e-9)
		assert.Equal(t, len(metrics), h.TotalRequests)

		rts := math.Max(0, 1-float64(wantLatency)/float64(cfg.LatencyThreshold))
		wantScore := math.Min(1, 0.3*rts+0.5*wantRate+0.2*wantConfidence)
		assert.InDelta(t, wantScore, h.HealthScore, 1e-9)
	})
}

// 状态分级必须与公开的阈值语义一致：低于可用性下限为 unhealthy，
// 高延迟或成功率低于 0.98 为 degraded，其余为 healthy。
func TestProperty_Monitor_StatusConsistentWithThresholds(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultConfig()
		cfg.LatencyThreshold = time.Second
		m := NewMonitor(nil, nil, cfg, zap.NewNop())

		for _, metric := range drawMetrics(rt, "agent-x") {
			m.RecordMetric(metric)
		}

		h := m.Health("agent-x")
		switch h.Status {
		case types.HealthUnhealthy:
			assert.Less(t, h.SuccessRate, cfg.AvailabilityThreshold)
		case types.HealthDegraded:
			assert.GreaterOrEqual(t, h.SuccessRate, cfg.AvailabilityThreshold)
			assert.True(t, h.ResponseTime > cfg.LatencyThreshold || h.SuccessRate < successRateDegraded)
		case types.HealthHealthy:
			assert.GreaterOrEqual(t, h.SuccessRate, successRateDegraded)
			assert.LessOrEqual(t, h.ResponseTime, cfg.LatencyThreshold)
		default:
			t.Fatalf("unexpected status %s for agent with data", h.Status)
		}
	})
}

// 同一 (agent, type) 组合在冷却窗口内最多存在一条未解决告警。
func TestProperty_Monitor_AlertsDedupedPerAgentAndType(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		m := NewMonitor(nil, nil, nil, zap.NewNop())

		agents := []string{"a", "b", "c"}
		n := rapid.IntRange(1, 60).Draw(rt, "metric_count")
		for i := 0; i < n; i++ {
			m.RecordMetric(types.AgentMetric{
				AgentID:   rapid.SampledFrom(agents).Draw(rt, "agent"),
				Success:   rapid.Bool().Draw(rt, "success"),
				Latency:   time.Duration(rapid.IntRange(0, 10000).Draw(rt, "latency_ms")) * time.Millisecond,
				Timestamp: time.Now().UTC(),
			})
		}

		seen := make(map[string]int)
		for _, a := range m.Alerts(false) {
			seen[a.AgentID+"/"+string(a.Type)]++
		}
		for key, count := range seen {
			assert.Equal(t, 1, count, "duplicate active alert for %s", key)
		}
	})
}

// 系统级摘要的计数与评分必须对得上每个 agent 的快照。
func TestProperty_Monitor_SystemHealthAccounting(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		m := NewMonitor(nil, nil, nil, zap.NewNop())

		agentCount := rapid.IntRange(1, 5).Draw(rt, "agent_count")
		ids := []string{"a", "b", "c", "d", "e"}[:agentCount]
		for _, id := range ids {
			for _, metric := range drawMetrics(rt, id) {
				m.RecordMetric(metric)
			}
		}

		all := m.AllHealth()
		require.Len(t, all, agentCount)

		summary := m.SystemHealth()
		assert.Equal(t, agentCount, summary.AgentCount)
		assert.Equal(t, agentCount, summary.HealthyAgents+summary.DegradedAgents+summary.UnhealthyAgents)
		assert.GreaterOrEqual(t, summary.MeanScore, 0.0)
		assert.LessOrEqual(t, summary.MeanScore, 1.0)

		var sum float64
		for _, h := range all {
			sum += h.HealthScore
		}
		assert.InDelta(t, sum/float64(agentCount), summary.MeanScore, 1e-9)
		assert.NotEqual(t, types.HealthUnknown, summary.Status)
	})
}
