// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 工作流指标
	workflowsTotal   *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	workflowAgents   prometheus.Histogram
	activeWorkflows  prometheus.Gauge

	// Agent 指标
	agentInvocationsTotal *prometheus.CounterVec
	agentLatency          *prometheus.HistogramVec
	agentHealthScore      *prometheus.GaugeVec

	// 决策指标
	verificationsTotal   *prometheus.CounterVec
	verificationDuration prometheus.Histogram

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 告警指标
	alertsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 工作流指标
	c.workflowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_total",
			Help:      "Total number of workflow executions by terminal status",
		},
		[]string{"status"},
	)

	c.workflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	c.workflowAgents = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_agents",
			Help:      "Number of agents selected per workflow",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	c.activeWorkflows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workflows",
			Help:      "Number of workflows currently executing",
		},
	)

	// Agent 指标
	c.agentInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_invocations_total",
			Help:      "Total number of agent invocations",
		},
		[]string{"agent_id", "outcome"},
	)

	c.agentLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_latency_seconds",
			Help:      "Agent analysis latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"agent_id"},
	)

	c.agentHealthScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_health_score",
			Help:      "Composite agent health score in [0,1]",
		},
		[]string{"agent_id"},
	)

	// 决策指标
	c.verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of completed verifications",
		},
		[]string{"verdict", "certainty"},
	)

	c.verificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_duration_seconds",
			Help:      "End-to-end verification pipeline duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// 告警指标
	c.alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_alerts_total",
			Help:      "Total number of health alerts raised",
		},
		[]string{"type", "severity"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔀 工作流指标记录
// =============================================================================

// RecordWorkflow 记录一次到达终态的工作流执行
func (c *Collector) RecordWorkflow(status types.WorkflowStatus, duration time.Duration, agents int) {
	c.workflowsTotal.WithLabelValues(string(status)).Inc()
	c.workflowDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
	c.workflowAgents.Observe(float64(agents))
}

// WorkflowStarted 增加在途工作流计数
func (c *Collector) WorkflowStarted() {
	c.activeWorkflows.Inc()
}

// WorkflowFinished 减少在途工作流计数
func (c *Collector) WorkflowFinished() {
	c.activeWorkflows.Dec()
}

// =============================================================================
// 🤖 Agent 指标记录
// =============================================================================

// RecordAgentInvocation 记录一次 Agent 调用的结局与耗时
func (c *Collector) RecordAgentInvocation(agentID string, success bool, latency time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.agentInvocationsTotal.WithLabelValues(agentID, outcome).Inc()
	c.agentLatency.WithLabelValues(agentID).Observe(latency.Seconds())
}

// SetAgentHealthScore 上报 Agent 综合健康分
func (c *Collector) SetAgentHealthScore(agentID string, score float64) {
	c.agentHealthScore.WithLabelValues(agentID).Set(score)
}

// =============================================================================
// ⚖️ 决策指标记录
// =============================================================================

// RecordVerification 记录一次完整核验的最终裁决与端到端耗时
func (c *Collector) RecordVerification(verdict types.Verdict, certainty types.Certainty, duration time.Duration) {
	c.verificationsTotal.WithLabelValues(string(verdict), string(certainty)).Inc()
	c.verificationDuration.Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cache string) {
	c.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cache string) {
	c.cacheMisses.WithLabelValues(cache).Inc()
}

// =============================================================================
// 🚨 告警指标记录
// =============================================================================

// RecordAlert 记录健康监控产生的告警
func (c *Collector) RecordAlert(alertType types.AlertType, severity types.AlertSeverity) {
	c.alertsTotal.WithLabelValues(string(alertType), string(severity)).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
