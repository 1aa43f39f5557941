package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/api"
)

// =============================================================================
// 🏥 服务探针 Handler
// =============================================================================

// HealthCheck 就绪探针的单项依赖检查
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeHandler 服务探针处理器（liveness / readiness / version）
type ProbeHandler struct {
	logger *zap.Logger
	checks []HealthCheck
	mu     sync.RWMutex
}

// NewProbeHandler 创建探针处理器
func NewProbeHandler(logger *zap.Logger) *ProbeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProbeHandler{
		logger: logger,
		checks: make([]HealthCheck, 0),
	}
}

// RegisterCheck 注册一项就绪依赖检查
func (h *ProbeHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// HandleHealthz 活跃度探针：进程在即健康
// @Summary 活跃度探针
// @Description Kubernetes liveness 探针端点
// @Tags 探针
// @Produce json
// @Success 200 {object} api.ServiceStatus "服务存活"
// @Router /healthz [get]
func (h *ProbeHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, api.ServiceStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// HandleReady 就绪探针：逐项执行依赖检查
// @Summary 就绪探针
// @Description 检查历史库、缓存等依赖是否就绪
// @Tags 探针
// @Produce json
// @Success 200 {object} api.ServiceStatus "服务就绪"
// @Failure 503 {object} api.ServiceStatus "依赖未就绪"
// @Router /ready [get]
func (h *ProbeHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := api.ServiceStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]api.CheckResult, len(checks)),
	}

	allHealthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := api.CheckResult{
			Status:  "pass",
			Latency: latency.String(),
		}

		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			allHealthy = false

			h.logger.Warn("readiness check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}

		status.Checks[check.Name()] = result
	}

	if !allHealthy {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion 返回构建版本信息
// @Summary 版本信息
// @Description 返回版本号、构建时间与提交哈希
// @Tags 探针
// @Produce json
// @Success 200 {object} Response{data=api.VersionInfo} "版本信息"
// @Router /version [get]
func (h *ProbeHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, api.VersionInfo{
			Version:   version,
			BuildTime: buildTime,
			GitCommit: gitCommit,
		})
	}
}

// =============================================================================
// 🔧 内置依赖检查实现
// =============================================================================

// PingCheck 将任意 ping 函数适配为 HealthCheck（历史库、缓存等）
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck 创建 ping 型依赖检查
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{
		name: name,
		ping: ping,
	}
}

func (c *PingCheck) Name() string { return c.name }

func (c *PingCheck) Check(ctx context.Context) error { return c.ping(ctx) }
