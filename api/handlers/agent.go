package handlers

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/api"
	"github.com/veriflow-ai/veriflow/health"
	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 🤖 代理与健康查询 Handler
// =============================================================================

// AgentHandler 代理注册表与健康监控查询处理器
type AgentHandler struct {
	registry *agent.Registry
	monitor  *health.Monitor
	logger   *zap.Logger
}

// NewAgentHandler 创建代理查询处理器
func NewAgentHandler(registry *agent.Registry, monitor *health.Monitor, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{
		registry: registry,
		monitor:  monitor,
		logger:   logger,
	}
}

// HandleListAgents 列出已注册代理
// @Summary 代理列表
// @Description 返回全部已注册代理的静态描述与可用性
// @Tags 代理
// @Produce json
// @Success 200 {object} Response{data=api.AgentListResponse} "代理列表"
// @Security ApiKeyAuth
// @Router /api/v1/agents [get]
func (h *AgentHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.registry.List()

	infos := make([]api.AgentInfo, 0, len(agents))
	for _, a := range agents {
		infos = append(infos, api.AgentInfo{
			ID:                a.ID(),
			Name:              a.Name(),
			ContentKinds:      a.SupportedContentKinds(),
			MaxProcessingTime: a.MaxProcessingTime().String(),
			Available:         a.IsAvailable(r.Context()),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	WriteSuccess(w, r, api.AgentListResponse{
		Agents: infos,
		Count:  len(infos),
	})
}

// HandleAllAgentHealth 返回全体代理的健康快照
// @Summary 代理健康总览
// @Description 返回监控器维护的全部代理健康快照
// @Tags 代理
// @Produce json
// @Success 200 {object} Response{data=api.AgentHealthListResponse} "健康快照"
// @Security ApiKeyAuth
// @Router /api/v1/agents/health [get]
func (h *AgentHandler) HandleAllAgentHealth(w http.ResponseWriter, r *http.Request) {
	snapshots := h.monitor.AllHealth()

	WriteSuccess(w, r, api.AgentHealthListResponse{
		Agents: snapshots,
		Count:  len(snapshots),
	})
}

// HandleAgentHealth 返回单个代理的健康快照
// @Summary 代理健康
// @Description 按代理 ID 返回健康快照；未注册的代理返回 404
// @Tags 代理
// @Produce json
// @Param id path string true "代理 ID"
// @Success 200 {object} Response{data=types.AgentHealth} "健康快照"
// @Failure 404 {object} Response "代理不存在"
// @Security ApiKeyAuth
// @Router /api/v1/agents/health/{id} [get]
func (h *AgentHandler) HandleAgentHealth(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	if agentID == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest,
			types.ErrInvalidRequest, "agent id is required", h.logger)
		return
	}

	if _, err := h.registry.Get(agentID); err != nil {
		WriteErrorMessage(w, r, http.StatusNotFound,
			types.ErrAgentNotFound, "agent not registered: "+agentID, h.logger)
		return
	}

	WriteSuccess(w, r, h.monitor.Health(agentID))
}

// HandleSystemHealth 返回系统级健康摘要
// @Summary 系统健康
// @Description 返回全体代理聚合的系统健康摘要与活跃告警数
// @Tags 代理
// @Produce json
// @Success 200 {object} Response{data=types.SystemHealth} "系统健康摘要"
// @Security ApiKeyAuth
// @Router /api/v1/system/health [get]
func (h *AgentHandler) HandleSystemHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.monitor.SystemHealth())
}
