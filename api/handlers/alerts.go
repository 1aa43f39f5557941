package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/api"
	"github.com/veriflow-ai/veriflow/health"
	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 🚨 健康告警 Handler
// =============================================================================

// AlertHandler 健康告警查询与处置处理器
type AlertHandler struct {
	monitor *health.Monitor
	logger  *zap.Logger
}

// NewAlertHandler 创建告警处理器
func NewAlertHandler(monitor *health.Monitor, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{
		monitor: monitor,
		logger:  logger,
	}
}

// HandleListAlerts 列出健康告警
// @Summary 告警列表
// @Description 返回活跃告警；include_resolved=true 时包含已解决告警
// @Tags 告警
// @Produce json
// @Param include_resolved query bool false "包含已解决告警"
// @Success 200 {object} Response{data=api.AlertListResponse} "告警列表"
// @Security ApiKeyAuth
// @Router /api/v1/alerts [get]
func (h *AlertHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	includeResolved := false
	if raw := r.URL.Query().Get("include_resolved"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			WriteErrorMessage(w, r, http.StatusBadRequest,
				types.ErrInvalidRequest, "include_resolved must be a boolean", h.logger)
			return
		}
		includeResolved = parsed
	}

	alerts := h.monitor.Alerts(includeResolved)

	WriteSuccess(w, r, api.AlertListResponse{
		Alerts: alerts,
		Count:  len(alerts),
	})
}

// HandleResolveAlert 手动解决一条告警
// @Summary 解决告警
// @Description 将指定告警标记为已解决；重复解决幂等成功
// @Tags 告警
// @Produce json
// @Param id path string true "告警 ID"
// @Success 200 {object} Response "已解决"
// @Failure 404 {object} Response "告警不存在"
// @Security ApiKeyAuth
// @Router /api/v1/alerts/{id}/resolve [post]
func (h *AlertHandler) HandleResolveAlert(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("id")
	if alertID == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest,
			types.ErrInvalidRequest, "alert id is required", h.logger)
		return
	}

	if err := h.monitor.ResolveAlert(alertID); err != nil {
		if types.IsErrorCode(err, types.ErrAlertNotFound) {
			WriteErrorMessage(w, r, http.StatusNotFound,
				types.ErrAlertNotFound, "alert not found: "+alertID, h.logger)
			return
		}
		WriteError(w, r,
			types.NewError(types.ErrInternalError, "failed to resolve alert").WithCause(err), h.logger)
		return
	}

	h.logger.Info("alert resolved via API", zap.String("alert_id", alertID))
	WriteSuccess(w, r, map[string]string{"alert_id": alertID, "status": "resolved"})
}
