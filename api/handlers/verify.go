package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/api"
	"github.com/veriflow-ai/veriflow/persistence"
	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 🔍 内容核验 Handler
// =============================================================================

// Verifier 执行一次完整核验流水线。由引擎门面实现。
type Verifier interface {
	Verify(ctx context.Context, req *types.VerificationRequest) (*types.DecisionResult, error)
}

// VerifyHandler 核验接口处理器
type VerifyHandler struct {
	verifier Verifier
	store    persistence.Store
	logger   *zap.Logger

	// 单次核验的服务端兜底超时
	timeout time.Duration
}

// NewVerifyHandler 创建核验处理器。store 可为 nil（历史查询将返回 503）。
func NewVerifyHandler(verifier Verifier, store persistence.Store, logger *zap.Logger) *VerifyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerifyHandler{
		verifier: verifier,
		store:    store,
		logger:   logger,
		timeout:  2 * time.Minute,
	}
}

// HandleVerify 同步执行核验流水线并返回最终裁决
// @Summary 内容核验
// @Description 路由、调度、聚合并裁决一段内容的可信度
// @Tags 核验
// @Accept json
// @Produce json
// @Param request body api.VerifyRequest true "核验请求"
// @Success 200 {object} Response{data=api.Decision} "最终裁决"
// @Failure 400 {object} Response "无效请求"
// @Failure 422 {object} Response "无可用代理"
// @Security ApiKeyAuth
// @Router /api/v1/verify [post]
func (h *VerifyHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.VerifyRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := req.Validate(); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	domainReq := req.ToVerificationRequest()

	start := time.Now()
	decision, err := h.verifier.Verify(ctx, domainReq)
	if err != nil {
		h.writeVerifyError(w, r, err)
		return
	}

	h.logger.Info("verification served",
		zap.String("request_id", domainReq.ID),
		zap.String("content_kind", string(domainReq.ContentKind)),
		zap.String("verdict", string(decision.Verdict)),
		zap.Float64("confidence", decision.Confidence),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, r, decision)
}

// writeVerifyError 将流水线错误规范化为领域错误信封。
func (h *VerifyHandler) writeVerifyError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		domainErr = types.NewError(types.ErrInternalError, "verification failed").WithCause(err)
	}
	WriteError(w, r, domainErr, h.logger)
}

// HandleGetDecision 按请求 ID 查询已存裁决
// @Summary 查询裁决
// @Description 按请求 ID 返回历史库中的裁决记录
// @Tags 核验
// @Produce json
// @Param id path string true "请求 ID"
// @Success 200 {object} Response{data=api.Decision} "裁决记录"
// @Failure 404 {object} Response "记录不存在"
// @Security ApiKeyAuth
// @Router /api/v1/verifications/{id} [get]
func (h *VerifyHandler) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable,
			types.ErrServiceUnavailable, "verification history store is not configured", h.logger)
		return
	}

	requestID := r.PathValue("id")
	if requestID == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest,
			types.ErrInvalidRequest, "request id is required", h.logger)
		return
	}

	decision, err := h.store.GetDecision(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			WriteErrorMessage(w, r, http.StatusNotFound,
				types.ErrWorkflowNotFound, "no decision stored for request "+requestID, h.logger)
			return
		}
		WriteError(w, r,
			types.NewError(types.ErrStoreFailure, "failed to load decision").WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, r, decision)
}

// HandleListDecisions 列出最近的裁决
// @Summary 裁决列表
// @Description 按时间从新到旧返回最近裁决；limit 默认 20、上限 100
// @Tags 核验
// @Produce json
// @Param limit query int false "返回条数"
// @Success 200 {object} Response{data=api.DecisionListResponse} "裁决列表"
// @Security ApiKeyAuth
// @Router /api/v1/verifications [get]
func (h *VerifyHandler) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable,
			types.ErrServiceUnavailable, "verification history store is not configured", h.logger)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteErrorMessage(w, r, http.StatusBadRequest,
				types.ErrInvalidRequest, "limit must be a positive integer", h.logger)
			return
		}
		limit = min(parsed, 100)
	}

	decisions, err := h.store.ListDecisions(r.Context(), limit)
	if err != nil {
		WriteError(w, r,
			types.NewError(types.ErrStoreFailure, "failed to list decisions").WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, r, api.DecisionListResponse{
		Decisions: decisions,
		Count:     len(decisions),
	})
}
