package api

import (
	"strings"
	"time"

	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 核验请求类型
// =============================================================================

// VerifyRequest 表示一次内容核验请求。
// @Description 内容核验请求结构
type VerifyRequest struct {
	// 待核验内容（文本、URL 或媒体引用）
	Content string `json:"content" example:"Breaking: scientists discover..." binding:"required"`
	// 内容类型（text、url、image、video、social_media、news、academic）
	ContentKind string `json:"content_kind" example:"news" binding:"required"`
	// 请求优先级（low、medium、high、critical），默认 medium
	Priority string `json:"priority,omitempty" example:"medium"`
	// 内容语言（BCP-47 码，如 en、zh）
	Language string `json:"language,omitempty" example:"en"`
	// 来源平台（社交内容适用）
	Platform string `json:"platform,omitempty" example:"twitter"`
	// 来源 URL
	URL string `json:"url,omitempty" example:"https://example.com/article"`
	// 路由标签
	Tags []string `json:"tags,omitempty"`
	// 自定义元数据
	Extra map[string]string `json:"extra,omitempty"`
}

// Validate 校验请求字段并返回规范化的领域错误。
func (r *VerifyRequest) Validate() *types.Error {
	if strings.TrimSpace(r.Content) == "" {
		return types.NewError(types.ErrInvalidRequest, "content is required")
	}
	if !types.ContentKind(r.ContentKind).IsValid() {
		return types.NewError(types.ErrInvalidRequest, "unknown content kind: "+r.ContentKind)
	}
	switch types.Priority(r.Priority) {
	case "", types.PriorityLow, types.PriorityMedium, types.PriorityHigh, types.PriorityCritical:
	default:
		return types.NewError(types.ErrInvalidRequest, "unknown priority: "+r.Priority)
	}
	return nil
}

// ToVerificationRequest 构造带身份与时间戳的领域请求。
func (r *VerifyRequest) ToVerificationRequest() *types.VerificationRequest {
	meta := types.RequestMetadata{
		Language: r.Language,
		Platform: r.Platform,
		URL:      r.URL,
		Tags:     r.Tags,
		Extra:    r.Extra,
	}
	return types.NewVerificationRequest(
		r.Content,
		types.ContentKind(r.ContentKind),
		meta,
		types.Priority(r.Priority),
	)
}

// =============================================================================
// 核验响应类型
// =============================================================================

// Decision is a type alias for types.DecisionResult to avoid duplicate
// definitions. The canonical definition lives in types.DecisionResult
// (types/decision.go).
type Decision = types.DecisionResult

// DecisionListResponse 表示裁决历史列表。
// @Description 裁决列表响应
type DecisionListResponse struct {
	// 裁决列表，按时间从新到旧
	Decisions []*Decision `json:"decisions"`
	// 返回条数
	Count int `json:"count" example:"20"`
}

// =============================================================================
// 代理与健康类型
// =============================================================================

// AgentInfo 表示一个已注册代理的静态描述。
// @Description 代理描述结构
type AgentInfo struct {
	// 代理 ID
	ID string `json:"id" example:"content-analysis"`
	// 显示名称
	Name string `json:"name" example:"Content Analysis"`
	// 支持的内容类型
	ContentKinds []types.ContentKind `json:"content_kinds"`
	// 单次分析时长上限
	MaxProcessingTime string `json:"max_processing_time" example:"3s"`
	// 当前是否可用
	Available bool `json:"available" example:"true"`
}

// AgentListResponse 表示已注册代理列表。
// @Description 代理列表响应
type AgentListResponse struct {
	// 代理列表
	Agents []AgentInfo `json:"agents"`
	// 代理数量
	Count int `json:"count" example:"8"`
}

// AgentHealthListResponse 表示全体代理的健康快照。
// @Description 代理健康列表响应
type AgentHealthListResponse struct {
	// 按代理 ID 索引的健康快照
	Agents map[string]types.AgentHealth `json:"agents"`
	// 代理数量
	Count int `json:"count" example:"8"`
}

// AlertListResponse 表示健康告警列表。
// @Description 告警列表响应
type AlertListResponse struct {
	// 告警列表，按创建时间从新到旧
	Alerts []types.HealthAlert `json:"alerts"`
	// 返回条数
	Count int `json:"count" example:"2"`
}

// =============================================================================
// 服务信息类型
// =============================================================================

// VersionInfo 表示构建版本信息。
// @Description 版本信息结构
type VersionInfo struct {
	// 语义化版本号
	Version string `json:"version" example:"1.0.0"`
	// 构建时间
	BuildTime string `json:"build_time,omitempty" example:"2026-01-02T15:04:05Z"`
	// 构建提交哈希
	GitCommit string `json:"git_commit,omitempty" example:"abc1234"`
}

// ServiceStatus 表示探针端点的响应体。
// @Description 服务状态结构
type ServiceStatus struct {
	// 服务状态（healthy、unhealthy）
	Status string `json:"status" example:"healthy"`
	// 响应时间戳
	Timestamp time.Time `json:"timestamp"`
	// 逐项依赖检查结果（仅就绪探针）
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 表示单项依赖检查结果。
// @Description 依赖检查结果
type CheckResult struct {
	// 检查状态（pass、fail）
	Status string `json:"status" example:"pass"`
	// 失败信息
	Message string `json:"message,omitempty"`
	// 检查耗时
	Latency string `json:"latency,omitempty" example:"1ms"`
}
