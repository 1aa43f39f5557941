// Package router 根据内容类别规则与实时可用性为核验请求选择 Agent
// 候选集，并给出依赖感知的执行顺序与耗时预估。
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

// Plan 是路由结果：选中的 Agent、执行顺序、耗时预估与决策说明。
type Plan struct {
	SelectedAgents []string       `json:"selected_agents"`
	ExecutionOrder []string       `json:"execution_order"`
	EstimatedTime  time.Duration  `json:"estimated_time"`
	Reasoning      []string       `json:"reasoning"`
	ContentKind    types.ContentKind `json:"content_kind"`
}

// Empty 报告路由是否没有选出任何候选 Agent。空选择由调用方决定如何
// 失败（NO_CANDIDATE_AGENTS），路由本身不视为错误。
func (p *Plan) Empty() bool {
	return len(p.SelectedAgents) == 0
}

// Config 路由器配置
type Config struct {
	// BaseTable 内容类别到基础 Agent 列表的静态映射
	BaseTable map[types.ContentKind][]string `yaml:"base_table"`

	// Dependencies Agent 间的静态两两依赖表
	Dependencies map[string][]string `yaml:"dependencies"`

	// DefaultLanguage 默认语言，元数据语言不同于此值时追加语言专家
	DefaultLanguage string `yaml:"default_language"`

	// SocialPlatforms 触发社交分析的元数据平台名单
	SocialPlatforms []string `yaml:"social_platforms"`

	// LanguageSpecialist / SocialAnalyst / EducationSpecialist 动态增补的 Agent ID
	LanguageSpecialist  string `yaml:"language_specialist"`
	SocialAnalyst       string `yaml:"social_analyst"`
	EducationSpecialist string `yaml:"education_specialist"`

	// OverheadFactor 耗时预估的固定开销系数
	OverheadFactor float64 `yaml:"overhead_factor"`
}

// DefaultConfig 返回内置路由表。Agent 名称与 agent/builtin 的注册名一致。
func DefaultConfig() *Config {
	return &Config{
		BaseTable: map[types.ContentKind][]string{
			types.ContentKindText:        {"content-analysis", "fact-check", "source-credibility"},
			types.ContentKindURL:         {"content-analysis", "source-credibility", "cross-reference"},
			types.ContentKindNews:        {"content-analysis", "fact-check", "source-credibility", "cross-reference"},
			types.ContentKindSocialMedia: {"content-analysis", "fact-check", "social-media-analyst"},
			types.ContentKindAcademic:    {"content-analysis", "fact-check", "education-specialist"},
			types.ContentKindImage:       {"media-forensics", "cross-reference"},
			types.ContentKindVideo:       {"media-forensics", "cross-reference"},
		},
		Dependencies: map[string][]string{
			"source-credibility":   {"content-analysis"},
			"cross-reference":      {"content-analysis", "fact-check"},
			"social-media-analyst": {"content-analysis"},
			"education-specialist": {"content-analysis"},
		},
		DefaultLanguage: "en",
		SocialPlatforms: []string{
			"twitter", "x", "facebook", "instagram", "tiktok", "weibo", "reddit", "youtube",
		},
		LanguageSpecialist:  "language-specialist",
		SocialAnalyst:       "social-media-analyst",
		EducationSpecialist: "education-specialist",
		OverheadFactor:      1.2,
	}
}

// Router 请求路由器
type Router struct {
	registry *agent.Registry
	config   *Config
	logger   *zap.Logger
}

// NewRouter 创建路由器。registry 为显式注入的依赖。
func NewRouter(registry *agent.Registry, config *Config, logger *zap.Logger) *Router {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry: registry,
		config:   config,
		logger:   logger.With(zap.String("component", "router")),
	}
}

// Route 为请求选择候选 Agent 集合与执行顺序。
// 零候选不是路由错误：返回空 Plan，由调用方裁定失败。
func (r *Router) Route(ctx context.Context, req *types.VerificationRequest) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reasoning := make([]string, 0, 8)

	kind := r.reclassify(req, &reasoning)

	candidates := r.baseAgents(kind, &reasoning)
	candidates = r.augment(req, kind, candidates, &reasoning)
	selected := r.filter(ctx, kind, candidates, &reasoning)

	if len(selected) == 0 {
		reasoning = append(reasoning, "no available agents support content kind "+string(kind))
		r.logger.Warn("routing selected zero agents",
			zap.String("request_id", req.ID),
			zap.String("content_kind", string(kind)),
		)
		return &Plan{
			SelectedAgents: []string{},
			ExecutionOrder: []string{},
			Reasoning:      reasoning,
			ContentKind:    kind,
		}, nil
	}

	order, err := topoSort(selected, r.config.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("ordering agents for request %s: %w", req.ID, err)
	}
	reasoning = append(reasoning, fmt.Sprintf("execution order resolved across %d agents", len(order)))

	estimated := r.estimate(ctx, selected, req.Priority)
	reasoning = append(reasoning, fmt.Sprintf("estimated time %s at priority %s", estimated, req.Priority))

	r.logger.Debug("request routed",
		zap.String("request_id", req.ID),
		zap.Strings("selected", selected),
		zap.Strings("order", order),
		zap.Duration("estimated", estimated),
	)

	return &Plan{
		SelectedAgents: selected,
		ExecutionOrder: order,
		EstimatedTime:  estimated,
		Reasoning:      reasoning,
		ContentKind:    kind,
	}, nil
}

// reclassify 根据元数据修正内容类别
func (r *Router) reclassify(req *types.VerificationRequest, reasoning *[]string) types.ContentKind {
	kind := req.ContentKind

	if (kind == types.ContentKindText || kind == types.ContentKindNews) && r.isSocialPlatform(req.Metadata.Platform) {
		*reasoning = append(*reasoning, fmt.Sprintf(
			"content kind reclassified from %s to %s (platform: %s)",
			kind, types.ContentKindSocialMedia, req.Metadata.Platform))
		return types.ContentKindSocialMedia
	}

	if kind == types.ContentKindText && r.isEducational(req) {
		*reasoning = append(*reasoning, fmt.Sprintf(
			"content kind reclassified from %s to %s (educational tags)",
			kind, types.ContentKindAcademic))
		return types.ContentKindAcademic
	}

	return kind
}

func (r *Router) baseAgents(kind types.ContentKind, reasoning *[]string) []string {
	base := r.config.BaseTable[kind]
	out := append([]string(nil), base...)
	*reasoning = append(*reasoning, fmt.Sprintf("base agents for %s: %s", kind, strings.Join(out, ", ")))
	return out
}

// augment 按元数据规则动态增补候选
func (r *Router) augment(req *types.VerificationRequest, kind types.ContentKind, candidates []string, reasoning *[]string) []string {
	add := func(id, why string) {
		for _, c := range candidates {
			if c == id {
				return
			}
		}
		candidates = append(candidates, id)
		*reasoning = append(*reasoning, fmt.Sprintf("added %s (%s)", id, why))
	}

	if lang := req.Metadata.Language; lang != "" && !strings.EqualFold(lang, r.config.DefaultLanguage) {
		add(r.config.LanguageSpecialist, "language: "+lang)
	}
	if r.isSocialPlatform(req.Metadata.Platform) {
		add(r.config.SocialAnalyst, "platform: "+req.Metadata.Platform)
	}
	if kind == types.ContentKindAcademic || r.isEducational(req) {
		add(r.config.EducationSpecialist, "educational content")
	}

	return candidates
}

// filter 过滤到当前可用且支持该内容类别的 Agent
func (r *Router) filter(ctx context.Context, kind types.ContentKind, candidates []string, reasoning *[]string) []string {
	selected := make([]string, 0, len(candidates))
	for _, id := range candidates {
		a, err := r.registry.Get(id)
		if err != nil {
			*reasoning = append(*reasoning, "filtered unregistered agent: "+id)
			continue
		}
		if !a.IsAvailable(ctx) {
			*reasoning = append(*reasoning, "filtered unavailable agent: "+id)
			continue
		}
		if !agent.Supports(a, kind) {
			*reasoning = append(*reasoning, fmt.Sprintf("filtered agent %s: does not support %s", id, kind))
			continue
		}
		selected = append(selected, id)
	}
	return selected
}

// estimate 预估执行耗时：Σ(maxProcessingTime) × 优先级系数 × 固定开销
func (r *Router) estimate(ctx context.Context, selected []string, priority types.Priority) time.Duration {
	var total time.Duration
	for _, id := range selected {
		if a, err := r.registry.Get(id); err == nil {
			total += a.MaxProcessingTime()
		}
	}
	scaled := float64(total) * priority.EstimateMultiplier() * r.config.OverheadFactor
	return time.Duration(scaled)
}

func (r *Router) isSocialPlatform(platform string) bool {
	if platform == "" {
		return false
	}
	for _, p := range r.config.SocialPlatforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

func (r *Router) isEducational(req *types.VerificationRequest) bool {
	return req.Metadata.HasTag("education") ||
		req.Metadata.HasTag("educational") ||
		req.Metadata.HasTag("academic")
}
