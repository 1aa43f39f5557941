package builtin

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

// Config 内置 Agent 的启发式参数。零值字段由 normalize 填充默认值。
type Config struct {
	// TokenizerEncoding tiktoken 编码名，内容分析 Agent 的 token 统计使用
	TokenizerEncoding string `yaml:"tokenizer_encoding"`

	// MinContentLength 结构分析所需的最小内容长度（rune 数）
	MinContentLength int `yaml:"min_content_length"`

	// TrustedDomains / BlockedDomains 域名声誉表，按后缀匹配
	TrustedDomains []string `yaml:"trusted_domains"`
	BlockedDomains []string `yaml:"blocked_domains"`

	// SupportedLanguages 语言专家可评审的语言代码
	SupportedLanguages []string `yaml:"supported_languages"`

	// SensationalPhrases 煽动性措辞词表（内容分析）
	SensationalPhrases []string `yaml:"sensational_phrases"`

	// AbsoluteWords 绝对化断言词表（事实核查）
	AbsoluteWords []string `yaml:"absolute_words"`

	// UrgencyPhrases 催促转发措辞词表（社交分析）
	UrgencyPhrases []string `yaml:"urgency_phrases"`

	// MaxHashtagDensity hashtag 数与词数之比的上限，超出视为标签堆砌
	MaxHashtagDensity float64 `yaml:"max_hashtag_density"`
}

// DefaultConfig 返回内置 Agent 的默认启发式参数。
func DefaultConfig() *Config {
	return &Config{
		TokenizerEncoding: "cl100k_base",
		MinContentLength:  20,
		TrustedDomains: []string{
			"reuters.com", "apnews.com", "bbc.com", "nature.com",
			"science.org", "nih.gov", "who.int", "europa.eu",
		},
		BlockedDomains: []string{
			"example-fake-news.test", "clickbait.test",
		},
		SupportedLanguages: []string{"en", "zh", "es", "fr", "de", "ja", "pt", "ru"},
		SensationalPhrases: []string{
			"you won't believe", "shocking truth", "doctors hate",
			"what they don't want you to know", "miracle cure", "exposed!",
		},
		AbsoluteWords: []string{
			"always", "never", "everyone", "no one", "guaranteed",
			"proven", "undeniable", "100%",
		},
		UrgencyPhrases: []string{
			"share before", "retweet now", "before it's deleted",
			"before they take it down", "going viral", "wake up people",
		},
		MaxHashtagDensity: 0.3,
	}
}

func (c *Config) normalize() {
	if c.TokenizerEncoding == "" {
		c.TokenizerEncoding = "cl100k_base"
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = 20
	}
	if c.MaxHashtagDensity <= 0 {
		c.MaxHashtagDensity = 0.3
	}
	def := DefaultConfig()
	if len(c.SupportedLanguages) == 0 {
		c.SupportedLanguages = def.SupportedLanguages
	}
	if len(c.SensationalPhrases) == 0 {
		c.SensationalPhrases = def.SensationalPhrases
	}
	if len(c.AbsoluteWords) == 0 {
		c.AbsoluteWords = def.AbsoluteWords
	}
	if len(c.UrgencyPhrases) == 0 {
		c.UrgencyPhrases = def.UrgencyPhrases
	}
}

// All 构建全部内置 Agent，顺序与默认路由表的声明顺序一致。
// cfg 为 nil 时使用 DefaultConfig。
func All(cfg *Config, logger *zap.Logger) []agent.Agent {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return []agent.Agent{
		NewContentAnalysis(cfg, logger),
		NewFactCheck(cfg, logger),
		NewSourceCredibility(cfg, logger),
		NewCrossReference(cfg, logger),
		NewLanguageSpecialist(cfg, logger),
		NewSocialMediaAnalyst(cfg, logger),
		NewEducationSpecialist(cfg, logger),
		NewMediaForensics(cfg, logger),
	}
}

// base 承载各内置 Agent 共享的身份、能力声明与自报告健康计数。
// 内置 Agent 是进程内启发式，恒定可用。
type base struct {
	id            string
	name          string
	kinds         []types.ContentKind
	maxProcessing time.Duration
	logger        *zap.Logger

	mu       sync.Mutex
	requests int
	failures int
}

func newBase(id, name string, kinds []types.ContentKind, maxProcessing time.Duration, logger *zap.Logger) base {
	return base{
		id:            id,
		name:          name,
		kinds:         kinds,
		maxProcessing: maxProcessing,
		logger:        logger.With(zap.String("agent_id", id)),
	}
}

func (b *base) ID() string   { return b.id }
func (b *base) Name() string { return b.name }

func (b *base) SupportedContentKinds() []types.ContentKind {
	out := make([]types.ContentKind, len(b.kinds))
	copy(out, b.kinds)
	return out
}

func (b *base) MaxProcessingTime() time.Duration { return b.maxProcessing }

func (b *base) IsAvailable(ctx context.Context) bool { return true }

// Health 基于本地调用计数自报告健康。无调用记录时报告满分。
func (b *base) Health(ctx context.Context) types.AgentHealth {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := 1.0
	if b.requests > 0 {
		rate = float64(b.requests-b.failures) / float64(b.requests)
	}
	status := types.HealthHealthy
	switch {
	case rate < 0.5:
		status = types.HealthUnhealthy
	case rate < 0.9:
		status = types.HealthDegraded
	}
	return types.AgentHealth{
		AgentID:       b.id,
		Status:        status,
		SuccessRate:   rate,
		ErrorCount:    b.failures,
		TotalRequests: b.requests,
		HealthScore:   rate,
		LastChecked:   time.Now().UTC(),
	}
}

// begin 校验 Analyze 的公共前置条件并返回计时起点。
func (b *base) begin(ctx context.Context, req *types.VerificationRequest) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		b.observe(false)
		return time.Time{}, err
	}
	if req == nil {
		b.observe(false)
		return time.Time{}, types.NewError(types.ErrInvalidRequest, "request is nil").WithAgentID(b.id)
	}
	return time.Now(), nil
}

// finish 统一封装响应：裁定、置信度钳制到 [0,1]、延迟与时间戳。
func (b *base) finish(start time.Time, verdict types.Verdict, confidence float64, reasoning string, evidence []types.Evidence, meta map[string]string) *types.AgentResponse {
	b.observe(true)
	return &types.AgentResponse{
		AgentID:    b.id,
		Verdict:    verdict,
		Confidence: clamp01(confidence),
		Reasoning:  reasoning,
		Evidence:   evidence,
		Latency:    time.Since(start),
		Timestamp:  time.Now().UTC(),
		Metadata:   meta,
	}
}

func (b *base) observe(success bool) {
	b.mu.Lock()
	b.requests++
	if !success {
		b.failures++
	}
	b.mu.Unlock()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// containsPhrase 对词表做小写包含匹配，返回命中的短语。
func containsPhrase(content string, phrases []string) []string {
	lower := strings.ToLower(content)
	var hits []string
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			hits = append(hits, p)
		}
	}
	return hits
}

// matchesDomain 按后缀匹配域名声誉表：sub.reuters.com 命中 reuters.com。
func matchesDomain(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
