package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

var _ agent.Agent = (*SocialMediaAnalyst)(nil)

// SocialMediaAnalyst 检测社交内容的病毒式操纵特征：催促转发措辞
// 与标签堆砌。
type SocialMediaAnalyst struct {
	base
	config *Config
}

// NewSocialMediaAnalyst 创建社交媒体分析 Agent。
func NewSocialMediaAnalyst(cfg *Config, logger *zap.Logger) *SocialMediaAnalyst {
	return &SocialMediaAnalyst{
		base: newBase("social-media-analyst", "Social Media Analyst",
			[]types.ContentKind{
				types.ContentKindSocialMedia,
				types.ContentKindText,
				types.ContentKindURL,
				types.ContentKindNews,
			},
			2*time.Second, logger),
		config: cfg,
	}
}

func (a *SocialMediaAnalyst) Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error) {
	start, err := a.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	content := req.Content
	words := len(strings.Fields(content))
	hashtags := countMarkers(content, '#')
	mentions := countMarkers(content, '@')
	density := 0.0
	if words > 0 {
		density = float64(hashtags) / float64(words)
	}
	urgency := containsPhrase(content, a.config.UrgencyPhrases)

	meta := map[string]string{
		"hashtags":        fmt.Sprintf("%d", hashtags),
		"mentions":        fmt.Sprintf("%d", mentions),
		"hashtag_density": fmt.Sprintf("%.2f", density),
	}

	var evidence []types.Evidence
	if p := req.Metadata.Platform; p != "" {
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceSource,
			Title:       "platform context: " + p,
			Reliability: 0.5,
		})
	}

	var (
		verdict    types.Verdict
		confidence float64
		reasoning  string
	)
	switch {
	case len(urgency) >= 1:
		verdict = types.VerdictMisleading
		confidence = min(0.8, 0.65+0.05*float64(len(urgency)))
		reasoning = "viral urgency phrasing: " + strings.Join(urgency, ", ")
	case hashtags >= 3 && density > a.config.MaxHashtagDensity:
		verdict = types.VerdictMisleading
		confidence = 0.6
		reasoning = fmt.Sprintf("hashtag stuffing: %d hashtags across %d words", hashtags, words)
	default:
		verdict = types.VerdictVerifiedTrue
		confidence = 0.55
		reasoning = "no virality manipulation markers"
	}

	return a.finish(start, verdict, confidence, reasoning, evidence, meta), nil
}

// countMarkers 统计后面紧跟字母或数字的标记符出现次数。
func countMarkers(content string, marker rune) int {
	n := 0
	runes := []rune(content)
	for i, r := range runes {
		if r != marker || i+1 >= len(runes) {
			continue
		}
		next := runes[i+1]
		if unicode.IsLetter(next) || unicode.IsDigit(next) {
			n++
		}
	}
	return n
}
