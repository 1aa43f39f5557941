package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

var _ agent.Agent = (*FactCheck)(nil)

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?%?`)

// hedgePhrases 弱化断言的措辞，命中过多时裁定为未核实
var hedgePhrases = []string{
	"reportedly", "allegedly", "sources say", "some say",
	"rumor has it", "it is said", "据传", "据说",
}

// FactCheck 对断言做机械核查：统计数字断言、绝对化措辞与传闻式
// 弱化措辞，按命中组合给出裁定。
type FactCheck struct {
	base
	config *Config
}

// NewFactCheck 创建事实核查 Agent。
func NewFactCheck(cfg *Config, logger *zap.Logger) *FactCheck {
	return &FactCheck{
		base: newBase("fact-check", "Fact Check",
			[]types.ContentKind{
				types.ContentKindText,
				types.ContentKindNews,
				types.ContentKindSocialMedia,
				types.ContentKindAcademic,
			},
			2*time.Second, logger),
		config: cfg,
	}
}

func (a *FactCheck) Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error) {
	start, err := a.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	content := req.Content
	words := len(strings.Fields(content))
	numbers := len(numberPattern.FindAllString(content, -1))
	absolutes := containsPhrase(content, a.config.AbsoluteWords)
	hedges := containsPhrase(content, hedgePhrases)

	meta := map[string]string{
		"numeric_claims": fmt.Sprintf("%d", numbers),
		"absolute_words": fmt.Sprintf("%d", len(absolutes)),
		"hedge_phrases":  fmt.Sprintf("%d", len(hedges)),
	}

	var (
		verdict    types.Verdict
		confidence float64
		reasoning  string
		evidence   []types.Evidence
	)
	switch {
	case words < 8:
		verdict = types.VerdictInsufficientEvidence
		confidence = 0.35
		reasoning = "no checkable claims in content"
	case len(absolutes) >= 2:
		verdict = types.VerdictMisleading
		confidence = min(0.8, 0.62+0.04*float64(len(absolutes)))
		reasoning = "absolute claims without attribution: " + strings.Join(absolutes, ", ")
	case len(hedges) >= 2:
		verdict = types.VerdictUnverified
		confidence = 0.5
		reasoning = "claims heavily hedged: " + strings.Join(hedges, ", ")
	case numbers >= 1:
		verdict = types.VerdictVerifiedTrue
		confidence = 0.68
		reasoning = fmt.Sprintf("%d quantified claims, no contradiction markers", numbers)
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceFactCheck,
			Title:       "quantified claim scan",
			Description: fmt.Sprintf("%d numeric claims detected, none self-contradictory", numbers),
			Reliability: 0.65,
		})
	default:
		verdict = types.VerdictVerifiedTrue
		confidence = 0.58
		reasoning = "no contradiction or exaggeration markers found"
	}

	return a.finish(start, verdict, confidence, reasoning, evidence, meta), nil
}
