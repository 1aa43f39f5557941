package builtin

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

var _ agent.Agent = (*LanguageSpecialist)(nil)

// LanguageSpecialist 做语言学审查：检测单词内的拉丁/西里尔混排
// （同形异义字符欺骗的典型特征），并确认请求语言在可评审范围内。
type LanguageSpecialist struct {
	base
	config *Config
}

// NewLanguageSpecialist 创建语言专家 Agent。
func NewLanguageSpecialist(cfg *Config, logger *zap.Logger) *LanguageSpecialist {
	return &LanguageSpecialist{
		base: newBase("language-specialist", "Language Specialist",
			[]types.ContentKind{
				types.ContentKindText,
				types.ContentKindURL,
				types.ContentKindNews,
				types.ContentKindSocialMedia,
				types.ContentKindAcademic,
			},
			2*time.Second, logger),
		config: cfg,
	}
}

func (a *LanguageSpecialist) Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error) {
	start, err := a.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	lang := strings.ToLower(strings.TrimSpace(req.Metadata.Language))
	if lang == "" {
		lang = "und"
	}
	meta := map[string]string{"language": lang}

	if word, ok := mixedScriptWord(req.Content); ok {
		return a.finish(start, types.VerdictMisleading, 0.7,
			"mixed-script token suggests homoglyph spoofing: "+word,
			[]types.Evidence{{
				Type:        types.EvidenceDataAnalysis,
				Title:       "homoglyph scan",
				Description: "latin and cyrillic letters mixed within one token: " + word,
				Reliability: 0.8,
			}}, meta), nil
	}

	supported := false
	for _, s := range a.config.SupportedLanguages {
		if strings.EqualFold(s, lang) {
			supported = true
			break
		}
	}
	if lang != "und" && !supported {
		return a.finish(start, types.VerdictInsufficientEvidence, 0.4,
			"language not supported for linguistic review: "+lang, nil, meta), nil
	}

	return a.finish(start, types.VerdictVerifiedTrue, 0.6,
		"no linguistic manipulation markers",
		[]types.Evidence{{
			Type:        types.EvidenceExpertOpinion,
			Title:       "linguistic review (" + lang + ")",
			Description: "script usage consistent, no homoglyph substitution detected",
			Reliability: 0.6,
		}}, meta), nil
}

// mixedScriptWord 返回第一个同时含拉丁与西里尔字母的词。
func mixedScriptWord(content string) (string, bool) {
	for _, word := range strings.Fields(content) {
		var latin, cyrillic bool
		for _, r := range word {
			if !unicode.IsLetter(r) {
				continue
			}
			switch {
			case unicode.In(r, unicode.Latin):
				latin = true
			case unicode.In(r, unicode.Cyrillic):
				cyrillic = true
			}
			if latin && cyrillic {
				return word, true
			}
		}
	}
	return "", false
}
