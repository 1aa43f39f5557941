package builtin

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

var _ agent.Agent = (*EducationSpecialist)(nil)

// 学术引用特征：编号引注、作者年份、et al.、DOI 链接
var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[\d+\]`),
	regexp.MustCompile(`\(\d{4}\)`),
	regexp.MustCompile(`\bet al\.`),
	regexp.MustCompile(`doi\.org/`),
}

var studyClaimPhrases = []string{
	"study shows", "studies show", "scientists say",
	"research proves", "experts agree",
}

// EducationSpecialist 评估学术/教育内容的引注规范性：有规范引注的
// 内容可信，借“研究表明”背书却零引注的内容判为误导。
type EducationSpecialist struct {
	base
	config *Config
}

// NewEducationSpecialist 创建教育专家 Agent。
func NewEducationSpecialist(cfg *Config, logger *zap.Logger) *EducationSpecialist {
	return &EducationSpecialist{
		base: newBase("education-specialist", "Education Specialist",
			[]types.ContentKind{
				types.ContentKindAcademic,
				types.ContentKindText,
				types.ContentKindNews,
			},
			2*time.Second, logger),
		config: cfg,
	}
}

func (a *EducationSpecialist) Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error) {
	start, err := a.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	citations := 0
	for _, p := range citationPatterns {
		citations += len(p.FindAllString(req.Content, -1))
	}
	claims := containsPhrase(req.Content, studyClaimPhrases)

	meta := map[string]string{
		"citations":    fmt.Sprintf("%d", citations),
		"study_claims": fmt.Sprintf("%d", len(claims)),
	}

	var (
		verdict    types.Verdict
		confidence float64
		reasoning  string
		evidence   []types.Evidence
	)
	switch {
	case citations >= 2:
		verdict = types.VerdictVerifiedTrue
		confidence = min(0.85, 0.7+0.03*float64(citations))
		reasoning = fmt.Sprintf("%d citation markers present", citations)
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceExpertOpinion,
			Title:       "citation audit",
			Description: fmt.Sprintf("%d citation markers (numbered, author-year, doi)", citations),
			Reliability: 0.75,
		})
	case len(claims) > 0 && citations == 0:
		verdict = types.VerdictMisleading
		confidence = 0.68
		reasoning = "research claims without any citation: " + claims[0]
	case req.ContentKind == types.ContentKindAcademic:
		verdict = types.VerdictUnverified
		confidence = 0.5
		reasoning = "academic content with sparse citations"
	default:
		verdict = types.VerdictInsufficientEvidence
		confidence = 0.4
		reasoning = "no academic apparatus to audit"
	}

	return a.finish(start, verdict, confidence, reasoning, evidence, meta), nil
}
