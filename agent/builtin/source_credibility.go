package builtin

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

var _ agent.Agent = (*SourceCredibility)(nil)

// SourceCredibility 依据域名声誉表评估来源可信度。来源取元数据 URL；
// 内容类别为 url 时退回内容本身。
type SourceCredibility struct {
	base
	config *Config
}

// NewSourceCredibility 创建来源可信度 Agent。
func NewSourceCredibility(cfg *Config, logger *zap.Logger) *SourceCredibility {
	return &SourceCredibility{
		base: newBase("source-credibility", "Source Credibility",
			[]types.ContentKind{
				types.ContentKindText,
				types.ContentKindURL,
				types.ContentKindNews,
			},
			2*time.Second, logger),
		config: cfg,
	}
}

func (a *SourceCredibility) Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error) {
	start, err := a.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(req.Metadata.URL)
	if raw == "" && req.ContentKind == types.ContentKindURL {
		raw = strings.TrimSpace(req.Content)
	}
	if raw == "" {
		return a.finish(start, types.VerdictInsufficientEvidence, 0.4,
			"no source URL to assess", nil,
			map[string]string{"source_host": ""}), nil
	}

	host, insecure := parseHost(raw)
	meta := map[string]string{"source_host": host}
	if host == "" {
		return a.finish(start, types.VerdictInsufficientEvidence, 0.4,
			"source URL is not parseable: "+raw, nil, meta), nil
	}

	var (
		verdict    types.Verdict
		confidence float64
		reasoning  string
		evidence   []types.Evidence
	)
	switch {
	case matchesDomain(host, a.config.BlockedDomains):
		verdict = types.VerdictVerifiedFalse
		confidence = 0.8
		reasoning = "source domain is on the block list: " + host
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceSource,
			Title:       "blocked source domain",
			URL:         raw,
			Reliability: 0.9,
		})
	case matchesDomain(host, a.config.TrustedDomains):
		verdict = types.VerdictVerifiedTrue
		confidence = 0.85
		reasoning = "source domain is on the trust list: " + host
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceSource,
			Title:       "trusted source domain",
			URL:         raw,
			Reliability: 0.9,
		})
	default:
		verdict = types.VerdictUnverified
		confidence = 0.5
		reasoning = "source domain not in reputation lists: " + host
	}
	if insecure {
		confidence -= 0.05
		reasoning += "; source served over plain http"
	}

	return a.finish(start, verdict, confidence, reasoning, evidence, meta), nil
}

// parseHost 解析主机名并报告是否为明文 http。无 scheme 的裸域名按
// https 处理。
func parseHost(raw string) (host string, insecure bool) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), u.Scheme == "http"
}
