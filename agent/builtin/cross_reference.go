package builtin

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/types"
)

var _ agent.Agent = (*CrossReference)(nil)

var linkPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// CrossReference 按内容与元数据中引用的独立来源数（按主机去重）评估
// 交叉佐证强度：两个以上独立来源视为有佐证。
type CrossReference struct {
	base
	config *Config
}

// NewCrossReference 创建交叉引用 Agent。
func NewCrossReference(cfg *Config, logger *zap.Logger) *CrossReference {
	return &CrossReference{
		base: newBase("cross-reference", "Cross Reference",
			[]types.ContentKind{
				types.ContentKindURL,
				types.ContentKindNews,
				types.ContentKindImage,
				types.ContentKindVideo,
			},
			2*time.Second, logger),
		config: cfg,
	}
}

func (a *CrossReference) Analyze(ctx context.Context, req *types.VerificationRequest) (*types.AgentResponse, error) {
	start, err := a.begin(ctx, req)
	if err != nil {
		return nil, err
	}

	hosts := referenceHosts(req)
	meta := map[string]string{"reference_hosts": fmt.Sprintf("%d", len(hosts))}

	var evidence []types.Evidence
	for i, h := range hosts {
		if i == 5 {
			break
		}
		evidence = append(evidence, types.Evidence{
			Type:        types.EvidenceCrossReference,
			Title:       "referenced source: " + h,
			Reliability: 0.6,
		})
	}

	var (
		verdict    types.Verdict
		confidence float64
		reasoning  string
	)
	switch {
	case len(hosts) >= 2:
		verdict = types.VerdictVerifiedTrue
		confidence = min(0.85, 0.6+0.05*float64(len(hosts)))
		reasoning = fmt.Sprintf("%d independent sources referenced: %s",
			len(hosts), strings.Join(hosts, ", "))
	case len(hosts) == 1:
		verdict = types.VerdictUnverified
		confidence = 0.5
		reasoning = "single corroborating source: " + hosts[0]
	default:
		verdict = types.VerdictInsufficientEvidence
		confidence = 0.35
		reasoning = "no external references found"
	}

	return a.finish(start, verdict, confidence, reasoning, evidence, meta), nil
}

// referenceHosts 抽取内容与元数据中的链接，按主机名去重后排序。
func referenceHosts(req *types.VerificationRequest) []string {
	links := linkPattern.FindAllString(req.Content, -1)
	if u := strings.TrimSpace(req.Metadata.URL); u != "" {
		links = append(links, u)
	}

	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		if !strings.Contains(link, "://") {
			link = "https://" + link
		}
		u, err := url.Parse(link)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
		seen[host] = struct{}{}
	}

	hosts := make([]string, 0, len(seen))
	for h := range seen {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
