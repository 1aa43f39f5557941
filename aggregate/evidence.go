package aggregate

import (
	"sort"

	"github.com/veriflow-ai/veriflow/types"
)

type evidenceKey struct {
	kind  types.EvidenceType
	title string
}

// mergeEvidence 跨响应合并证据：以 (type, title) 为键去重，重复出现
// 视为相互印证，存量条目的可靠度 +0.1（上限 1.0）。agent 按 ids 的
// 有序列表遍历，首次出现的条目决定描述与 URL。
func mergeEvidence(results map[string]*types.AgentResponse, ids []string) []types.Evidence {
	merged := make(map[evidenceKey]*types.Evidence)
	order := make([]evidenceKey, 0)

	for _, id := range ids {
		for _, ev := range results[id].Evidence {
			key := evidenceKey{kind: ev.Type, title: ev.Title}
			if existing, ok := merged[key]; ok {
				existing.Reliability = boost(existing.Reliability)
				continue
			}
			cp := ev
			cp.Reliability = clamp01(cp.Reliability)
			merged[key] = &cp
			order = append(order, key)
		}
	}

	out := make([]types.Evidence, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Reliability == out[j].Reliability {
			if out[i].Title == out[j].Title {
				return out[i].Type < out[j].Type
			}
			return out[i].Title < out[j].Title
		}
		return out[i].Reliability > out[j].Reliability
	})
	return out
}

func boost(reliability float64) float64 {
	boosted := reliability + 0.1
	if boosted > 1.0 {
		return 1.0
	}
	return boosted
}

// meanReliability 合并后证据的平均可靠度，空列表为 0。
func meanReliability(evidence []types.Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	var sum float64
	for _, ev := range evidence {
		sum += ev.Reliability
	}
	return sum / float64(len(evidence))
}
