// Package aggregate 将一次工作流的全部成功响应合并为共识裁定。
//
// 聚合是纯函数式的：同一执行记录与健康快照永远产出相同结果，分组求和
// 满足交换律，响应的插入顺序不影响共识裁定与归一化置信度。
package aggregate

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/types"
)

// Config 聚合器配置
type Config struct {
	// Weights 各 agent 的配置权重，未列出的 agent 使用 DefaultWeight
	Weights map[string]float64 `yaml:"weights"`
	// DefaultWeight 默认配置权重
	DefaultWeight float64 `yaml:"default_weight"`
	// ConsensusThreshold 共识比低于该值时裁定降级为 insufficient_evidence
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
	// DefaultHealthScore 健康快照缺失某 agent 时使用的健康分
	DefaultHealthScore float64 `yaml:"default_health_score"`
}

// DefaultConfig 返回默认聚合配置
func DefaultConfig() *Config {
	return &Config{
		DefaultWeight:      1.0,
		ConsensusThreshold: 0.6,
		DefaultHealthScore: 0.5,
	}
}

func (c *Config) normalize() {
	if c.DefaultWeight <= 0 {
		c.DefaultWeight = 1.0
	}
	if c.ConsensusThreshold <= 0 || c.ConsensusThreshold > 1 {
		c.ConsensusThreshold = 0.6
	}
	if c.DefaultHealthScore < 0 || c.DefaultHealthScore > 1 {
		c.DefaultHealthScore = 0.5
	}
}

// Aggregator 加权共识聚合器
type Aggregator struct {
	config *Config
	logger *zap.Logger
}

// NewAggregator 创建聚合器，config 与 logger 允许为 nil。
func NewAggregator(config *Config, logger *zap.Logger) *Aggregator {
	if config == nil {
		config = DefaultConfig()
	}
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		config: config,
		logger: logger.With(zap.String("component", "aggregator")),
	}
}

// Aggregate 把执行记录中的成功响应按有效权重合并为共识结果。
//
// 有效权重 = 配置权重 × (0.8 + 0.2×健康分)，健康分缺失取默认值。
// 共识裁定取加权分组合计绝对值最大的一组；共识比低于阈值时降级为
// insufficient_evidence，但 RawConfidence 仍反映最强组的占比。
// 成功集为空时返回零置信度的 error 哨兵结果，从不返回错误。
func (a *Aggregator) Aggregate(exec *types.WorkflowExecution, health map[string]float64) *types.AggregationResult {
	result := &types.AggregationResult{
		RequestID:        exec.RequestID,
		WorkflowID:       exec.ID,
		ConsensusVerdict: types.VerdictError,
		TotalAgents:      len(exec.Steps),
		FailedAgents:     len(exec.Errors),
		Timestamp:        time.Now().UTC(),
	}

	ids := make([]string, 0, len(exec.Results))
	for id := range exec.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(ids) == 0 {
		a.logger.Warn("no successful responses to aggregate",
			zap.String("workflow_id", exec.ID),
			zap.Int("failed", result.FailedAgents),
		)
		return result
	}
	result.SuccessfulAgents = len(ids)

	var (
		totalWeight   float64
		confidenceSum float64
		contributions = make([]types.AgentContribution, 0, len(ids))
		groupScores   = make(map[types.Verdict]float64)
		verdictCounts = make(map[types.Verdict]int)
	)
	for _, id := range ids {
		resp := exec.Results[id]
		healthScore := a.config.DefaultHealthScore
		if hs, ok := health[id]; ok {
			healthScore = clamp01(hs)
		}
		weight := a.configuredWeight(id) * (0.8 + 0.2*healthScore)
		score := resp.Verdict.Score() * resp.Confidence * weight

		contributions = append(contributions, types.AgentContribution{
			AgentID:       id,
			Verdict:       resp.Verdict,
			Confidence:    resp.Confidence,
			Weight:        weight,
			WeightedScore: score,
			HealthScore:   healthScore,
		})
		totalWeight += weight
		confidenceSum += resp.Confidence
		groupScores[resp.Verdict] += score
		verdictCounts[resp.Verdict]++
	}

	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].WeightedScore == contributions[j].WeightedScore {
			return contributions[i].AgentID < contributions[j].AgentID
		}
		return contributions[i].WeightedScore > contributions[j].WeightedScore
	})
	result.Contributions = contributions

	consensus, bestScore := dominantGroup(groupScores)
	ratio := 0.0
	if totalWeight > 0 {
		ratio = math.Abs(bestScore) / totalWeight
	}
	result.RawConfidence = ratio
	result.Confidence = bucketConfidence(ratio)
	result.ConsensusVerdict = consensus
	if ratio < a.config.ConsensusThreshold {
		result.ConsensusVerdict = types.VerdictInsufficientEvidence
	}

	result.MeanConfidence = confidenceSum / float64(len(ids))
	result.ConsensusStrength = modalFraction(verdictCounts, len(ids))
	result.Evidence = mergeEvidence(exec.Results, ids)
	result.EvidenceQuality = meanReliability(result.Evidence)

	a.logger.Debug("aggregation completed",
		zap.String("workflow_id", exec.ID),
		zap.String("consensus", string(result.ConsensusVerdict)),
		zap.Float64("raw_confidence", result.RawConfidence),
		zap.Float64("confidence", result.Confidence),
		zap.Int("contributors", len(ids)),
	)
	return result
}

func (a *Aggregator) configuredWeight(agentID string) float64 {
	if w, ok := a.config.Weights[agentID]; ok && w >= 0 {
		return w
	}
	return a.config.DefaultWeight
}

// dominantGroup 返回加权合计绝对值最大的裁定组。绝对值持平时按裁定
// 字典序取小者，保证结果与遍历顺序无关。
func dominantGroup(groupScores map[types.Verdict]float64) (types.Verdict, float64) {
	var (
		best      types.Verdict
		bestScore float64
		found     bool
	)
	for verdict, score := range groupScores {
		abs, bestAbs := math.Abs(score), math.Abs(bestScore)
		switch {
		case !found, abs > bestAbs:
			best, bestScore, found = verdict, score, true
		case abs == bestAbs && verdict < best:
			best, bestScore = verdict, score
		}
	}
	return best, bestScore
}

// bucketConfidence 归一化置信度分桶：高共识保持原值，低共识按档衰减。
func bucketConfidence(ratio float64) float64 {
	switch {
	case ratio >= 0.8:
		return math.Min(ratio, 1.0)
	case ratio >= 0.6:
		return ratio * 0.8
	case ratio >= 0.4:
		return ratio * 0.6
	default:
		return ratio * 0.4
	}
}

// modalFraction 众数裁定占比（按响应条数，不按权重）
func modalFraction(counts map[types.Verdict]int, total int) float64 {
	maxCount := 0
	for _, n := range counts {
		if n > maxCount {
			maxCount = n
		}
	}
	return float64(maxCount) / float64(total)
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
