// Package decision 在聚合结果之上实施集成投票，产出最终裁定、确定性
// 等级、风险评估与建议。
//
// Decide 对任何输入都是全函数：包括全体 agent 失败在内的每种组合都
// 映射为一个（可能退化的）DecisionResult，从不返回错误。
package decision

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veriflow-ai/veriflow/types"
)

// 集成投票与风险评估使用的阈值
const (
	thresholdStrong   = 0.8
	thresholdModerate = 0.6
	thresholdWeak     = 0.4

	confidenceVeryHigh = 0.9
	confidenceMedium   = 0.6
)

// Config 决策引擎配置
type Config struct {
	// EvidenceFreshness 证据时效窗口，窗口内的证据算"新鲜"
	EvidenceFreshness time.Duration `yaml:"evidence_freshness"`
}

// DefaultConfig 返回默认决策配置
func DefaultConfig() *Config {
	return &Config{
		EvidenceFreshness: 30 * 24 * time.Hour,
	}
}

func (c *Config) normalize() {
	if c.EvidenceFreshness <= 0 {
		c.EvidenceFreshness = 30 * 24 * time.Hour
	}
}

// Engine 集成决策引擎
type Engine struct {
	config *Config
	logger *zap.Logger
}

// NewEngine 创建决策引擎
func NewEngine(config *Config, logger *zap.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		config: config,
		logger: logger.With(zap.String("component", "decision_engine")),
	}
}

// Decide 基于聚合结果产出最终决策。
func (e *Engine) Decide(agg *types.AggregationResult, req *types.VerificationRequest) *types.DecisionResult {
	result := &types.DecisionResult{
		RequestID: agg.RequestID,
		Timestamp: time.Now().UTC(),
	}
	if req != nil && req.ID != "" {
		result.RequestID = req.ID
	}

	if agg.SuccessfulAgents == 0 {
		return e.degenerate(result, agg)
	}

	consensusStrength := e.consensusStrength(agg)
	evidenceQuality := e.evidenceQuality(agg.Evidence, time.Now().UTC())
	certainty := certaintyGrade(0.4*agg.Confidence + 0.4*consensusStrength + 0.2*evidenceQuality)

	verdict, rule := e.vote(agg, consensusStrength, evidenceQuality)
	confidence := finalConfidence(agg.Confidence, consensusStrength, evidenceQuality, certainty)

	result.Verdict = verdict
	result.Confidence = confidence
	result.Certainty = certainty
	result.Consensus = consensusSummary(agg.Contributions)
	result.Risk = assessRisk(verdict, confidence, agg, result.Consensus)
	result.Recommendations = recommend(verdict, certainty, result.Risk)
	result.Reasoning = e.explain(agg, verdict, rule, consensusStrength, evidenceQuality, certainty)

	e.logger.Debug("decision rendered",
		zap.String("request_id", result.RequestID),
		zap.String("verdict", string(verdict)),
		zap.Float64("confidence", confidence),
		zap.String("certainty", string(certainty)),
		zap.String("risk", string(result.Risk.Level)),
		zap.String("rule", rule),
	)
	return result
}

// degenerate 处理零成功响应的退化输入：错误裁定、零置信度、critical 风险。
func (e *Engine) degenerate(result *types.DecisionResult, agg *types.AggregationResult) *types.DecisionResult {
	result.Verdict = types.VerdictError
	result.Certainty = types.CertaintyVeryLow
	result.Consensus = types.ConsensusSummary{
		MajorityVerdict: types.VerdictError,
		Label:           types.ConsensusNone,
	}
	result.Risk = types.RiskAssessment{
		Level:       types.RiskCritical,
		Factors:     []string{"no successful agent responses"},
		Mitigations: []string{"retry the verification with different or additional agents"},
	}
	result.Recommendations = []string{
		"verification could not be completed; treat the content as unverified",
	}
	result.Reasoning = fmt.Sprintf(
		"all %d agents failed to produce a response; no verdict can be rendered", agg.TotalAgents)
	return result
}

// consensusStrength 主导裁定组的有效权重占比，再按贡献者数量折扣：
// 少于 3 个贡献者时按 n/3 缩减。
func (e *Engine) consensusStrength(agg *types.AggregationResult) float64 {
	var totalWeight float64
	groupWeights := make(map[types.Verdict]float64)
	for _, c := range agg.Contributions {
		totalWeight += c.Weight
		groupWeights[c.Verdict] += c.Weight
	}
	if totalWeight <= 0 {
		return 0
	}
	var dominant float64
	for _, w := range groupWeights {
		if w > dominant {
			dominant = w
		}
	}
	strength := dominant / totalWeight
	return strength * math.Min(1, float64(len(agg.Contributions))/3.0)
}

// evidenceQuality 证据质量评分：
// 0.5×平均可靠度 + 0.3×类型多样性(min(种类数/4,1)) + 0.2×30 天内新鲜占比。
// 无时间戳的证据视为过期；完全没有证据时取中性值 0.5，证据缺席本身
// 不构成对共识的否决。
func (e *Engine) evidenceQuality(evidence []types.Evidence, now time.Time) float64 {
	if len(evidence) == 0 {
		return 0.5
	}
	var (
		reliabilitySum float64
		fresh          int
		kinds          = make(map[types.EvidenceType]bool)
	)
	for _, ev := range evidence {
		reliabilitySum += ev.Reliability
		kinds[ev.Type] = true
		if ev.Timestamp != nil && now.Sub(*ev.Timestamp) <= e.config.EvidenceFreshness {
			fresh++
		}
	}
	n := float64(len(evidence))
	meanReliability := reliabilitySum / n
	diversity := math.Min(1, float64(len(kinds))/4.0)
	recency := float64(fresh) / n
	return 0.5*meanReliability + 0.3*diversity + 0.2*recency
}

// vote 集成投票：五条优先规则自上而下取首个命中，否则回落到聚合共识。
func (e *Engine) vote(agg *types.AggregationResult, consensusStrength, evidenceQuality float64) (types.Verdict, string) {
	confidence := agg.Confidence
	switch {
	case consensusStrength >= thresholdStrong && evidenceQuality >= thresholdStrong:
		return agg.ConsensusVerdict, "strong consensus with strong evidence"
	case confidence >= confidenceVeryHigh:
		return agg.ConsensusVerdict, "very high aggregate confidence"
	case consensusStrength >= thresholdModerate && evidenceQuality >= thresholdStrong:
		return agg.ConsensusVerdict, "moderate consensus backed by strong evidence"
	case evidenceQuality >= thresholdStrong && confidence >= confidenceMedium:
		return agg.ConsensusVerdict, "strong evidence with medium confidence"
	case consensusStrength < thresholdWeak || evidenceQuality < thresholdWeak:
		return types.VerdictUnverified, "weak consensus or weak evidence"
	default:
		return agg.ConsensusVerdict, "aggregate consensus"
	}
}

// finalConfidence 按共识强弱与证据强弱修正基础置信度，再乘确定性
// 等级折扣，最后钳制到 [0,1]。
func finalConfidence(base, consensusStrength, evidenceQuality float64, certainty types.Certainty) float64 {
	confidence := base
	switch {
	case consensusStrength >= thresholdStrong:
		confidence *= 1.1
	case consensusStrength < thresholdWeak:
		confidence *= 0.8
	}
	switch {
	case evidenceQuality >= thresholdStrong:
		confidence *= 1.05
	case evidenceQuality < thresholdWeak:
		confidence *= 0.9
	}
	confidence *= certainty.Multiplier()
	return math.Max(0, math.Min(1, confidence))
}

// certaintyGrade 确定性分档
func certaintyGrade(score float64) types.Certainty {
	switch {
	case score >= 0.9:
		return types.CertaintyVeryHigh
	case score >= 0.75:
		return types.CertaintyHigh
	case score >= 0.6:
		return types.CertaintyMedium
	case score >= 0.4:
		return types.CertaintyLow
	default:
		return types.CertaintyVeryLow
	}
}

// consensusSummary 裸计数共识摘要：多数裁定按响应条数（非权重）统计，
// 计数持平时取字典序小者。
func consensusSummary(contributions []types.AgentContribution) types.ConsensusSummary {
	if len(contributions) == 0 {
		return types.ConsensusSummary{MajorityVerdict: types.VerdictError, Label: types.ConsensusNone}
	}
	counts := make(map[types.Verdict]int)
	for _, c := range contributions {
		counts[c.Verdict]++
	}
	var (
		majority types.Verdict
		best     int
	)
	for verdict, n := range counts {
		if n > best || (n == best && verdict < majority) || majority == "" {
			majority, best = verdict, n
		}
	}

	var dissenting []string
	for _, c := range contributions {
		if c.Verdict != majority {
			dissenting = append(dissenting, c.AgentID)
		}
	}
	sort.Strings(dissenting)

	ratio := float64(best) / float64(len(contributions))
	return types.ConsensusSummary{
		MajorityVerdict: majority,
		AgreementRatio:  ratio,
		Dissenting:      dissenting,
		Label:           consensusLabel(ratio),
	}
}

func consensusLabel(ratio float64) types.ConsensusLabel {
	switch {
	case ratio >= thresholdStrong:
		return types.ConsensusStrong
	case ratio >= thresholdModerate:
		return types.ConsensusModerate
	case ratio >= thresholdWeak:
		return types.ConsensusWeak
	default:
		return types.ConsensusNone
	}
}

// assessRisk 风险评估：四类风险因素可叠加，任一命中风险至少为 high，
// 两项以上为 critical。
func assessRisk(verdict types.Verdict, confidence float64, agg *types.AggregationResult, consensus types.ConsensusSummary) types.RiskAssessment {
	var factors []string

	if verdict == types.VerdictVerifiedFalse && confidence > 0.8 {
		factors = append(factors, "high-confidence false claim")
	}
	if verdict == types.VerdictVerifiedTrue && confidence < 0.6 {
		factors = append(factors, "low-confidence true claim")
	}
	if len(consensus.Dissenting) > 0 && confidence > 0.7 {
		factors = append(factors, "conflicting agent opinions despite high confidence")
	}
	if agg.SuccessfulAgents < 2 {
		factors = append(factors, "limited consensus: fewer than 2 successful agents")
	}

	level := types.RiskLow
	switch {
	case len(factors) >= 2:
		level = types.RiskCritical
	case len(factors) == 1:
		level = types.RiskHigh
	}

	var mitigations []string
	if len(factors) > 0 {
		mitigations = append(mitigations, "flag the decision for manual review")
	}
	for _, f := range factors {
		switch {
		case strings.HasPrefix(f, "high-confidence false"),
			strings.HasPrefix(f, "conflicting"):
			mitigations = appendUnique(mitigations, "seek independent verification from an external source")
		case strings.HasPrefix(f, "limited consensus"):
			mitigations = appendUnique(mitigations, "retry the verification with additional agents")
		}
	}

	return types.RiskAssessment{Level: level, Factors: factors, Mitigations: mitigations}
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// recommend 依据裁定、确定性与风险给出行动建议。
func recommend(verdict types.Verdict, certainty types.Certainty, risk types.RiskAssessment) []string {
	var recs []string
	switch verdict {
	case types.VerdictVerifiedFalse:
		recs = append(recs, "do not amplify this content; reference the contradicting evidence when responding")
	case types.VerdictMisleading:
		recs = append(recs, "add clarifying context before sharing; the claim mixes accurate and inaccurate elements")
	case types.VerdictVerifiedTrue:
		recs = append(recs, "content is consistent with the collected evidence")
	default:
		recs = append(recs, "treat the content as unconfirmed until stronger evidence is available")
	}
	if certainty == types.CertaintyLow || certainty == types.CertaintyVeryLow {
		recs = append(recs, "gather additional sources before acting on this decision")
	}
	if risk.Level == types.RiskHigh || risk.Level == types.RiskCritical {
		recs = append(recs, "escalate to a human reviewer before publishing any conclusion")
	}
	return recs
}

func (e *Engine) explain(agg *types.AggregationResult, verdict types.Verdict, rule string, consensusStrength, evidenceQuality float64, certainty types.Certainty) string {
	return fmt.Sprintf(
		"verdict %s selected by rule %q over %d agent responses (%d failed); consensus strength %.2f, evidence quality %.2f, certainty %s",
		verdict, rule, agg.SuccessfulAgents, agg.FailedAgents, consensusStrength, evidenceQuality, certainty)
}
