// 共识流水线属性测试。
//
// 以随机组成的 Agent 队伍驱动完整的 路由 → 执行 → 聚合 → 裁决 链路，
// 校验决策不变量对任意队伍构成均成立。
package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	veriflow "github.com/veriflow-ai/veriflow"
	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/testutil/mocks"
	"github.com/veriflow-ai/veriflow/types"
)

// fleetVerdicts 模拟 Agent 可产出的裁定集合
var fleetVerdicts = []types.Verdict{
	types.VerdictVerifiedTrue,
	types.VerdictVerifiedFalse,
	types.VerdictMisleading,
	types.VerdictUnverified,
}

// decisionVerdicts 决策层全部合法裁定
var decisionVerdicts = map[types.Verdict]struct{}{
	types.VerdictVerifiedTrue:         {},
	types.VerdictVerifiedFalse:        {},
	types.VerdictMisleading:           {},
	types.VerdictUnverified:           {},
	types.VerdictInsufficientEvidence: {},
	types.VerdictError:                {},
}

// newFleetEngine 按给定队伍组装引擎，并把文本路由表指向全部队伍成员。
// 重试被关闭，失败注入类属性测试不必等退避。
func newFleetEngine(t *testing.T, agents []*mocks.MockAgent) *veriflow.Engine {
	t.Helper()

	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID()
	}

	cfg := config.DefaultConfig()
	cfg.Router.BaseTable = map[types.ContentKind][]string{
		types.ContentKindText: ids,
	}
	cfg.Router.Dependencies = nil
	cfg.Workflow.MaxRetries = 0

	engine, err := veriflow.New(
		veriflow.WithConfig(cfg),
		veriflow.WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	for _, a := range agents {
		require.NoError(t, engine.RegisterAgents(a))
	}
	return engine
}

// TestConsensusPipeline_DecisionInvariants 验证任意队伍构成下的决策不变量：
// 结论取值合法、置信度与赞同率有界、全体一致时多数结论即共识结论。
func TestConsensusPipeline_DecisionInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fleetSize := rapid.IntRange(1, 6).Draw(rt, "fleetSize")
		unanimous := rapid.Bool().Draw(rt, "unanimous")

		sharedVerdict := fleetVerdicts[rapid.IntRange(0, len(fleetVerdicts)-1).Draw(rt, "sharedVerdict")]

		agents := make([]*mocks.MockAgent, fleetSize)
		for i := range agents {
			verdict := sharedVerdict
			if !unanimous {
				verdict = fleetVerdicts[rapid.IntRange(0, len(fleetVerdicts)-1).Draw(rt, fmt.Sprintf("verdict_%d", i))]
			}
			confidence := rapid.Float64Range(0.2, 0.95).Draw(rt, fmt.Sprintf("confidence_%d", i))
			agents[i] = mocks.NewMockAgent(fmt.Sprintf("fleet-%d", i)).
				WithVerdict(verdict, confidence)
		}

		engine := newFleetEngine(t, agents)
		defer engine.Close()

		dec, err := engine.VerifyContent(context.Background(),
			"the quick brown fox jumps over the lazy dog", types.ContentKindText)
		require.NoError(t, err)
		require.NotNil(t, dec)

		// 结论必须合法
		_, ok := decisionVerdicts[dec.Verdict]
		require.True(t, ok, "verdict %q outside decision vocabulary", dec.Verdict)

		// 数值不变量
		require.GreaterOrEqual(t, dec.Confidence, 0.0)
		require.LessOrEqual(t, dec.Confidence, 1.0)
		require.GreaterOrEqual(t, dec.Consensus.AgreementRatio, 0.0)
		require.LessOrEqual(t, dec.Consensus.AgreementRatio, 1.0)

		// 全体一致：多数结论即队伍结论，且无异见者
		if unanimous {
			require.Equal(t, sharedVerdict, dec.Consensus.MajorityVerdict,
				"unanimous fleet must yield its shared verdict as majority")
			require.Empty(t, dec.Consensus.Dissenting)
			require.InDelta(t, 1.0, dec.Consensus.AgreementRatio, 1e-9)
		}
	})
}

// TestConsensusPipeline_PartialFailures 验证部分 Agent 失败不阻塞裁决：
// 只要有成员成功，失败成员不出现在共识里，决策依旧给出。
func TestConsensusPipeline_PartialFailures(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		healthy := rapid.IntRange(1, 4).Draw(rt, "healthy")
		failing := rapid.IntRange(1, 3).Draw(rt, "failing")

		verdict := fleetVerdicts[rapid.IntRange(0, len(fleetVerdicts)-1).Draw(rt, "verdict")]

		agents := make([]*mocks.MockAgent, 0, healthy+failing)
		for i := 0; i < healthy; i++ {
			agents = append(agents, mocks.NewMockAgent(fmt.Sprintf("ok-%d", i)).
				WithVerdict(verdict, 0.8))
		}
		for i := 0; i < failing; i++ {
			agents = append(agents, mocks.NewMockAgent(fmt.Sprintf("bad-%d", i)).
				WithError(fmt.Errorf("injected analyzer fault %d", i)))
		}

		engine := newFleetEngine(t, agents)
		defer engine.Close()

		dec, err := engine.VerifyContent(context.Background(),
			"claims under partial agent outage still resolve", types.ContentKindText)
		require.NoError(t, err)
		require.NotNil(t, dec)

		// 成功成员全体一致，多数结论即该裁定
		assert.Equal(t, verdict, dec.Consensus.MajorityVerdict)

		// 失败成员不得作为异见者出现
		for _, dissenter := range dec.Consensus.Dissenting {
			for i := 0; i < failing; i++ {
				assert.NotEqual(t, fmt.Sprintf("bad-%d", i), dissenter,
					"failed agent must not be counted as dissenting")
			}
		}

		// 有失败成员时风险因素不为空
		assert.NotEmpty(t, dec.Risk.Level)
	})
}

// TestConsensusPipeline_AllAgentsFail 验证全员失败仍产出终态决策而非错误
func TestConsensusPipeline_AllAgentsFail(t *testing.T) {
	agents := []*mocks.MockAgent{
		mocks.NewMockAgent("down-1").WithError(fmt.Errorf("backend unreachable")),
		mocks.NewMockAgent("down-2").WithError(fmt.Errorf("backend unreachable")),
	}

	engine := newFleetEngine(t, agents)
	defer engine.Close()

	dec, err := engine.VerifyContent(context.Background(),
		"no agent manages to answer", types.ContentKindText)
	require.NoError(t, err)
	require.NotNil(t, dec)

	// 零成功响应的退化决策：error 裁定、最低确定性、critical 风险
	assert.Equal(t, types.VerdictError, dec.Verdict)
	assert.Equal(t, types.CertaintyVeryLow, dec.Certainty)
	assert.Equal(t, types.RiskCritical, dec.Risk.Level)
	assert.Zero(t, dec.Confidence)
}
