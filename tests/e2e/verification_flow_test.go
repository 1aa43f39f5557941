// 核验流程端到端测试。
//
// 覆盖从请求提交、路由、多 Agent 执行到最终决策与历史落盘的完整链路。
//go:build e2e

package e2e

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	veriflow "github.com/veriflow-ai/veriflow"
	"github.com/veriflow-ai/veriflow/agent/builtin"
	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/persistence"
	"github.com/veriflow-ai/veriflow/types"
)

// --- 核验流程测试 ---

// TestVerificationFlow_TextClaim 测试煽动性文本断言的完整核验
func TestVerificationFlow_TextClaim(t *testing.T) {
	env := NewTestEnv(t)

	content := "SHOCKING TRUTH doctors hate this miracle cure! It is 100% proven " +
		"and guaranteed to work for everyone. Share before it's deleted!"
	dec := env.Verify(t, content, types.ContentKindText)

	// 决策形状校验
	assert.NotEmpty(t, dec.RequestID)
	assert.Contains(t, validVerdicts(), dec.Verdict)
	assert.GreaterOrEqual(t, dec.Confidence, 0.0)
	assert.LessOrEqual(t, dec.Confidence, 1.0)
	assert.GreaterOrEqual(t, dec.Consensus.AgreementRatio, 0.0)
	assert.LessOrEqual(t, dec.Consensus.AgreementRatio, 1.0)
	assert.NotEmpty(t, dec.Risk.Level)
	assert.False(t, dec.Timestamp.IsZero())

	// 满是绝对化断言和煽动措辞的文本不应被判定为可信
	assert.NotEqual(t, types.VerdictVerifiedTrue, dec.Verdict,
		"sensational absolute claims must not verify as true")
}

// TestVerificationFlow_AllContentKinds 测试全部内容类型均可路由并产出决策
func TestVerificationFlow_AllContentKinds(t *testing.T) {
	env := NewTestEnv(t)

	cases := []struct {
		kind    types.ContentKind
		content string
	}{
		{types.ContentKindText, "The city council approved the new transit budget on Tuesday."},
		{types.ContentKindURL, "https://www.reuters.com/world/europe/example-report-2026"},
		{types.ContentKindImage, "https://cdn.example.org/uploads/photo-7731.jpg"},
		{types.ContentKindVideo, "https://video.example.org/clips/press-conference.mp4"},
		{types.ContentKindSocialMedia, "BREAKING: wake up people, retweet now before they take it down! #truth"},
		{types.ContentKindNews, "Local hospital reports a 12% rise in seasonal flu admissions."},
		{types.ContentKindAcademic, "The study of 1,200 participants found a statistically significant correlation."},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			dec := env.Verify(t, tc.content, tc.kind)
			assert.Contains(t, validVerdicts(), dec.Verdict)
			assert.NotEmpty(t, dec.Reasoning)
		})
	}
}

// TestVerificationFlow_SocialMetadataRouting 测试平台元数据参与路由
func TestVerificationFlow_SocialMetadataRouting(t *testing.T) {
	env := NewTestEnv(t)

	dec, err := env.Engine.VerifyContent(env.Context(),
		"This video is going viral, share before it's deleted!",
		types.ContentKindText,
		veriflow.WithMetadata(types.RequestMetadata{Platform: "twitter", Language: "en"}),
		veriflow.WithPriority(types.PriorityHigh),
	)
	require.NoError(t, err)
	require.NotNil(t, dec)
	assert.Contains(t, validVerdicts(), dec.Verdict)
}

// TestVerificationFlow_EmptyContentRejected 测试空内容被拒绝
func TestVerificationFlow_EmptyContentRejected(t *testing.T) {
	env := NewTestEnv(t)

	_, err := env.Engine.VerifyContent(env.Context(), "", types.ContentKindText)
	require.Error(t, err)

	var vfErr *types.Error
	require.ErrorAs(t, err, &vfErr)
	assert.Equal(t, types.ErrInvalidRequest, vfErr.Code)
}

// TestVerificationFlow_HistoryPersisted 测试决策写入历史存储
func TestVerificationFlow_HistoryPersisted(t *testing.T) {
	env := NewTestEnv(t)

	dec := env.Verify(t, "Officials confirmed the bridge reopened after inspection.", types.ContentKindNews)

	stored, err := env.Store.GetDecision(env.Context(), dec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, dec.RequestID, stored.RequestID)
	assert.Equal(t, dec.Verdict, stored.Verdict)

	list, err := env.Store.ListDecisions(env.Context(), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}

// TestVerificationFlow_Deterministic 测试同一内容两次核验结论一致
func TestVerificationFlow_Deterministic(t *testing.T) {
	env := NewTestEnv(t)

	content := "The committee never publishes its findings, everyone knows it's a cover-up."
	first := env.Verify(t, content, types.ContentKindText)
	second := env.Verify(t, content, types.ContentKindText)

	// 内置 Agent 是确定性启发式，同内容同类型必须得到同一结论
	assert.Equal(t, first.Verdict, second.Verdict)
	assert.InDelta(t, first.Confidence, second.Confidence, 1e-9)
}

// TestVerificationFlow_ConcurrentRequests 测试并发核验
func TestVerificationFlow_ConcurrentRequests(t *testing.T) {
	SkipIfShort(t)
	env := NewTestEnv(t)

	const n = 8
	contents := []string{
		"Scientists announced a new battery chemistry yesterday.",
		"You won't believe what this politician said, exposed!",
		"The annual report shows revenue grew by 4 percent.",
		"Miracle cure guaranteed to reverse aging in days!",
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.Engine.VerifyContent(env.Context(), contents[i%len(contents)], types.ContentKindText)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d failed", i)
	}

	// 并发流量后系统健康视图可用
	sys := env.Engine.Monitor().SystemHealth()
	assert.Equal(t, 8, sys.AgentCount)
}

// TestVerificationFlow_RedisHistory 测试 Redis 历史存储（需外部 Redis）
func TestVerificationFlow_RedisHistory(t *testing.T) {
	SkipIfNoRedis(t)

	cfg := config.DefaultConfig()
	cfg.Store.Type = string(persistence.StoreTypeRedis)
	cfg.Redis.Addr = os.Getenv("VERIFLOW_REDIS_ADDR")

	logger := zap.NewNop()

	env := NewTestEnv(t)
	store, err := persistence.NewStore(env.Context(), cfg, logger)
	require.NoError(t, err)

	engine, err := veriflow.New(
		veriflow.WithConfig(cfg),
		veriflow.WithLogger(logger),
		veriflow.WithStore(store),
	)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	require.NoError(t, engine.RegisterAgents(builtin.All(nil, logger)...))

	dec, err := engine.VerifyContent(env.Context(),
		"The mayor's office released the audited figures this morning.",
		types.ContentKindNews)
	require.NoError(t, err)

	stored, err := store.GetDecision(env.Context(), dec.RequestID)
	require.NoError(t, err)
	assert.Equal(t, dec.Verdict, stored.Verdict)
}
