// =============================================================================
// 🚀 VeriFlow 性能基准测试
// =============================================================================
// 覆盖关键路径的性能测试，包括：
// - 完整核验流水线（路由 → 执行 → 聚合 → 裁决）
// - Router 路由选择
// - Aggregator 共识聚合
// - Decision 集成裁决
// - 事件总线发布
// - 内存历史存储读写
//
// 运行方式:
//   go test -bench=. -benchmem ./tests/benchmark/...
//   go test -bench=BenchmarkEngine -benchmem ./tests/benchmark/...
// =============================================================================

package benchmark

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	veriflow "github.com/veriflow-ai/veriflow"
	"github.com/veriflow-ai/veriflow/agent"
	"github.com/veriflow-ai/veriflow/agent/builtin"
	"github.com/veriflow-ai/veriflow/aggregate"
	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/decision"
	"github.com/veriflow-ai/veriflow/event"
	"github.com/veriflow-ai/veriflow/persistence"
	"github.com/veriflow-ai/veriflow/router"
	"github.com/veriflow-ai/veriflow/testutil/fixtures"
	"github.com/veriflow-ai/veriflow/types"
)

// =============================================================================
// 🔬 完整流水线基准
// =============================================================================

// newBenchEngine 组装含全部内置 Agent 的引擎
func newBenchEngine(b *testing.B) *veriflow.Engine {
	b.Helper()

	logger := zap.NewNop()
	engine, err := veriflow.New(
		veriflow.WithConfig(config.DefaultConfig()),
		veriflow.WithLogger(logger),
	)
	if err != nil {
		b.Fatalf("assemble engine: %v", err)
	}
	if err := engine.RegisterAgents(builtin.All(nil, logger)...); err != nil {
		b.Fatalf("register agents: %v", err)
	}
	b.Cleanup(func() { engine.Close() })
	return engine
}

// BenchmarkEngineVerify_Text 测试文本核验全链路性能
func BenchmarkEngineVerify_Text(b *testing.B) {
	engine := newBenchEngine(b)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := engine.VerifyContent(ctx,
			"Officials confirmed the new rail timetable takes effect next week.",
			types.ContentKindText)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEngineVerify_SocialMedia 测试社交内容核验全链路性能
func BenchmarkEngineVerify_SocialMedia(b *testing.B) {
	engine := newBenchEngine(b)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := engine.VerifyContent(ctx,
			"BREAKING!!! share before it's deleted, wake up people #truth #exposed",
			types.ContentKindSocialMedia)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEngineVerify_Concurrent 测试并发核验性能
func BenchmarkEngineVerify_Concurrent(b *testing.B) {
	engine := newBenchEngine(b)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			_, err := engine.VerifyContent(ctx,
				"The annual audit reports a moderate budget surplus.",
				types.ContentKindNews)
			if err != nil {
				b.Fatal(err)
			}
		}
	})
}

// =============================================================================
// 🧭 Router 基准
// =============================================================================

// BenchmarkRouterRoute 测试路由决策性能
func BenchmarkRouterRoute(b *testing.B) {
	logger := zap.NewNop()
	registry := agent.NewRegistry(logger, nil)
	defer registry.Close()
	for _, a := range builtin.All(nil, logger) {
		if err := registry.Register(a); err != nil {
			b.Fatal(err)
		}
	}
	r := router.NewRouter(registry, nil, logger)

	req := types.NewVerificationRequest(
		"This viral post claims a miracle cure, going viral on several platforms.",
		types.ContentKindSocialMedia,
		types.RequestMetadata{Platform: "twitter", Language: "es"},
		types.PriorityHigh,
	)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := r.Route(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

// =============================================================================
// ⚖️ Aggregator / Decision 基准
// =============================================================================

// benchExecution 构造一个含 6 个成功响应的执行记录
func benchExecution() *types.WorkflowExecution {
	responses := []*types.AgentResponse{
		fixtures.Response("content-analysis", types.VerdictMisleading, 0.82),
		fixtures.Response("fact-check", types.VerdictMisleading, 0.75),
		fixtures.Response("source-credibility", types.VerdictVerifiedFalse, 0.64),
		fixtures.Response("cross-reference", types.VerdictMisleading, 0.71),
		fixtures.Response("language-specialist", types.VerdictUnverified, 0.55),
		fixtures.Response("social-media-analyst", types.VerdictMisleading, 0.88),
	}
	return fixtures.CompletedExecution("req-bench", responses...)
}

// BenchmarkAggregatorAggregate 测试共识聚合性能
func BenchmarkAggregatorAggregate(b *testing.B) {
	agg := aggregate.NewAggregator(nil, zap.NewNop())
	exec := benchExecution()
	health := map[string]float64{
		"content-analysis":     0.95,
		"fact-check":           0.9,
		"source-credibility":   0.85,
		"cross-reference":      0.8,
		"language-specialist":  0.9,
		"social-media-analyst": 0.75,
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = agg.Aggregate(exec, health)
	}
}

// BenchmarkDecisionDecide 测试集成裁决性能
func BenchmarkDecisionDecide(b *testing.B) {
	aggregator := aggregate.NewAggregator(nil, zap.NewNop())
	engine := decision.NewEngine(nil, zap.NewNop())
	exec := benchExecution()
	agg := aggregator.Aggregate(exec, nil)
	req := fixtures.TextRequest()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = engine.Decide(agg, req)
	}
}

// =============================================================================
// 📣 事件总线基准
// =============================================================================

// BenchmarkEventBusPublish 测试事件发布性能（带一个订阅者）
func BenchmarkEventBusPublish(b *testing.B) {
	bus := event.NewBus(zap.NewNop())
	defer bus.Close()

	bus.Subscribe(types.EventWorkflowStarted, func(types.Event) {})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bus.Publish(types.NewEvent(types.EventWorkflowStarted, "req-bench", "wf-bench", nil))
	}
}

// =============================================================================
// 🗄️ 历史存储基准
// =============================================================================

// BenchmarkMemoryStore_SaveDecision 测试决策写入性能
func BenchmarkMemoryStore_SaveDecision(b *testing.B) {
	store := persistence.NewMemoryStore(config.StoreConfig{ListLimit: 100})
	defer store.Close()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		dec := &types.DecisionResult{
			RequestID:  fmt.Sprintf("req-%d", i),
			Verdict:    types.VerdictMisleading,
			Confidence: 0.8,
		}
		if err := store.SaveDecision(ctx, dec); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMemoryStore_GetDecision 测试决策读取性能
func BenchmarkMemoryStore_GetDecision(b *testing.B) {
	store := persistence.NewMemoryStore(config.StoreConfig{ListLimit: 100})
	defer store.Close()
	ctx := context.Background()

	// 预填充数据
	for i := 0; i < 1000; i++ {
		_ = store.SaveDecision(ctx, &types.DecisionResult{
			RequestID: fmt.Sprintf("req-%d", i),
			Verdict:   types.VerdictUnverified,
		})
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := store.GetDecision(ctx, fmt.Sprintf("req-%d", i%1000)); err != nil {
			b.Fatal(err)
		}
	}
}
