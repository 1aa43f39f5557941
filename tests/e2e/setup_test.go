// E2E 测试环境与通用辅助函数。
//
// 提供端到端测试的统一初始化与资源清理逻辑。
//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	veriflow "github.com/veriflow-ai/veriflow"
	"github.com/veriflow-ai/veriflow/agent/builtin"
	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/persistence"
	"github.com/veriflow-ai/veriflow/types"
)

// --- 测试环境 ---

// TestEnv E2E 测试环境：内存存储 + 全量内置 Agent 的完整引擎
type TestEnv struct {
	Config *config.Config
	Logger *zap.Logger
	Engine *veriflow.Engine
	Store  persistence.Store

	ctx    context.Context
	cancel context.CancelFunc
}

// --- 环境设置 ---

// NewTestEnv 创建新的测试环境
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	// 创建上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

	// 加载配置
	cfg := config.DefaultConfig()

	// 从环境变量覆盖（用于 CI/CD）
	if envCfg, err := config.LoadFromEnv(); err == nil {
		cfg = envCfg
	}

	// 创建 logger
	logger, _ := zap.NewDevelopment()

	// 组装引擎：历史存储 + 内置 Agent 全家桶
	store := persistence.NewMemoryStore(cfg.Store)

	engine, err := veriflow.New(
		veriflow.WithConfig(cfg),
		veriflow.WithLogger(logger),
		veriflow.WithStore(store),
	)
	if err != nil {
		cancel()
		t.Fatalf("failed to assemble engine: %v", err)
	}
	if err := engine.RegisterAgents(builtin.All(nil, logger)...); err != nil {
		cancel()
		t.Fatalf("failed to register builtin agents: %v", err)
	}

	env := &TestEnv{
		Config: cfg,
		Logger: logger,
		Engine: engine,
		Store:  store,
		ctx:    ctx,
		cancel: cancel,
	}

	// 注册清理函数
	t.Cleanup(func() {
		env.Cleanup()
	})

	return env
}

// Context 返回测试上下文
func (e *TestEnv) Context() context.Context {
	return e.ctx
}

// Cleanup 清理测试环境。引擎关闭时一并关闭存储。
func (e *TestEnv) Cleanup() {
	e.cancel()
	if e.Engine != nil {
		e.Engine.Close()
	}
	if e.Logger != nil {
		e.Logger.Sync()
	}
}

// Verify 执行一次核验并断言成功
func (e *TestEnv) Verify(t *testing.T, content string, kind types.ContentKind) *types.DecisionResult {
	t.Helper()
	dec, err := e.Engine.VerifyContent(e.ctx, content, kind)
	require.NoError(t, err)
	require.NotNil(t, dec)
	return dec
}

// --- 环境检查 ---

// SkipIfNoRedis 如果没有 Redis 则跳过测试
func SkipIfNoRedis(t *testing.T) {
	t.Helper()
	if os.Getenv("VERIFLOW_REDIS_ADDR") == "" {
		t.Skip("Skipping test: Redis not configured (set VERIFLOW_REDIS_ADDR)")
	}
}

// SkipIfNoPostgres 如果没有 PostgreSQL 则跳过测试
func SkipIfNoPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("VERIFLOW_DATABASE_HOST") == "" {
		t.Skip("Skipping test: PostgreSQL not configured (set VERIFLOW_DATABASE_HOST)")
	}
}

// SkipIfShort 如果是短测试模式则跳过
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
}

// validVerdicts 决策结论的合法取值
func validVerdicts() map[types.Verdict]struct{} {
	return map[types.Verdict]struct{}{
		types.VerdictVerifiedTrue:         {},
		types.VerdictVerifiedFalse:        {},
		types.VerdictMisleading:           {},
		types.VerdictUnverified:           {},
		types.VerdictInsufficientEvidence: {},
		types.VerdictError:                {},
	}
}
