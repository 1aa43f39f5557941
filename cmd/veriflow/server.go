package main

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	veriflow "github.com/veriflow-ai/veriflow"
	"github.com/veriflow-ai/veriflow/agent/builtin"
	"github.com/veriflow-ai/veriflow/api/handlers"
	"github.com/veriflow-ai/veriflow/config"
	"github.com/veriflow-ai/veriflow/internal/cache"
	"github.com/veriflow-ai/veriflow/internal/metrics"
	"github.com/veriflow-ai/veriflow/internal/server"
	"github.com/veriflow-ai/veriflow/internal/telemetry"
	"github.com/veriflow-ai/veriflow/persistence"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 VeriFlow 的主服务器
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	level      zap.AtomicLevel
	otel       *telemetry.Providers

	// 核验引擎与依赖
	engine *veriflow.Engine
	store  persistence.Store
	cache  *cache.DecisionCache

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	verifyHandler *handlers.VerifyHandler
	agentHandler  *handlers.AgentHandler
	alertHandler  *handlers.AlertHandler
	eventsHandler *handlers.EventsHandler
	probeHandler  *handlers.ProbeHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 配置文件监听器
	watcher *config.Watcher

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, level zap.AtomicLevel, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		level:      level,
		otel:       otel,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("veriflow", s.logger)

	// 2. 组装核验引擎
	if err := s.initEngine(); err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()

	// 4. 启动配置文件监听
	s.initConfigWatcher()

	// 5. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Int("agents", s.engine.Registry().Count()),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initEngine 构建历史存储、决策缓存与核验引擎，并注册内置代理
func (s *Server) initEngine() error {
	ctx := context.Background()

	// 历史存储：后端不可达时降级为内存存储，核验路径不受影响
	store, err := persistence.NewStore(ctx, s.cfg, s.logger)
	if err != nil {
		s.logger.Warn("history store unavailable, falling back to in-memory store",
			zap.String("type", s.cfg.Store.Type),
			zap.Error(err))
		store = persistence.NewMemoryStore(s.cfg.Store)
	}
	s.store = store

	// 决策缓存：可选，Redis 不可达时禁用
	opts := []veriflow.Option{
		veriflow.WithConfig(s.cfg),
		veriflow.WithLogger(s.logger),
		veriflow.WithStore(store),
		veriflow.WithMetrics(s.metricsCollector),
	}
	if s.cfg.Cache.Enabled {
		c, cacheErr := cache.New(ctx, s.cfg.Cache, s.cfg.Redis, s.logger)
		if cacheErr != nil {
			s.logger.Warn("decision cache unavailable, caching disabled", zap.Error(cacheErr))
		} else {
			s.cache = c
			opts = append(opts, veriflow.WithCache(c))
		}
	}

	engine, err := veriflow.New(opts...)
	if err != nil {
		return err
	}
	s.engine = engine

	if err := engine.RegisterAgents(builtin.All(nil, s.logger)...); err != nil {
		return fmt.Errorf("failed to register builtin agents: %w", err)
	}

	s.logger.Info("Verification engine ready",
		zap.String("store", s.cfg.Store.Type),
		zap.Bool("cache", s.cache != nil),
	)
	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.verifyHandler = handlers.NewVerifyHandler(s.engine, s.engine.Store(), s.logger)
	s.agentHandler = handlers.NewAgentHandler(s.engine.Registry(), s.engine.Monitor(), s.logger)
	s.alertHandler = handlers.NewAlertHandler(s.engine.Monitor(), s.logger)
	s.eventsHandler = handlers.NewEventsHandler(s.engine.Bus(), s.cfg.Server.CORSAllowedOrigins, s.logger)

	// 就绪探针挂接存储与缓存 ping
	s.probeHandler = handlers.NewProbeHandler(s.logger)
	s.probeHandler.RegisterCheck(handlers.NewPingCheck("store", s.store.Ping))
	if s.cache != nil {
		s.probeHandler.RegisterCheck(handlers.NewPingCheck("cache", s.cache.Ping))
	}

	s.logger.Info("Handlers initialized")
}

// initConfigWatcher 启动配置文件变更监听。仅日志级别支持热更新；
// 其余字段的变更记录告警，重启后生效。
func (s *Server) initConfigWatcher() {
	if s.configPath == "" {
		return
	}

	s.watcher = config.NewWatcher(s.configPath, 0, s.logger)
	s.watcher.OnChange(func(path string) {
		newCfg, err := config.NewLoader().WithConfigPath(path).Load()
		if err != nil {
			s.logger.Error("config reload failed, keeping current config", zap.Error(err))
			return
		}
		if err := newCfg.Validate(); err != nil {
			s.logger.Error("reloaded config invalid, keeping current config", zap.Error(err))
			return
		}

		if newCfg.Log.Level != s.cfg.Log.Level {
			s.level.SetLevel(parseLogLevel(newCfg.Log.Level))
			s.logger.Info("log level updated",
				zap.String("from", s.cfg.Log.Level),
				zap.String("to", newCfg.Log.Level),
			)
		}
		if !reflect.DeepEqual(newCfg.Server, s.cfg.Server) {
			s.logger.Warn("server config changed on disk, restart required to apply")
		}
		s.cfg.Log = newCfg.Log
	})
	s.watcher.Start(context.Background())
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 服务探针端点
	// ========================================
	mux.HandleFunc("GET /healthz", s.probeHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.probeHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.probeHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("GET /version", s.probeHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// API 路由
	// ========================================
	mux.HandleFunc("POST /api/v1/verify", s.verifyHandler.HandleVerify)
	mux.HandleFunc("GET /api/v1/verifications", s.verifyHandler.HandleListDecisions)
	mux.HandleFunc("GET /api/v1/verifications/{id}", s.verifyHandler.HandleGetDecision)

	mux.HandleFunc("GET /api/v1/agents", s.agentHandler.HandleListAgents)
	mux.HandleFunc("GET /api/v1/agents/health", s.agentHandler.HandleAllAgentHealth)
	mux.HandleFunc("GET /api/v1/agents/health/{id}", s.agentHandler.HandleAgentHealth)
	mux.HandleFunc("GET /api/v1/system/health", s.agentHandler.HandleSystemHealth)

	mux.HandleFunc("GET /api/v1/alerts", s.alertHandler.HandleListAlerts)
	mux.HandleFunc("POST /api/v1/alerts/{id}/resolve", s.alertHandler.HandleResolveAlert)

	mux.HandleFunc("GET /api/v1/events/ws", s.eventsHandler.HandleEvents)

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := s.cfg.Auth.SkipPaths
	if len(skipAuthPaths) == 0 {
		skipAuthPaths = []string{"/healthz", "/ready", "/readyz", "/version"}
	}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Auth.Enabled {
		if s.cfg.Auth.JWTSecret != "" {
			middlewares = append(middlewares, JWTAuth(s.cfg.Auth, skipAuthPaths, s.logger))
		} else {
			middlewares = append(middlewares, APIKeyAuth(s.cfg.Auth.APIKeys, skipAuthPaths, s.logger))
		}
	}
	handler := Chain(mux, middlewares...)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		MaxConnections:  s.cfg.Server.MaxConnections,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）；证书与私钥齐备时走 HTTPS
	var err error
	if s.cfg.Server.TLSCertFile != "" && s.cfg.Server.TLSKeyFile != "" {
		err = s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
	} else {
		err = s.httpManager.Start()
	}
	if err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.httpManager.Addr()))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器。MetricsPort 为 0 时不启动。
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort <= 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.String("addr", s.metricsManager.Addr()))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	// 使用 httpManager 的 WaitForShutdown（它会监听信号）
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	// 执行清理
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 0. 停止 rate limiter 清理 goroutine 与配置监听
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}

	// 1. 关闭 HTTP 服务器，停止接收新请求
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 3. 关闭核验引擎（监控、总线、存储、缓存随之关闭）
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Error("Engine shutdown error", zap.Error(err))
		}
	}

	// 4. 冲刷遥测管道
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 5. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
