package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/veriflow-ai/veriflow/aggregate"
	"github.com/veriflow-ai/veriflow/decision"
	"github.com/veriflow-ai/veriflow/health"
	"github.com/veriflow-ai/veriflow/router"
	"github.com/veriflow-ai/veriflow/workflow"
)

// Config 是核验引擎的完整配置。编排组件的配置节直接复用各包的
// Config 类型，单一事实来源。
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server"`

	// Auth 接口鉴权配置
	Auth AuthConfig `yaml:"auth"`

	// Router 路由表配置
	Router router.Config `yaml:"router"`

	// Workflow 工作流执行配置
	Workflow workflow.Config `yaml:"workflow"`

	// Aggregation 共识聚合配置
	Aggregation aggregate.Config `yaml:"aggregation"`

	// Decision 决策引擎配置
	Decision decision.Config `yaml:"decision"`

	// Health 健康监控配置
	Health health.Config `yaml:"health"`

	// Store 核验历史存储配置
	Store StoreConfig `yaml:"store"`

	// Redis Redis 连接配置
	Redis RedisConfig `yaml:"redis"`

	// Database 关系型数据库配置
	Database DatabaseConfig `yaml:"database"`

	// Mongo MongoDB 连接配置
	Mongo MongoConfig `yaml:"mongo"`

	// Cache 决策缓存配置
	Cache CacheConfig `yaml:"cache"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// HTTPPort API 端口
	HTTPPort int `yaml:"http_port"`
	// MetricsPort 指标端口
	MetricsPort int `yaml:"metrics_port"`
	// ReadTimeout 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// IdleTimeout 空闲连接超时
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// ShutdownTimeout 优雅关闭预算
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxConnections 监听器并发连接上限
	MaxConnections int `yaml:"max_connections"`
	// RateLimitRPS 单客户端令牌桶速率
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
	// RateLimitBurst 单客户端令牌桶容量
	RateLimitBurst int `yaml:"rate_limit_burst"`
	// CORSAllowedOrigins 允许的跨域来源，空表示不启用 CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	// TLSCertFile 证书路径，与 TLSKeyFile 同时设置时启用 HTTPS
	TLSCertFile string `yaml:"tls_cert_file"`
	// TLSKeyFile 私钥路径
	TLSKeyFile string `yaml:"tls_key_file"`
}

// AuthConfig 接口鉴权配置
type AuthConfig struct {
	// Enabled 是否启用鉴权
	Enabled bool `yaml:"enabled"`
	// APIKeys 静态 API Key 名单
	APIKeys []string `yaml:"api_keys"`
	// JWTSecret JWT 签名密钥，非空时启用 Bearer 校验
	JWTSecret string `yaml:"jwt_secret"`
	// JWTIssuer 期望的 JWT 签发方，空表示不校验
	JWTIssuer string `yaml:"jwt_issuer"`
	// SkipPaths 跳过鉴权的路径
	SkipPaths []string `yaml:"skip_paths"`
}

// StoreConfig 核验历史存储配置
type StoreConfig struct {
	// Type 存储后端: memory, redis, mongo, sql
	Type string `yaml:"type"`
	// TTL 存储条目的保留时长，0 表示不过期（memory 与 redis 后端生效）
	TTL time.Duration `yaml:"ttl"`
	// ListLimit 列表查询的默认页大小
	ListLimit int `yaml:"list_limit"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	// Addr 地址
	Addr string `yaml:"addr"`
	// Password 密码
	Password string `yaml:"password"`
	// DB 数据库编号
	DB int `yaml:"db"`
	// PoolSize 连接池大小
	PoolSize int `yaml:"pool_size"`
	// MinIdleConns 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns"`
	// KeyPrefix 所有键的公共前缀
	KeyPrefix string `yaml:"key_prefix"`
}

// DatabaseConfig 关系型数据库配置
type DatabaseConfig struct {
	// Driver 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver"`
	// Host 主机
	Host string `yaml:"host"`
	// Port 端口
	Port int `yaml:"port"`
	// User 用户名
	User string `yaml:"user"`
	// Password 密码
	Password string `yaml:"password"`
	// Name 数据库名（sqlite 为文件路径）
	Name string `yaml:"name"`
	// SSLMode SSL 模式（仅 postgres）
	SSLMode string `yaml:"ssl_mode"`
	// MaxOpenConns 最大连接数
	MaxOpenConns int `yaml:"max_open_conns"`
	// MaxIdleConns 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns"`
	// ConnMaxLifetime 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 按驱动类型拼装连接串
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case "sqlite":
		return c.Name
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
}

// MongoConfig MongoDB 连接配置
type MongoConfig struct {
	// URI 连接串
	URI string `yaml:"uri"`
	// Database 数据库名
	Database string `yaml:"database"`
	// ConnectTimeout 建连超时
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// CacheConfig 决策缓存配置
type CacheConfig struct {
	// Enabled 是否启用缓存
	Enabled bool `yaml:"enabled"`
	// TTL 缓存条目存活时长
	TTL time.Duration `yaml:"ttl"`
	// KeyPrefix 缓存键前缀
	KeyPrefix string `yaml:"key_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别: debug, info, warn, error
	Level string `yaml:"level"`
	// Format 输出格式: json, console
	Format string `yaml:"format"`
	// OutputPaths 输出路径
	OutputPaths []string `yaml:"output_paths"`
	// Development 开发模式（彩色级别、DPanic 生效）
	Development bool `yaml:"development"`
	// EnableCaller 是否记录调用位置
	EnableCaller bool `yaml:"enable_caller"`
	// EnableStacktrace 是否在 error 级别附带堆栈
	EnableStacktrace bool `yaml:"enable_stacktrace"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// Enabled 是否启用 OpenTelemetry 导出
	Enabled bool `yaml:"enabled"`
	// OTLPEndpoint OTLP gRPC 端点
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// Insecure 是否使用明文 gRPC
	Insecure bool `yaml:"insecure"`
	// ServiceName 上报的服务名
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率 [0,1]
	SampleRate float64 `yaml:"sample_rate"`
	// MetricInterval 指标导出周期
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// Validate 校验跨字段约束，返回聚合后的错误
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.http_port %d out of range", c.Server.HTTPPort))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.metrics_port %d out of range", c.Server.MetricsPort))
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.HTTPPort {
		errs = append(errs, "server.metrics_port must differ from server.http_port")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "server.tls_cert_file and server.tls_key_file must be set together")
	}

	switch c.Store.Type {
	case "memory", "redis", "mongo", "sql":
	default:
		errs = append(errs, fmt.Sprintf("store.type %q not one of memory, redis, mongo, sql", c.Store.Type))
	}

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q not one of postgres, mysql, sqlite", c.Database.Driver))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q not one of json, console", c.Log.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_rate %v out of [0,1]", c.Telemetry.SampleRate))
	}

	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.enabled requires api_keys or jwt_secret")
	}

	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, "cache.enabled requires a positive cache.ttl")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
