package config

import (
	"time"

	"github.com/veriflow-ai/veriflow/aggregate"
	"github.com/veriflow-ai/veriflow/decision"
	"github.com/veriflow-ai/veriflow/health"
	"github.com/veriflow-ai/veriflow/router"
	"github.com/veriflow-ai/veriflow/workflow"
)

// DefaultConfig 返回全部节的默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Auth:        DefaultAuthConfig(),
		Router:      *router.DefaultConfig(),
		Workflow:    *workflow.DefaultConfig(),
		Aggregation: *aggregate.DefaultConfig(),
		Decision:    *decision.DefaultConfig(),
		Health:      *health.DefaultConfig(),
		Store:       DefaultStoreConfig(),
		Redis:       DefaultRedisConfig(),
		Database:    DefaultDatabaseConfig(),
		Mongo:       DefaultMongoConfig(),
		Cache:       DefaultCacheConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxConnections:  512,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultAuthConfig 返回默认鉴权配置（默认关闭）
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:   false,
		SkipPaths: []string{"/healthz", "/ready", "/version"},
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      "memory",
		TTL:       0,
		ListLimit: 50,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "veriflow:",
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "veriflow",
		Name:            "veriflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "veriflow",
		ConnectTimeout: 10 * time.Second,
	}
}

// DefaultCacheConfig 返回默认缓存配置（默认关闭）
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   false,
		TTL:       15 * time.Minute,
		KeyPrefix: "veriflow:decision:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置（默认关闭）
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		Insecure:       true,
		ServiceName:    "veriflow",
		SampleRate:     0.1,
		MetricInterval: time.Minute,
	}
}
