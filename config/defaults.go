// =============================================================================
// 📦 zigen 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/zigen/internal/database"
	"github.com/BaSui01/zigen/internal/pool"
	"github.com/BaSui01/zigen/internal/settings"
	"github.com/BaSui01/zigen/pipeline"
	"github.com/BaSui01/zigen/types"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Service:       DefaultServiceConfig(),
		Defaults:      types.DefaultGenerationParams(),
		Upscale:       types.DefaultUpscaleParams(),
		Messages:      pipeline.DefaultMessages(),
		SettingsStore: SettingsStoreConfig{Backend: "memory"},
		Redis:         DefaultRedisConfig(),
		Database:      DefaultDatabaseConfig(),
		Log:           DefaultLogConfig(),
		Telemetry:     DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultServiceConfig 返回默认上游服务配置
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		URL:                 settings.DefaultServiceURL,
		Timeout:             120 * time.Second,
		MaxConcurrentTasks:  pool.DefaultGateCapacity,
		UpscaleParallelism:  1,
		Verbose:             true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		Key:          settings.DefaultRedisKey,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置（未启用）
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:         "localhost",
		Port:         5432,
		User:         "zigen",
		Name:         "zigen",
		SSLMode:      "disable",
		HistoryLimit: 1000,
		Pool:         database.DefaultPoolConfig(),
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

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "zigen",
		SampleRate:   0.1,
	}
}
