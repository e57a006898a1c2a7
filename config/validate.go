package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/zigen/image"
	"github.com/BaSui01/zigen/internal/database"
	"github.com/BaSui01/zigen/internal/settings"
	"github.com/BaSui01/zigen/internal/tlsutil"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.HTTPPort {
		errs = append(errs, "metrics port must differ from HTTP port")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, "rate limit cannot be negative")
	}

	if c.Service.Timeout <= 0 {
		errs = append(errs, "service timeout must be positive")
	}
	if c.Service.MaxConcurrentTasks <= 0 {
		errs = append(errs, "max_concurrent_tasks must be positive")
	}
	if c.Service.UpscaleParallelism <= 0 {
		errs = append(errs, "upscale_parallelism must be positive")
	}

	if err := c.InitialSettings().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	switch c.SettingsStore.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Redis.Addr) == "" {
			errs = append(errs, "redis addr is required for the redis settings store")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown settings_store backend %q (supported: memory, redis)", c.SettingsStore.Backend))
	}

	if err := c.Database.Options().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}
	if c.Telemetry.Enabled && (c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1) {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New("config validation errors: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitialSettings 设置存储为空时写入的初始设置
func (c *Config) InitialSettings() settings.Settings {
	return settings.Settings{
		ServiceURL: strings.TrimSpace(c.Service.URL),
		Verbose:    c.Service.Verbose,
		Defaults:   c.Defaults,
		Upscale:    c.Upscale,
	}
}

// ClientConfig 上游 HTTP 客户端配置
func (c *Config) ClientConfig() image.ClientConfig {
	return image.ClientConfig{
		Timeout: c.Service.Timeout,
		Transport: tlsutil.TransportConfig{
			MaxIdleConns:        c.Service.MaxIdleConns,
			MaxIdleConnsPerHost: c.Service.MaxIdleConnsPerHost,
			IdleConnTimeout:     c.Service.IdleConnTimeout,
		},
	}
}

// Settings 转换为设置存储使用的 Redis 配置
func (r RedisConfig) Settings() settings.RedisConfig {
	return settings.RedisConfig{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		MinIdleConns: r.MinIdleConns,
		MaxRetries:   r.MaxRetries,
		TLS:          r.TLS,
		Key:          r.Key,
	}
}

// DSN 返回数据库连接字符串
func (d DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite", "sqlite3":
		return d.Name
	default:
		return ""
	}
}

// Options 转换为 database 包的配置
func (d DatabaseConfig) Options() database.Config {
	return database.Config{
		Driver:       d.Driver,
		DSN:          d.DSN(),
		HistoryLimit: d.HistoryLimit,
		Pool:         d.Pool,
	}
}
