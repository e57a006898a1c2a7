package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config 数据库配置
type Config struct {
	// Driver: postgres | mysql | sqlite，为空时不启用任务历史
	Driver string `yaml:"driver" json:"driver" env:"DRIVER"`

	DSN string `yaml:"dsn" json:"-" env:"DSN"`

	// HistoryLimit 保留的任务记录条数，0 表示不裁剪
	HistoryLimit int `yaml:"history_limit" json:"history_limit" env:"HISTORY_LIMIT"`

	Pool PoolConfig `yaml:"pool" json:"pool" env:"POOL"`
}

// DefaultConfig 默认不启用数据库
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 1000,
		Pool:         DefaultPoolConfig(),
	}
}

// Enabled 是否配置了数据库
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Driver) != ""
}

// Validate 检查数据库配置
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if _, err := dialector(c.Driver, "x"); err != nil {
		return err
	}
	if strings.TrimSpace(c.DSN) == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Driver)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit cannot be negative")
	}
	return c.Pool.Validate()
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", driver)
	}
}

// Open 根据配置打开数据库连接
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("database driver not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d, err := dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	logger.Info("database connected", zap.String("driver", cfg.Driver))
	return db, nil
}
