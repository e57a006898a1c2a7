package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/internal/tlsutil"
	"github.com/BaSui01/zigen/types"
)

// =============================================================================
// 💾 Redis 配置存储
// =============================================================================

// DefaultRedisKey is the key holding the settings document.
const DefaultRedisKey = "zigen:settings"

// maxUpdateAttempts bounds optimistic-lock retries when replicas write concurrently.
const maxUpdateAttempts = 8

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	TLS          bool
	Key          string
}

// OpenRedis 创建 Redis 客户端并测试连接
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps one JSON settings document in Redis so every replica sees the same values.
type RedisStore struct {
	client   *redis.Client
	key      string
	defaults Settings
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore wraps client. Until the key exists, Snapshot returns defaults.
func NewRedisStore(client *redis.Client, key string, defaults Settings, logger *zap.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:   client,
		key:      key,
		defaults: defaults,
		logger:   logger.With(zap.String("component", "settings_store"), zap.String("key", key)),
	}
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Init writes the defaults if no document exists yet. It reports whether it wrote.
func (s *RedisStore) Init(ctx context.Context) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	data, err := json.Marshal(s.defaults)
	if err != nil {
		return false, fmt.Errorf("marshal settings: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("seed settings: %w", err)
	}
	if created {
		s.logger.Info("settings seeded from defaults")
	}
	return created, nil
}

// Snapshot returns the stored settings, or the defaults when none are stored.
func (s *RedisStore) Snapshot(ctx context.Context) (Settings, error) {
	if err := s.checkOpen(); err != nil {
		return Settings{}, err
	}
	return s.load(ctx, s.client)
}

// Update applies fn inside WATCH/MULTI so concurrent writers never lose each other's changes.
func (s *RedisStore) Update(ctx context.Context, fn Mutation) (Settings, error) {
	if err := s.checkOpen(); err != nil {
		return Settings{}, err
	}

	var updated Settings
	txf := func(tx *redis.Tx) error {
		next, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(&next); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			if _, ok := types.AsError(err); !ok {
				s.logger.Error("settings update failed", zap.Error(err))
			}
			return Settings{}, err
		}
		s.logger.Debug("settings update conflict, retrying", zap.Int("attempt", attempt))
	}
	return Settings{}, types.NewError(types.ErrInternalError, "settings update kept conflicting with other writers")
}

// Ping 检查 Redis 连接
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

// Close 关闭底层客户端
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c stringGetter) (Settings, error) {
	raw, err := c.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	// 从默认值开始解码，旧文档缺少的字段保持默认
	current := s.defaults
	if err := json.Unmarshal(raw, &current); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return current, nil
}

func (s *RedisStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("settings store is closed")
	}
	return nil
}
