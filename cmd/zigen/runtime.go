package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/config"
	"github.com/BaSui01/zigen/image"
	"github.com/BaSui01/zigen/internal/database"
	"github.com/BaSui01/zigen/internal/metrics"
	"github.com/BaSui01/zigen/internal/pool"
	"github.com/BaSui01/zigen/internal/settings"
	"github.com/BaSui01/zigen/pipeline"
)

// =============================================================================
// 🧩 运行时组件（serve 与 gen 共用）
// =============================================================================

// runtime 持有一次进程生命周期内的共享组件
type runtime struct {
	store    settings.Store
	db       *database.PoolManager // 未配置数据库时为 nil
	jobs     *database.JobRepository
	client   *image.Client
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// runtimeOptions serve 传入指标与 tracer，gen 全部留空
type runtimeOptions struct {
	collector *metrics.Collector
	tracer    trace.Tracer
}

// newRuntime 按配置组装设置存储、任务历史、上游客户端与流水线
func newRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{logger: logger}

	store, err := openSettingsStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt.store = store

	// 数据库不可用时只关闭任务历史，不影响生成
	if dbCfg := cfg.Database.Options(); dbCfg.Enabled() {
		if err := rt.openHistory(ctx, dbCfg, opts.collector); err != nil {
			logger.Warn("job history disabled", zap.String("driver", dbCfg.Driver), zap.Error(err))
		}
	}

	var clientOpts []image.ClientOption
	if opts.collector != nil {
		clientOpts = append(clientOpts, image.WithCallObserver(opts.collector))
	}
	rt.client = image.NewClient(cfg.ClientConfig(), logger, clientOpts...)

	gate := pool.NewGate(cfg.Service.MaxConcurrentTasks)
	pipeOpts := []pipeline.Option{pipeline.WithMessages(cfg.Messages)}
	if opts.collector != nil {
		opts.collector.RegisterGate(gate)
		pipeOpts = append(pipeOpts, pipeline.WithMetrics(opts.collector))
	}
	if rt.jobs != nil {
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(rt.jobs))
	}
	if opts.tracer != nil {
		pipeOpts = append(pipeOpts, pipeline.WithTracer(opts.tracer))
	}

	rt.pipeline = pipeline.New(gate,
		image.NewGenerator(rt.client, logger),
		image.NewUpscaler(rt.client, cfg.Service.UpscaleParallelism, logger),
		logger,
		pipeOpts...,
	)

	logger.Info("runtime ready",
		zap.String("settings_backend", cfg.SettingsStore.Backend),
		zap.Bool("job_history", rt.jobs != nil),
		zap.Int("max_concurrent_tasks", gate.Capacity()),
		zap.Int("upscale_parallelism", cfg.Service.UpscaleParallelism),
	)
	return rt, nil
}

func openSettingsStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (settings.Store, error) {
	initial := cfg.InitialSettings()

	switch cfg.SettingsStore.Backend {
	case "", "memory":
		return settings.NewMemoryStore(initial), nil
	case "redis":
		rc := cfg.Redis.Settings()
		client, err := settings.OpenRedis(ctx, rc)
		if err != nil {
			return nil, err
		}
		store := settings.NewRedisStore(client, rc.Key, initial, logger)
		seeded, err := store.Init(ctx)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to seed settings: %w", err)
		}
		logger.Info("settings store connected", zap.String("addr", rc.Addr), zap.Bool("seeded", seeded))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported settings store backend: %s", cfg.SettingsStore.Backend)
	}
}

func (rt *runtime) openHistory(ctx context.Context, cfg database.Config, collector *metrics.Collector) error {
	db, err := database.Open(cfg, rt.logger)
	if err != nil {
		return err
	}

	var poolOpts []database.PoolOption
	repoOpts := []database.RepositoryOption{database.WithHistoryLimit(cfg.HistoryLimit)}
	if collector != nil {
		poolOpts = append(poolOpts, database.WithStatsReporter(db.Dialector.Name(), collector))
		repoOpts = append(repoOpts, database.WithQueryObserver(collector))
	}

	pm, err := database.NewPoolManager(db, cfg.Pool, rt.logger, poolOpts...)
	if err != nil {
		return err
	}

	jobs := database.NewJobRepository(pm, rt.logger, repoOpts...)
	if err := jobs.Migrate(ctx); err != nil {
		_ = pm.Close()
		return err
	}

	rt.db = pm
	rt.jobs = jobs
	return nil
}

// Close 释放连接；重复调用安全
func (rt *runtime) Close() {
	if rt.client != nil {
		rt.client.Close()
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Warn("failed to close settings store", zap.Error(err))
		}
	}
}
