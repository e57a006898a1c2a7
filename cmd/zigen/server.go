package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/zigen/api/handlers"
	"github.com/BaSui01/zigen/config"
	"github.com/BaSui01/zigen/internal/metrics"
	"github.com/BaSui01/zigen/internal/server"
	"github.com/BaSui01/zigen/internal/telemetry"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 zigen 的主服务器
type Server struct {
	cfg    *config.Config
	loader *config.Loader
	logger *zap.Logger
	level  zap.AtomicLevel

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	telemetry *telemetry.Providers
	registry  *prometheus.Registry
	collector *metrics.Collector
	rt        *runtime

	// 配置文件监听（未指定配置文件时为 nil）
	watcher *config.Watcher

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例；loader 带配置文件路径时启用热更新
func NewServer(cfg *config.Config, loader *config.Loader, logger *zap.Logger, level zap.AtomicLevel, providers *telemetry.Providers) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Server{
		cfg:       cfg,
		loader:    loader,
		logger:    logger,
		level:     level,
		telemetry: providers,
		registry:  reg,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start(ctx context.Context) error {
	// 1. 初始化指标收集器
	s.collector = metrics.NewCollectorWithRegistry("zigen", s.registry, s.logger)

	// 2. 组装运行时（设置存储、任务历史、流水线）
	rt, err := newRuntime(ctx, s.cfg, s.logger, runtimeOptions{
		collector: s.collector,
		tracer:    s.telemetry.Tracer("zigen/pipeline"),
	})
	if err != nil {
		return fmt.Errorf("failed to init runtime: %w", err)
	}
	s.rt = rt

	// 3. 配置文件监听
	if err := s.startWatcher(ctx); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.String("http_addr", s.httpManager.ListenAddr()),
		zap.String("metrics_addr", s.metricsManager.ListenAddr()),
		zap.Bool("hot_reload_enabled", s.watcher != nil),
		zap.Bool("telemetry_enabled", s.telemetry.Enabled()),
	)
	return nil
}

// startWatcher 配置变更时只热更新日志级别，其余字段需要重启
func (s *Server) startWatcher(ctx context.Context) error {
	if s.loader == nil || s.loader.ConfigPath() == "" {
		return nil
	}
	w, err := config.NewWatcher(s.loader, config.WithWatcherLogger(s.logger))
	if err != nil {
		return err
	}
	w.OnReload(func(next *config.Config) {
		lvl, err := zapcore.ParseLevel(next.Log.Level)
		if err != nil {
			s.logger.Warn("ignoring invalid log level", zap.String("level", next.Log.Level))
			return
		}
		if lvl != s.level.Level() {
			s.level.SetLevel(lvl)
			s.logger.Info("log level changed", zap.String("level", lvl.String()))
		}
		s.logger.Info("configuration reloaded, restart to apply non-log changes")
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	s.watcher = w
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// routes 注册全部端点并返回带中间件链的 handler
func (s *Server) routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewPingCheck("settings_store", s.rt.store.Ping))
	if s.rt.db != nil {
		health.RegisterCheck(handlers.NewPingCheck("database", s.rt.db.Ping).
			WithDetails(func() any { return s.rt.db.GetStats() }))
	}
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 生成 API
	// ========================================
	images := handlers.NewImageHandler(s.rt.pipeline, s.rt.store, s.logger,
		handlers.WithOriginPatterns(s.cfg.Server.WebSocketOrigins...))
	mux.HandleFunc("POST /api/v1/images/generations", images.HandleGenerate)
	mux.HandleFunc("POST /api/v1/images/generations/stream", images.HandleStream)
	mux.HandleFunc("GET /api/v1/images/ws", images.HandleWebSocket)

	// ========================================
	// 配置管理 API（配置了 JWT 时单独鉴权）
	// ========================================
	settingsHandler := handlers.NewSettingsHandler(s.rt.store, s.collector, s.logger)
	var getSettings, patchSettings http.Handler = http.HandlerFunc(settingsHandler.HandleGet), http.HandlerFunc(settingsHandler.HandlePatch)
	if s.cfg.JWT.Enabled() {
		auth := JWTAuth(s.cfg.JWT, s.logger)
		getSettings, patchSettings = auth(getSettings), auth(patchSettings)
		s.logger.Info("settings API protected by JWT")
	}
	mux.Handle("GET /api/v1/settings", getSettings)
	mux.Handle("PATCH /api/v1/settings", patchSettings)

	// 任务历史仅在数据库可用时注册
	if s.rt.jobs != nil {
		jobs := handlers.NewJobHandler(s.rt.jobs, s.logger)
		mux.HandleFunc("GET /api/v1/jobs", jobs.HandleList)
	}

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(ctx)
	s.rateLimiterCancel = rateLimiterCancel
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.collector),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.cfg.Server.AllowQueryAPIKey, s.logger),
	)
}

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager("api", s.routes(context.Background()), serverConfig, s.logger)
	return s.httpManager.Start()
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager("metrics", mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown(ctx context.Context) error {
	var cause error
	if s.httpManager != nil {
		cause = s.httpManager.WaitForShutdown(ctx)
	}
	s.Shutdown()
	return cause
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	// 1. 停止配置监听
	if s.watcher != nil {
		s.watcher.Stop()
	}

	// 2. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 3. 关闭 HTTP 服务器（排空进行中的生成任务）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 4. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	// 5. 释放连接
	if s.rt != nil {
		s.rt.Close()
	}

	// 6. 刷新遥测
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("graceful shutdown completed")
}
