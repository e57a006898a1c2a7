// 配置文件变更监听。
//
// 轮询配置文件的修改时间，变更后经过防抖重新加载并校验，
// 成功时把新配置交给回调；加载或校验失败时保留旧配置。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReloadFunc 接收重新加载后的配置
type ReloadFunc func(cfg *Config)

// Watcher 监听配置文件并在变更后重新加载
type Watcher struct {
	loader   *Loader
	interval time.Duration
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	callbacks []ReloadFunc
	lastMod   time.Time
	running   bool
	stop      chan struct{}
	done      chan struct{}
}

// WatcherOption 可选配置
type WatcherOption func(*Watcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.interval = d }
}

// WithDebounceDelay 设置防抖延迟
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatcherLogger 设置日志
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher 为 loader 的配置文件创建监听器
func NewWatcher(loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil || loader.ConfigPath() == "" {
		return nil, fmt.Errorf("watcher requires a loader with a config path")
	}
	w := &Watcher{
		loader:   loader,
		interval: time.Second,
		debounce: 100 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "config_watcher"))
	return w, nil
}

// OnReload 注册回调
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start 开始轮询，ctx 取消或调用 Stop 后结束
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	if info, err := os.Stat(w.loader.ConfigPath()); err == nil {
		w.lastMod = info.ModTime()
	}

	go w.loop(ctx, w.stop, w.done)

	w.logger.Info("config watcher started",
		zap.String("path", w.loader.ConfigPath()),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop 停止轮询并等待后台 goroutine 退出
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()
	<-done
}

func (w *Watcher) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if w.changed() {
				pending = time.After(w.debounce)
			}
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) changed() bool {
	info, err := os.Stat(w.loader.ConfigPath())
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.lastMod) {
		return false
	}
	w.lastMod = info.ModTime()
	return true
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Error("config reload rejected, keeping previous config", zap.Error(err))
		return
	}

	w.mu.Lock()
	callbacks := append([]ReloadFunc(nil), w.callbacks...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.loader.ConfigPath()))
	for _, cb := range callbacks {
		cb(cfg)
	}
}
