package config

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watcher 以轮询文件元数据的方式监听配置文件变更。变更判定依据
// 修改时间或文件大小，文件被删除再重建也会触发回调。
type Watcher struct {
	path     string
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	callbacks []func(path string)
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	lastMod  time.Time
	lastSize int64
	seen     bool
}

// NewWatcher 创建配置文件监听器。interval 非正时使用 2 秒。
func NewWatcher(path string, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     path,
		interval: interval,
		logger:   logger.With(zap.String("component", "config_watcher")),
	}
}

// OnChange 注册变更回调，按注册顺序同步调用
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start 启动轮询。重复调用是空操作。
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	// 记录初始快照，启动时已存在的文件不触发回调
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
		w.lastSize = info.Size()
		w.seen = true
	}
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx)
	w.logger.Info("config watcher started",
		zap.String("path", w.path),
		zap.Duration("interval", w.interval),
	)
}

// Stop 停止轮询并等待退出。未启动时是空操作。
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info("config watcher stopped")
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)

	w.mu.Lock()
	if err != nil {
		// 文件暂时不存在，标记缺席，等待重建
		w.seen = false
		w.mu.Unlock()
		return
	}

	changed := !w.seen || !info.ModTime().Equal(w.lastMod) || info.Size() != w.lastSize
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	w.seen = true
	callbacks := make([]func(string), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	if !changed {
		return
	}

	w.logger.Info("config file changed", zap.String("path", w.path))
	for _, fn := range callbacks {
		fn(w.path)
	}
}
