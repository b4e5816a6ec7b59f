package bttconf

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileWatcher 监听 properties 文件变化并触发 Store 重新加载。
// 与定时加载互补：定时加载保证最终一致，文件事件让变化更快生效。
type FileWatcher struct {
	path          string
	watcher       *fsnotify.Watcher
	store         *Store
	logger        *zap.Logger
	debounceDelay time.Duration
	mu            sync.Mutex
	stopCh        chan struct{}
	stoppedCh     chan struct{}
	running       bool
}

// FileWatcherOption 配置 FileWatcher。
type FileWatcherOption func(*FileWatcher)

// WithDebounceDelay 合并 delay 内的连续文件事件。
func WithDebounceDelay(delay time.Duration) FileWatcherOption {
	return func(w *FileWatcher) {
		w.debounceDelay = delay
	}
}

// NewFileWatcher 创建文件监听器，日志沿用 store 的 logger。
func NewFileWatcher(path string, store *Store, opts ...FileWatcherOption) (*FileWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FileWatcher{
		path:          absPath,
		watcher:       fsWatcher,
		store:         store,
		logger:        store.logger,
		debounceDelay: 100 * time.Millisecond,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start 开始监听。监听的是文件所在目录，以便覆盖重命名替换的写法。
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.running = true

	w.logger.Info("started watching properties file", zap.String("path", w.path))
	go w.watch(ctx)
	return nil
}

// Stop 停止监听并等待循环退出。
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh

	return w.watcher.Close()
}

func (w *FileWatcher) watch(ctx context.Context) {
	defer close(w.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("properties file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounceDelay)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			if err := w.store.TriggerReload(ctx); err != nil {
				w.logger.Warn("properties reload abandoned", zap.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("properties watcher error", zap.Error(err))
		}
	}
}

// relevant 只关心目标文件的写入、创建、重命名和删除。
func (w *FileWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}
