package bttconf

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// scheduler 按固定周期调用 reload。
// reload 在循环协程内同步执行，因此同一个 Store 的定时加载不会重叠；
// 加载期间错过的 tick 由 time.Ticker 丢弃。
type scheduler struct {
	interval  time.Duration
	reload    func(ctx context.Context) error
	logger    *zap.Logger
	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

func newScheduler(interval time.Duration, reload func(ctx context.Context) error, logger *zap.Logger) *scheduler {
	return &scheduler{
		interval:  interval,
		reload:    reload,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (sc *scheduler) start(ctx context.Context) {
	sc.logger.Info("properties reload scheduled", zap.Duration("interval", sc.interval))
	go sc.run(ctx)
}

// stop 停止循环并等待正在执行的 reload 返回。
func (sc *scheduler) stop() {
	sc.stopOnce.Do(func() {
		close(sc.stopCh)
	})
	<-sc.stoppedCh
}

func (sc *scheduler) run(ctx context.Context) {
	defer close(sc.stoppedCh)

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sc.stopCh:
			return
		case <-ticker.C:
			sc.tick(ctx)
		}
	}
}

// tick 捕获 reload 中的 panic，保证调度协程不退出。
func (sc *scheduler) tick(ctx context.Context) {
	if err := sc.safeReload(ctx); err != nil {
		sc.logger.Warn("properties reload abandoned", zap.Error(err))
	}
}

func (sc *scheduler) safeReload(ctx context.Context) (err error) {
	defer recoverReload(sc.logger, &err)
	return sc.reload(ctx)
}
