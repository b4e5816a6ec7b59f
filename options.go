package bttconf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option 配置 Store。
type Option func(*Store)

// WithLogger 设置日志。默认不输出。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReloadInterval 显式指定后台重新加载周期，<= 0 表示禁用。
// 不设置时读取初始配置中的 reload-interval-seconds。
func WithReloadInterval(d time.Duration) Option {
	return func(s *Store) {
		s.interval = d
		s.intervalSet = true
	}
}

// WithRegisterer 将指标注册到 reg。
// 同一个 Registerer 只能注册一个 Store。
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.registerer = reg
	}
}

// WithReloadLimit 限制 TriggerReload 的频率 (文件/Stream 触发)。
// 定时重新加载和直接调用 Reload 不受限制。
func WithReloadLimit(limit rate.Limit, burst int) Option {
	return func(s *Store) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}
