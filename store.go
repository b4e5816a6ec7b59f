package bttconf

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Store 是主要入口点：类型化、可热加载的配置。
// 所有 Getter 都可以并发调用，且永远不会失败，格式错误时返回默认值并记录日志。
type Store struct {
	src     Source
	logger  *zap.Logger
	metrics *storeMetrics
	current atomic.Pointer[generation]

	loadSeq      atomic.Uint64 // 每次加载开始时递增
	reloadMu     sync.Mutex    // 串行化快照替换
	installedSeq uint64        // 当前快照对应的 loadSeq，受 reloadMu 保护
	limiter      *rate.Limiter

	interval    time.Duration
	intervalSet bool
	registerer  prometheus.Registerer

	ctx       context.Context
	cancel    context.CancelFunc
	scheduler *scheduler
	closeOnce sync.Once
}

// New 创建 Store 并立即加载一次。
// 重新加载周期为正时启动后台定时加载，使用完毕后应调用 Close。
func New(src Source, opts ...Option) *Store {
	if src == nil {
		src = StaticSource(nil)
	}
	s := &Store{
		src:     src,
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newStoreMetrics(s.registerer)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// 初始化空快照
	s.current.Store(&generation{snapshot: &Snapshot{Values: map[string]string{}}})

	// 立即加载
	_ = s.Reload(s.ctx)

	// 加载周期只在构造时读取一次，不随热加载变化
	if !s.intervalSet {
		s.interval = s.GetDuration(KeyReloadIntervalSeconds, -time.Second)
	}
	if s.interval > 0 {
		s.scheduler = newScheduler(s.interval, s.Reload, s.logger)
		s.scheduler.start(s.ctx)
	}

	return s
}

// ErrReloadPanicked 加载过程中发生 panic，本次结果被放弃。
var ErrReloadPanicked = errors.New("properties reload panicked")

// recoverReload 将 reload 中的 panic 转为 ErrReloadPanicked 并记录日志。
// 必须直接以 defer 调用。
func recoverReload(logger *zap.Logger, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrReloadPanicked, r)
		logger.Error("properties reload panicked", zap.Any("panic", r), zap.Stack("stack"))
	}
}

// Reload 从数据源重新加载并替换快照。
// 数据源 I/O 在锁外进行，只有替换快照时持有 reloadMu；
// 若更晚开始的加载已经安装，本次结果被丢弃。
// 数据源失败不会返回错误 (安装空快照)；ctx 取消或数据源 panic 时放弃本次结果并返回错误。
func (s *Store) Reload(ctx context.Context) (err error) {
	defer recoverReload(s.logger, &err)

	seq := s.loadSeq.Add(1)
	ss, err := s.load(ctx)
	if err != nil {
		return err
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if seq < s.installedSeq {
		s.logger.Debug("stale properties load discarded",
			zap.Uint64("seq", seq),
			zap.Uint64("installed", s.installedSeq),
		)
		return nil
	}
	s.installedSeq = seq

	prev := s.current.Load()
	ss.Generation = prev.snapshot.Generation + 1

	// 新快照与空缓存一起发布
	s.current.Store(&generation{snapshot: ss})

	s.metrics.snapshotKeys.Set(float64(ss.Len()))
	s.metrics.generation.Set(float64(ss.Generation))
	s.logger.Info("load config success",
		zap.Uint64("generation", ss.Generation),
		zap.String("hash", ss.Hash),
		zap.Int("keys", ss.Len()),
	)
	return nil
}

// TriggerReload 受限流控制的 Reload，供文件/Stream 监听器使用。
func (s *Store) TriggerReload(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// Close 停止后台加载，正在进行的加载结果被丢弃。可重复调用。
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.scheduler != nil {
			s.scheduler.stop()
		}
	})
}

// Snapshot 返回当前快照，调用方不得修改。
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load().snapshot
}

// Generation 返回当前快照的代数。
func (s *Store) Generation() uint64 {
	return s.Snapshot().Generation
}

// ReloadInterval 返回后台加载周期，<= 0 表示未启用。
func (s *Store) ReloadInterval() time.Duration {
	return s.interval
}

// LookupString 返回原始值及是否存在。
func (s *Store) LookupString(key string) (string, bool) {
	return s.Snapshot().Get(key)
}

// GetString 获取字符串，不存在时返回 def。
func (s *Store) GetString(key, def string) string {
	return getOrCompute(s, kindString, key, def, func(ss *Snapshot) string {
		if v, ok := ss.Get(key); ok {
			return v
		}
		return def
	})
}

// GetBool 值与 "true" 大小写不敏感相等时为 true，其它值为 false。
// 仅当 Key 不存在时返回 def。
func (s *Store) GetBool(key string, def bool) bool {
	return getOrCompute(s, kindBool, key, strconv.FormatBool(def), func(ss *Snapshot) bool {
		raw, ok := ss.Get(key)
		return ParseBool(raw, ok, def)
	})
}

// GetInt64 按十进制解析，格式错误时记录日志并返回 def。
func (s *Store) GetInt64(key string, def int64) int64 {
	return getOrCompute(s, kindInt64, key, strconv.FormatInt(def, 10), func(ss *Snapshot) int64 {
		raw, ok := ss.Get(key)
		v, err := ParseInt64(raw, ok, def)
		if err != nil {
			s.parseFailed(kindInt64, key, raw, err)
		}
		return v
	})
}

// GetInt 是 GetInt64 的窄化版本。
func (s *Store) GetInt(key string, def int) int {
	return int(s.GetInt64(key, int64(def)))
}

// GetDuration 纯整数按秒解析，否则按 time.ParseDuration 解析。
func (s *Store) GetDuration(key string, def time.Duration) time.Duration {
	return getOrCompute(s, kindDuration, key, def.String(), func(ss *Snapshot) time.Duration {
		raw, ok := ss.Get(key)
		v, err := ParseDuration(raw, ok, def)
		if err != nil {
			s.parseFailed(kindDuration, key, raw, err)
		}
		return v
	})
}

// GetStrings 逗号分隔列表。def 是原始格式的默认值。
func (s *Store) GetStrings(key, def string) []string {
	return slices.Clone(getOrCompute(s, kindStrings, key, def, func(ss *Snapshot) []string {
		return ParseStrings(resolve(ss, key, def), false)
	}))
}

// GetLowerStrings 同 GetStrings，元素转为小写。
func (s *Store) GetLowerStrings(key, def string) []string {
	return slices.Clone(getOrCompute(s, kindLowerString, key, def, func(ss *Snapshot) []string {
		return ParseStrings(resolve(ss, key, def), true)
	}))
}

// GetPatterns 逗号分隔的正则列表，无效的正则被丢弃并记录日志。
func (s *Store) GetPatterns(key, def string) []*regexp.Regexp {
	return slices.Clone(getOrCompute(s, kindPatterns, key, def, func(ss *Snapshot) []*regexp.Regexp {
		raw := resolve(ss, key, def)
		patterns, errs := ParsePatterns(raw)
		for _, err := range errs {
			s.parseFailed(kindPatterns, key, raw, err)
		}
		return patterns
	}))
}

// GetPatternGroup 解析 "regex: label, ..."，格式错误的组被跳过并记录日志。
func (s *Store) GetPatternGroup(key, def string) PatternGroup {
	return slices.Clone(getOrCompute(s, kindGroup, key, def, func(ss *Snapshot) PatternGroup {
		raw := resolve(ss, key, def)
		group, errs := ParsePatternGroup(raw)
		for _, err := range errs {
			s.parseFailed(kindGroup, key, raw, err)
		}
		return group
	}))
}

func resolve(ss *Snapshot, key, def string) string {
	if v, ok := ss.Get(key); ok {
		return v
	}
	return def
}

func (s *Store) parseFailed(kind, key, raw string, err error) {
	s.metrics.parseErrorsTotal.WithLabelValues(kind).Inc()
	s.logger.Error("malformed config value",
		zap.String("key", key),
		zap.String("kind", kind),
		zap.String("value", raw),
		zap.Error(err),
	)
}
