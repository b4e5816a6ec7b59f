package bttconf

import "sync"

// 访问器类型，作为缓存 Key 的一部分，防止不同类型的值互相覆盖。
const (
	kindString      = "string"
	kindBool        = "bool"
	kindInt64       = "int64"
	kindDuration    = "duration"
	kindStrings     = "strings"
	kindLowerString = "lower_strings"
	kindPatterns    = "patterns"
	kindGroup       = "pattern_group"
)

// generation 把快照和由它计算出的缓存绑定在一起。
// 重新加载时整体替换，缓存失效与新快照可见是同一次原子操作。
type generation struct {
	snapshot *Snapshot
	// Key: cacheKey, Value: 解析后的类型化值
	cache sync.Map
}

type cacheKey struct {
	kind string
	key  string
	def  string // 默认值的原始形式，不同默认值分开缓存
}

// getOrCompute 返回当前代缓存中的值，未命中时基于同一代快照计算并写入。
// 并发计算同一个 Key 时以先写入的结果为准。
func getOrCompute[T any](s *Store, kind, key, def string, compute func(ss *Snapshot) T) T {
	gen := s.current.Load()
	ck := cacheKey{kind: kind, key: key, def: def}

	if cached, ok := gen.cache.Load(ck); ok {
		if val, ok := cached.(T); ok {
			s.metrics.cacheHitsTotal.Inc()
			return val
		}
	}
	s.metrics.cacheMissesTotal.Inc()

	val := compute(gen.snapshot)
	actual, _ := gen.cache.LoadOrStore(ck, val)
	if typed, ok := actual.(T); ok {
		return typed
	}
	return val
}
