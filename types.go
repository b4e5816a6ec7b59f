package bttconf

import "regexp"

// HistoryRecord 发布历史记录
type HistoryRecord struct {
	Hash      string `json:"hash"`
	Keys      int    `json:"keys"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot 代表某一时刻从数据源加载的完整原始配置。
// 发布后只读，重新加载会生成新的 Snapshot 整体替换旧的。
type Snapshot struct {
	Generation uint64            // 代数，每次加载递增
	Hash       string            // 内容 Hash (与 Publisher 计算方式一致)
	Source     string            // 数据源名称
	Values     map[string]string // Key -> 原始字符串
}

// Get 获取原始值。
func (s *Snapshot) Get(key string) (string, bool) {
	val, ok := s.Values[key]
	return val, ok
}

// Len 返回配置项数量。
func (s *Snapshot) Len() int {
	return len(s.Values)
}

// PatternRule 是 PatternGroup 中的一条 (正则, 标签)。
type PatternRule struct {
	Pattern *regexp.Regexp
	Label   string
}

// PatternGroup 有序的规则列表，顺序即优先级。
type PatternGroup []PatternRule
