package bttconf

// prefix 目前使用的 Redis Key 前缀
var prefix = "btt-conf:"

// SetPrefix 设置全局 Redis Key 前缀。
// 这应该在任何其他操作之前调用。
func SetPrefix(p string) {
	prefix = p
	if len(prefix) > 0 && prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
}

// Suffix defs
const (
	SuffixProperties = "properties" // 配置项 Hash
	SuffixCurrent    = "current"    // 当前内容 Hash
	SuffixHistory    = "history"    // 发布历史
	SuffixUpdates    = "updates"    // 更新通知
)

// Redis Key Helper

// KeyProperties 返回配置项存储的 Redis Key。
// 该 Hash 存储 ConfigKey -> 原始字符串。
func KeyProperties() string {
	return prefix + SuffixProperties
}

// KeyCurrent 返回当前内容 Hash 的 Redis Key (String)。
func KeyCurrent() string {
	return prefix + SuffixCurrent
}

// KeyHistory 返回发布历史记录的 Redis Key。
// 该 List 存储 HistoryRecord JSON 字符串 (RPush)。
func KeyHistory() string {
	return prefix + SuffixHistory
}

// KeyUpdates 返回更新通知的 Redis Stream Key。
func KeyUpdates() string {
	return prefix + SuffixUpdates
}

// Stream 事件类型
const (
	EventPublish = "publish"
	EventReload  = "reload"
)

// UpdateMessage Redis Stream 消息载荷
type UpdateMessage struct {
	Event     string `json:"event"`     // 事件类型
	Hash      string `json:"hash"`      // 内容 Hash
	Timestamp int64  `json:"timestamp"` // 时间戳
}
