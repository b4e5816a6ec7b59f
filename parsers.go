package bttconf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSeparator = errors.New("missing ':' between regex and label")
	ErrEmptyPattern     = errors.New("empty regex")
	ErrDurationRange    = errors.New("duration out of range")
)

// 按秒表示时不溢出 time.Duration 的范围
const (
	maxDurationSeconds = math.MaxInt64 / int64(time.Second)
	minDurationSeconds = math.MinInt64 / int64(time.Second)
)

// 以下解析函数都是纯函数，不记录日志；错误交给 Store 记录。

// ParseBool 大小写不敏感地与 "true" 比较，其它任何值均为 false。
// 仅当 Key 不存在时使用默认值。
func ParseBool(raw string, present bool, def bool) bool {
	if !present {
		return def
	}
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}

// ParseInt64 按十进制解析，失败时返回默认值和错误。
func ParseInt64(raw string, present bool, def int64) (int64, error) {
	if !present {
		return def, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return def, err
	}
	return v, nil
}

// ParseDuration 纯整数按秒处理，否则使用 time.ParseDuration 格式 (如 "1m30s")。
// 秒数超出 time.Duration 范围时返回默认值和 ErrDurationRange。
func ParseDuration(raw string, present bool, def time.Duration) (time.Duration, error) {
	if !present {
		return def, nil
	}
	s := strings.TrimSpace(raw)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > maxDurationSeconds || secs < minDurationSeconds {
			return def, fmt.Errorf("%w: %d seconds", ErrDurationRange, secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, err
	}
	return d, nil
}

// ParseStrings 按逗号切分并去除首尾空白，空元素被丢弃。
// 空输入返回空列表 (非 nil)。
func ParseStrings(raw string, lower bool) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if lower {
			p = strings.ToLower(p)
		}
		out = append(out, p)
	}
	return out
}

// ParsePatterns 编译列表中的每个正则。
// 无效的正则被丢弃，对应错误通过 errs 返回，不影响其它元素。
func ParsePatterns(raw string) (patterns []*regexp.Regexp, errs []error) {
	strs := ParseStrings(raw, false)
	patterns = make([]*regexp.Regexp, 0, len(strs))
	for _, s := range strs {
		re, err := regexp.Compile(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("compile pattern %q: %w", s, err))
			continue
		}
		patterns = append(patterns, re)
	}
	return patterns, errs
}

// ParsePatternGroup 解析 "regex1: label1, regex2: label2" 格式。
// 每组在第一个冒号处切分。格式错误或正则无效的组被单独跳过，
// 其它组照常返回，顺序与输入一致。
func ParsePatternGroup(raw string) (group PatternGroup, errs []error) {
	parts := strings.Split(raw, ",")
	group = make(PatternGroup, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		expr, label, ok := strings.Cut(part, ":")
		if !ok {
			errs = append(errs, fmt.Errorf("group %q: %w", part, ErrMissingSeparator))
			continue
		}
		expr = strings.TrimSpace(expr)
		label = strings.TrimSpace(label)
		if expr == "" {
			errs = append(errs, fmt.Errorf("group %q: %w", part, ErrEmptyPattern))
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %q: %w", part, err))
			continue
		}
		group = append(group, PatternRule{Pattern: re, Label: label})
	}
	return group, errs
}
