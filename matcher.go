package bttconf

// Match 返回第一个匹配 s 的规则的标签。
// 规则按照 Slice 顺序匹配，一旦匹配成功立即返回（列表顺序即优先级）。
func (g PatternGroup) Match(s string) (string, bool) {
	if rule := g.MatchRule(s); rule != nil {
		return rule.Label, true
	}
	return "", false
}

// MatchRule 同 Match，返回命中的规则本身。
func (g PatternGroup) MatchRule(s string) *PatternRule {
	for i := range g {
		rule := &g[i]
		if rule.Pattern != nil && rule.Pattern.MatchString(s) {
			return rule
		}
	}
	return nil
}

// Replace 用第一个匹配规则的标签替换 s 中所有匹配部分 (标签按字面处理)。
func (g PatternGroup) Replace(s string) (string, bool) {
	rule := g.MatchRule(s)
	if rule == nil {
		return s, false
	}
	return rule.Pattern.ReplaceAllLiteralString(s, rule.Label), true
}

// Labels 按顺序返回所有标签。
func (g PatternGroup) Labels() []string {
	labels := make([]string, 0, len(g))
	for _, r := range g {
		labels = append(labels, r.Label)
	}
	return labels
}

// String 还原为 "regex: label, ..." 格式。
func (g PatternGroup) String() string {
	var out []byte
	for i, r := range g {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = append(out, r.Pattern.String()...)
		out = append(out, ": "...)
		out = append(out, r.Label...)
	}
	return string(out)
}
