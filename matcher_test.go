package bttconf

import (
	"regexp"
	"testing"
)

func mustGroup(pairs ...string) PatternGroup {
	g := make(PatternGroup, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		g = append(g, PatternRule{Pattern: regexp.MustCompile(pairs[i]), Label: pairs[i+1]})
	}
	return g
}

func TestMatch(t *testing.T) {
	g := mustGroup(`^/users/\d+$`, "user", `^/static/`, "static")

	// 精确匹配
	label, ok := g.Match("/users/42")
	if !ok || label != "user" {
		t.Errorf("Expected user, got %q (%v)", label, ok)
	}

	label, ok = g.Match("/static/app.js")
	if !ok || label != "static" {
		t.Errorf("Expected static, got %q (%v)", label, ok)
	}

	// 未匹配
	if _, ok := g.Match("/orders"); ok {
		t.Errorf("Expected no match")
	}
}

func TestMatch_Priority(t *testing.T) {
	g := mustGroup(`/\d+`, "numeric", `.*`, "catch-all")

	// 第一个匹配的规则生效
	label, _ := g.Match("/users/1")
	if label != "numeric" {
		t.Errorf("Expected numeric, got %q", label)
	}

	// 顺序决定优先级
	swapped := mustGroup(`.*`, "catch-all", `/\d+`, "numeric")
	label, _ = swapped.Match("/users/1")
	if label != "catch-all" {
		t.Errorf("Expected catch-all due to order, got %q", label)
	}
}

func TestReplace(t *testing.T) {
	g := mustGroup(`/\d+`, "/{id}", `(.*)\.js`, "*.js")

	got, ok := g.Replace("/users/123/orders/45")
	if !ok || got != "/users/{id}/orders/{id}" {
		t.Errorf("Expected /users/{id}/orders/{id}, got %q", got)
	}

	got, ok = g.Replace("/static/app.js")
	if !ok || got != "*.js" {
		t.Errorf("Expected *.js, got %q", got)
	}

	got, ok = g.Replace("/about")
	if ok || got != "/about" {
		t.Errorf("Expected unchanged path, got %q", got)
	}
}

func TestPatternGroup_String(t *testing.T) {
	g := mustGroup(`/\d+`, "/{id}", `(.*)\.js`, "*.js")
	if g.String() != `/\d+: /{id}, (.*)\.js: *.js` {
		t.Errorf("Unexpected string form: %s", g.String())
	}

	parsed, errs := ParsePatternGroup(g.String())
	if len(errs) != 0 || len(parsed) != 2 {
		t.Fatalf("Round trip failed: %v %v", parsed, errs)
	}
}
