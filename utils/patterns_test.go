package utils

import "testing"

func TestPatternMatcher(t *testing.T) {
	m := NewPatternMatcher([]string{"*.txt"}, []string{"secret.txt", "^tmp/"})
	if !m.ShouldInclude("docs/a.txt") {
		t.Fatal("expected include")
	}
	if m.ShouldInclude("docs/a.log") {
		t.Fatal("expected include filter to reject .log")
	}
	if m.ShouldInclude("docs/secret.txt") {
		t.Fatal("expected exclude by glob")
	}
	if m.ShouldInclude("tmp/a.txt") {
		t.Fatal("expected exclude by regex")
	}
}

func TestPatternMatcherNil(t *testing.T) {
	var m *PatternMatcher
	if !m.ShouldInclude("anything") || m.ShouldSkipDir("dir") {
		t.Fatal("nil matcher must accept everything")
	}
}

func TestShouldSkipDir(t *testing.T) {
	m := NewPatternMatcher([]string{"*.go"}, []string{"node_modules", `(^|/)\.git/$`})
	if !m.ShouldSkipDir("web/node_modules") {
		t.Fatal("expected glob dir exclusion")
	}
	if !m.ShouldSkipDir(".git") || !m.ShouldSkipDir("sub/.git") {
		t.Fatal("expected regex dir exclusion")
	}
	if m.ShouldSkipDir("src") || m.ShouldSkipDir(".") {
		t.Fatal("include patterns must not prune directories")
	}
}

func TestLiteralPatternsMatchWholeSegments(t *testing.T) {
	m := NewPatternMatcher(nil, []string{"a.txt", "vendor/", "docs/old.md"})
	if m.ShouldInclude("a.txt") || m.ShouldInclude("sub/a.txt") {
		t.Fatal("expected exact file name to be excluded")
	}
	if !m.ShouldInclude("data.txt") || !m.ShouldInclude("a.txt.bak") || !m.ShouldInclude("abtxt") {
		t.Fatal("literal pattern must not match as a substring or regex")
	}
	if !m.ShouldSkipDir("vendor") || !m.ShouldSkipDir("third_party/vendor") {
		t.Fatal("expected vendor directories to be pruned")
	}
	if m.ShouldSkipDir("myvendor") {
		t.Fatal("literal directory pattern must not match a longer name")
	}
	if m.ShouldInclude("docs/old.md") || m.ShouldInclude("site/docs/old.md") || !m.ShouldInclude("docs/bold.md") {
		t.Fatal("unexpected literal path matching")
	}
}

func TestRegexPatternsStayUnanchored(t *testing.T) {
	m := NewPatternMatcher(nil, []string{`\.tmp$`})
	if m.ShouldInclude("build/out.tmp") {
		t.Fatal("expected suffix regex to exclude")
	}
	if !m.ShouldInclude("build/out.tmpl") {
		t.Fatal("anchored regex should not match")
	}
}
