package utils

import (
	"path"
	"regexp"
	"strings"
)

// PatternMatcher filters relative slash-separated keys. Glob patterns match
// the base name. A pattern made only of path characters names a file or
// directory and matches whole trailing path segments, so "a.txt" never
// matches "data.txt". Any other pattern that compiles as a regular
// expression is tried unanchored against the whole key.
type PatternMatcher struct {
	include patternSet
	exclude patternSet
}

type patternSet struct {
	globs    []string
	literals []string
	regexes  []*regexp.Regexp
}

func (s patternSet) empty() bool {
	return len(s.globs) == 0 && len(s.literals) == 0 && len(s.regexes) == 0
}

func NewPatternMatcher(includePatterns, excludePatterns []string) *PatternMatcher {
	return &PatternMatcher{
		include: compilePatterns(includePatterns),
		exclude: compilePatterns(excludePatterns),
	}
}

func (m *PatternMatcher) ShouldInclude(key string) bool {
	if m == nil {
		return true
	}
	if !m.include.empty() && !m.include.matches(key) {
		return false
	}
	if !m.exclude.empty() && m.exclude.matches(key) {
		return false
	}
	return true
}

// ShouldSkipDir reports whether a directory key is excluded. Include patterns
// never prune directories since they select files.
func (m *PatternMatcher) ShouldSkipDir(key string) bool {
	if m == nil || key == "." || key == "" {
		return false
	}
	return m.exclude.matches(key + "/")
}

func (s patternSet) matches(key string) bool {
	base := path.Base(key)
	for _, pattern := range s.globs {
		if matched, _ := path.Match(pattern, base); matched {
			return true
		}
	}
	for _, lit := range s.literals {
		if key == lit || strings.HasSuffix(key, "/"+lit) {
			return true
		}
	}
	for _, re := range s.regexes {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) patternSet {
	set := patternSet{globs: append([]string(nil), patterns...)}
	for _, pattern := range patterns {
		if literalPattern(pattern) {
			set.literals = append(set.literals, strings.TrimPrefix(pattern, "./"))
			continue
		}
		if re, err := regexp.Compile(pattern); err == nil {
			set.regexes = append(set.regexes, re)
		}
	}
	return set
}

// literalPattern reports whether pattern uses no regex syntax apart from dots.
func literalPattern(pattern string) bool {
	undotted := strings.ReplaceAll(pattern, ".", "")
	return undotted != "" && regexp.QuoteMeta(undotted) == undotted
}
