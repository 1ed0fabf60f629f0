package discovery

import (
	"path/filepath"
	"strings"

	"pmlunit/internal/domain"
)

// Filter filters tests by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterTests keeps the tests whose test name or "<TestCase>.<test>" name
// matches the pattern. Supports patterns like "Account*", "*.testLogin*" or
// plain substrings.
func (f *Filter) FilterTests(tests []*domain.Test, pattern string) []*domain.Test {
	if pattern == "" {
		return tests
	}

	var filtered []*domain.Test
	for _, test := range tests {
		if Match(pattern, test.Name()) || Match(pattern, test.FullName()) {
			filtered = append(filtered, test)
		}
	}
	return filtered
}

// FilterFiles filters file paths by base name pattern.
func (f *Filter) FilterFiles(files []string, pattern string) []string {
	if pattern == "" {
		return files
	}

	var filtered []string
	for _, file := range files {
		if Match(pattern, filepath.Base(file)) {
			filtered = append(filtered, file)
		}
	}
	return filtered
}

// Match reports whether name matches a wildcard pattern (* and ?). Without
// wildcards the pattern matches as a case-sensitive substring.
func Match(pattern, name string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return strings.Contains(name, pattern)
	}
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}
