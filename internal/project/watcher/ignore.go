package watcher

import (
	"path/filepath"
	"strings"
	"sync"
)

// IgnorePatterns matches paths against glob patterns. A pattern without a
// separator matches the base name; a pattern with one matches the whole
// path. A leading '!' re-includes paths matched by earlier patterns.
type IgnorePatterns struct {
	mu       sync.RWMutex
	patterns []ignorePattern
}

type ignorePattern struct {
	original string
	pattern  string
	negation bool
	fullPath bool
}

// NewIgnorePatterns creates a matcher with the given patterns.
func NewIgnorePatterns(patterns ...string) *IgnorePatterns {
	ip := &IgnorePatterns{}
	for _, p := range patterns {
		ip.AddPattern(p)
	}
	return ip
}

// AddPattern adds a pattern. Empty patterns and comments are skipped.
func (ip *IgnorePatterns) AddPattern(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	p := ignorePattern{original: pattern}
	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	p.fullPath = strings.Contains(pattern, "/")
	p.pattern = pattern

	ip.mu.Lock()
	ip.patterns = append(ip.patterns, p)
	ip.mu.Unlock()
}

// Match returns true if path should be ignored. Later patterns override
// earlier ones.
func (ip *IgnorePatterns) Match(path string) bool {
	ip.mu.RLock()
	defer ip.mu.RUnlock()

	path = filepath.ToSlash(path)
	base := path[strings.LastIndex(path, "/")+1:]

	ignored := false
	for _, p := range ip.patterns {
		subject := base
		if p.fullPath {
			subject = path
		}
		if ok, _ := filepath.Match(p.pattern, subject); ok {
			ignored = !p.negation
		}
	}
	return ignored
}

// Patterns returns a copy of all patterns.
func (ip *IgnorePatterns) Patterns() []string {
	ip.mu.RLock()
	defer ip.mu.RUnlock()

	patterns := make([]string, len(ip.patterns))
	for i, p := range ip.patterns {
		patterns[i] = p.original
	}
	return patterns
}

// DefaultIgnorePatterns match the temporary files editors create while
// saving a configuration file.
var DefaultIgnorePatterns = []string{
	// Safe-write copies of IntelliJ-based IDEs
	"*___jb_tmp___",
	"*___jb_old___",

	// Editors
	"*.swp",
	"*.swo",
	"*~",
	".#*",

	"*.tmp",
}
