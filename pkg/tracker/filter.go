package tracker

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// URLFilter decides which pages are recorded. Only http and https URLs pass.
// Patterns are matched against "host/path", for example "*.example.com/*".
type URLFilter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewURLFilter compiles include and exclude patterns.
func NewURLFilter(include, exclude []string) (*URLFilter, error) {
	f := &URLFilter{}

	for _, pattern := range include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern '%s': %w", pattern, err)
		}
		f.include = append(f.include, g)
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		f.exclude = append(f.exclude, g)
	}

	return f, nil
}

// Allowed reports whether rawURL should be recorded.
func (f *URLFilter) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	target := strings.ToLower(u.Host) + u.EscapedPath()

	// Exclusions take precedence
	for _, pattern := range f.exclude {
		if pattern.Match(target) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, pattern := range f.include {
		if pattern.Match(target) {
			return true
		}
	}
	return false
}
