package loc

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher reports whether a slash-separated relative path matches any of a
// set of glob patterns.
//
// Patterns use gobwas/glob syntax with '/' as the separator: "*" and "?"
// never cross a '/', "**" does. A "**/" segment may also match nothing, so
// "src/**/*.rs" matches "src/main.rs" as well as "src/bin/cli.rs".
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles patterns. Leading "./" is ignored. Absolute patterns
// and patterns that climb out of the root with ".." are rejected.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, raw := range patterns {
		p := strings.TrimPrefix(strings.TrimSpace(raw), "./")
		if p == "" {
			return nil, fmt.Errorf("empty pattern")
		}
		if path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
			return nil, fmt.Errorf("pattern %q must be relative to the project root", raw)
		}

		for _, variant := range expandDoubleStar(p) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
			}
			m.globs = append(m.globs, g)
		}
		m.patterns = append(m.patterns, p)
	}
	return m, nil
}

// Patterns returns the normalized patterns.
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// Match reports whether rel matches any pattern.
func (m *Matcher) Match(rel string) bool {
	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// expandDoubleStar returns p plus every variant with one or more "**/"
// segments removed. Only "**/" at the start of p or right after a '/' is a
// whole segment; "a**/" is left alone.
func expandDoubleStar(p string) []string {
	i := strings.Index(p, "**/")
	for i > 0 && p[i-1] != '/' {
		next := strings.Index(p[i+3:], "**/")
		if next < 0 {
			return []string{p}
		}
		i += 3 + next
	}
	if i < 0 {
		return []string{p}
	}

	head, tail := p[:i], p[i+3:]
	var out []string
	for _, rest := range expandDoubleStar(tail) {
		out = append(out, head+"**/"+rest, head+rest)
	}
	return out
}
