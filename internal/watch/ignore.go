package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// matcher decides which paths never reach the handler.
type matcher struct {
	prefixes []string
	globs    []glob.Glob
}

func newMatcher(prefixes, patterns []string) (*matcher, error) {
	m := &matcher{}

	for _, p := range prefixes {
		if p == "" {
			continue
		}

		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving ignored path %q: %w", p, err)
		}

		m.prefixes = append(m.prefixes, abs)
	}

	for _, p := range patterns {
		g, err := glob.Compile(filepath.ToSlash(p), '/')
		if err != nil {
			return nil, fmt.Errorf("compiling ignore pattern %q: %w", p, err)
		}

		m.globs = append(m.globs, g)
	}

	return m, nil
}

// ignored reports whether path is under an ignored prefix or matches an
// ignore glob. Globs match against the slash-separated path relative to root.
func (m *matcher) ignored(root, path string) bool {
	for _, p := range m.prefixes {
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}

	if len(m.globs) == 0 {
		return false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	rel = filepath.ToSlash(rel)

	for _, g := range m.globs {
		if g.Match(rel) {
			return true
		}
	}

	return false
}
