package executor

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// TypeFilter matches type names against glob patterns. A nil filter, or one
// built from no patterns or from "all", matches everything.
type TypeFilter struct {
	patterns []glob.Glob
}

func NewTypeFilter(patterns []string) (*TypeFilter, error) {
	f := &TypeFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.EqualFold(p, "all") {
			return nil, nil
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("type filter %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	if len(f.patterns) == 0 {
		return nil, nil
	}
	return f, nil
}

func (f *TypeFilter) Match(name string) bool {
	if f == nil {
		return true
	}
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
