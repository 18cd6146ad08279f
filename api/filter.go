package api

import (
	"fmt"

	"github.com/gobwas/glob"
)

// VariableFilter restricts which workspace variables the API exposes.
// An empty filter allows every name.
type VariableFilter struct {
	patterns []glob.Glob
}

// NewVariableFilter compiles glob patterns such as "out_*" or "result?".
func NewVariableFilter(patterns []string) (*VariableFilter, error) {
	f := &VariableFilter{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid variable pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

func (f *VariableFilter) Allowed(name string) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
