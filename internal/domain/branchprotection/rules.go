// Package branchprotection decides which branches the orchestrator may never
// create or commit to.
package branchprotection

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrProtectedBranch is returned for any mutation targeting a protected branch.
var ErrProtectedBranch = errors.New("protected branch")

// DefaultPatterns are always protected, whatever the configuration adds.
var DefaultPatterns = []string{"main", "master", "develop", "production"}

// Rule protects branches matching a glob pattern.
type Rule struct {
	Pattern string `json:"pattern"`
	Builtin bool   `json:"builtin"`
}

// Set is an immutable collection of protection rules.
type Set struct {
	rules []Rule
}

// NewSet returns the default rules plus the given extra glob patterns.
// Blank and duplicate patterns are ignored; malformed globs are rejected.
func NewSet(extra ...string) (*Set, error) {
	s := &Set{}
	seen := make(map[string]bool)
	for _, p := range DefaultPatterns {
		s.rules = append(s.rules, Rule{Pattern: p, Builtin: true})
		seen[p] = true
	}
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("protection pattern %q: %w", p, err)
		}
		s.rules = append(s.rules, Rule{Pattern: p})
		seen[p] = true
	}
	return s, nil
}

// Default returns the set with only the built-in patterns.
func Default() *Set {
	s, _ := NewSet()
	return s
}

// Rules returns a copy of the rules in evaluation order.
func (s *Set) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Match returns the first rule whose pattern matches branch.
func (s *Set) Match(branch string) (Rule, bool) {
	for _, r := range s.rules {
		if matchBranch(r.Pattern, branch) {
			return r, true
		}
	}
	return Rule{}, false
}

// IsProtected reports whether branch matches any rule.
func (s *Set) IsProtected(branch string) bool {
	_, ok := s.Match(branch)
	return ok
}

// matchBranch checks if a branch name matches a glob pattern.
func matchBranch(pattern, branch string) bool {
	matched, _ := filepath.Match(pattern, branch)
	return matched
}
