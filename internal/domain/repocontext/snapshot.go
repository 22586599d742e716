// Package repocontext defines the read-only repository snapshot shared by roles.
package repocontext

import "sort"

// DefaultMaxFileBytes caps the size of an important file included by content.
const DefaultMaxFileBytes = 5000

// ImportantFiles are read in full (size permitting) when present, in this order.
var ImportantFiles = []string{
	"README.md",
	"go.mod",
	"pyproject.toml",
	"package.json",
	"setup.py",
	"requirements.txt",
	"src/__init__.py",
	"src/main.py",
	"app.py",
	"main.py",
}

// StatusSummary is the working-tree state at snapshot time.
type StatusSummary struct {
	Clean     bool     `json:"clean"`
	Modified  []string `json:"modified"`
	Added     []string `json:"added"`
	Deleted   []string `json:"deleted"`
	Untracked []string `json:"untracked"`
}

// Snapshot is what roles see of the repository.
type Snapshot struct {
	Root      string            `json:"root"`
	Branch    string            `json:"branch"`
	Files     []string          `json:"files"`
	Important map[string]string `json:"important_files"`
	Status    StatusSummary     `json:"status"`
}

// ExtensionCounts tallies tracked files by extension; files without one count as "(none)".
func (s *Snapshot) ExtensionCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range s.Files {
		counts[extOf(f)]++
	}
	return counts
}

// ImportantPaths returns the keys of Important in a stable order.
func (s *Snapshot) ImportantPaths() []string {
	paths := make([]string, 0, len(s.Important))
	for p := range s.Important {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// HasFile reports whether path is tracked.
func (s *Snapshot) HasFile(path string) bool {
	for _, f := range s.Files {
		if f == path {
			return true
		}
	}
	return false
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			if i == 0 || path[i-1] == '/' {
				break // dotfile
			}
			return path[i:]
		}
	}
	return "(none)"
}
