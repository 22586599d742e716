package gitlocal

import (
	"strconv"
	"strings"

	"github.com/Strob0t/devorch/internal/port/gitprovider"
)

// parsePorcelain classifies `git status --porcelain` (v1) lines.
func parsePorcelain(out string) *gitprovider.Status {
	st := &gitprovider.Status{
		Modified:  []string{},
		Added:     []string{},
		Deleted:   []string{},
		Untracked: []string{},
	}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		x, y := line[0], line[1]
		path := line[3:]
		// Renames and copies list "old -> new"; the new path is what exists now.
		if i := strings.Index(path, " -> "); i >= 0 && (x == 'R' || x == 'C') {
			path = path[i+4:]
		}
		path = unquote(path)

		switch {
		case x == '?' && y == '?':
			st.Untracked = append(st.Untracked, path)
		case x == 'A':
			st.Added = append(st.Added, path)
		case x == 'D' || y == 'D':
			st.Deleted = append(st.Deleted, path)
		case x == '!':
			// ignored files only appear with --ignored
		default:
			st.Modified = append(st.Modified, path)
		}
	}
	st.Clean = len(st.Modified)+len(st.Added)+len(st.Deleted)+len(st.Untracked) == 0
	return st
}

// parseLog parses lines formatted as %H|%an|%ae|%ad|%s.
func parseLog(out string) []gitprovider.Commit {
	var commits []gitprovider.Commit
	for _, line := range splitLines(out) {
		parts := strings.SplitN(line, "|", 5)
		if len(parts) < 5 {
			continue
		}
		commits = append(commits, gitprovider.Commit{
			Hash:    parts[0],
			Author:  parts[1],
			Email:   parts[2],
			Date:    parts[3],
			Message: parts[4],
		})
	}
	return commits
}

func splitLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// unquote undoes git's C-style quoting of paths with special characters.
func unquote(path string) string {
	if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
		if s, err := strconv.Unquote(path); err == nil {
			return s
		}
	}
	return path
}
