// Package proposal defines the structured output of a role: a set of proposed
// file changes plus rationale, issues and recommendations.
package proposal

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Action is the operation a FileChange performs.
type Action string

const (
	ActionCreate  Action = "create"
	ActionModify  Action = "modify"
	ActionDelete  Action = "delete"
	ActionPrepend Action = "prepend"
)

var validActions = map[Action]bool{
	ActionCreate:  true,
	ActionModify:  true,
	ActionDelete:  true,
	ActionPrepend: true,
}

var (
	ErrPathRequired  = errors.New("file change path is required")
	ErrPathAbsolute  = errors.New("file change path must be relative to the repository root")
	ErrPathEscapes   = errors.New("file change path escapes the repository root")
	ErrPathMetadata  = errors.New("file change path targets git metadata")
	ErrInvalidAction = errors.New("invalid file change action")
)

// FileChange is one proposed operation on a repository-relative path.
type FileChange struct {
	Path        string `json:"path"`
	Action      Action `json:"action"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
}

// Validate checks the path shape and action.
func (c FileChange) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrPathRequired
	}
	if filepath.IsAbs(c.Path) || strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("%w: %s", ErrPathAbsolute, c.Path)
	}
	clean := path.Clean(filepath.ToSlash(c.Path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %s", ErrPathEscapes, c.Path)
	}
	if InGitDir(clean) {
		return fmt.Errorf("%w: %s", ErrPathMetadata, c.Path)
	}
	if !validActions[c.Action] {
		return fmt.Errorf("%w %q for %s", ErrInvalidAction, c.Action, c.Path)
	}
	return nil
}

// InGitDir reports whether any segment of the slash-separated path is a
// .git directory, in any letter case.
func InGitDir(p string) bool {
	for seg := range strings.SplitSeq(p, "/") {
		if strings.EqualFold(seg, ".git") {
			return true
		}
	}
	return false
}

// Proposal is what a role returns for one task. Treat it as immutable once built.
type Proposal struct {
	Role            string         `json:"role"`
	TaskID          string         `json:"task_id,omitempty"`
	Success         bool           `json:"success"`
	Summary         string         `json:"summary"`
	Reasoning       string         `json:"reasoning,omitempty"`
	FileChanges     []FileChange   `json:"file_changes"`
	Recommendations []string       `json:"recommendations"`
	Issues          []string       `json:"issues"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	Errors          []string       `json:"errors,omitempty"`
}

// Failure builds the canned proposal substituted when a role cannot produce one.
func Failure(role, taskID string, err error) Proposal {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Proposal{
		Role:            role,
		TaskID:          taskID,
		Success:         false,
		Summary:         fmt.Sprintf("%s failed: %s", role, msg),
		FileChanges:     []FileChange{},
		Recommendations: []string{},
		Issues:          []string{msg},
		CreatedAt:       time.Now(),
		Errors:          []string{msg},
	}
}

// Unsupported builds the proposal a role returns for a task type it does not own.
func Unsupported(role, taskID, taskType string) Proposal {
	msg := "Unsupported task type: " + taskType
	return Proposal{
		Role:            role,
		TaskID:          taskID,
		Success:         false,
		Summary:         msg,
		FileChanges:     []FileChange{},
		Recommendations: []string{},
		Issues:          []string{msg},
		CreatedAt:       time.Now(),
		Errors:          []string{msg},
	}
}

// Normalize fills nil collections so persisted JSON has a stable shape.
func (p *Proposal) Normalize() {
	if p.FileChanges == nil {
		p.FileChanges = []FileChange{}
	}
	if p.Recommendations == nil {
		p.Recommendations = []string{}
	}
	if p.Issues == nil {
		p.Issues = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
}

// Flatten concatenates the file changes of proposals in order.
func Flatten(proposals []Proposal) []FileChange {
	var out []FileChange
	for i := range proposals {
		out = append(out, proposals[i].FileChanges...)
	}
	return out
}

// Dedupe keeps one change per path: the last one seen wins. The result keeps
// the position of each path's first appearance.
func Dedupe(changes []FileChange) []FileChange {
	idx := make(map[string]int, len(changes))
	out := make([]FileChange, 0, len(changes))
	for _, c := range changes {
		key := path.Clean(filepath.ToSlash(c.Path))
		if i, ok := idx[key]; ok {
			out[i] = c
			continue
		}
		idx[key] = len(out)
		out = append(out, c)
	}
	return out
}
