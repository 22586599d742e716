package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/port/gitprovider"
)

const maxCommitGoal = 50

// ErrOutsideRoot is returned for a change whose target resolves outside the
// working copy.
var ErrOutsideRoot = errors.New("path resolves outside the repository root")

// ApplyResult lists the repository-relative paths written and the per-file
// errors. A partial application is a valid result.
type ApplyResult struct {
	Applied []string `json:"applied"`
	Errors  []string `json:"errors"`
}

// CommitResult is the outcome of CommitChanges.
type CommitResult struct {
	Committed bool                `json:"committed"`
	Hash      string              `json:"hash,omitempty"`
	Result    *gitprovider.Result `json:"result,omitempty"`
}

// ApplierService writes aggregated change sets to a working copy and commits them.
type ApplierService struct {
	log *slog.Logger
}

// NewApplierService creates an applier.
func NewApplierService(log *slog.Logger) *ApplierService {
	if log == nil {
		log = slog.Default()
	}
	return &ApplierService{log: log}
}

// Apply dedupes changes (last writer wins) and applies each one under
// repoRoot. A failing change is recorded and the rest still apply.
func (s *ApplierService) Apply(ctx context.Context, repoRoot string, changes []proposal.FileChange) ApplyResult {
	res := ApplyResult{Applied: []string{}, Errors: []string{}}
	root, err := filepath.Abs(repoRoot)
	if err == nil {
		root, err = filepath.EvalSymlinks(root)
	}
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("resolve repository root: %v", err))
		return res
	}

	for _, c := range proposal.Dedupe(changes) {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err.Error())
			return res
		}
		written, err := applyOne(root, c)
		if err != nil {
			s.log.WarnContext(ctx, "change not applied", "path", c.Path, "action", c.Action, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", c.Path, err))
			continue
		}
		if written {
			res.Applied = append(res.Applied, filepath.ToSlash(filepath.Clean(c.Path)))
		}
	}
	s.log.InfoContext(ctx, "changes applied", "applied", len(res.Applied), "errors", len(res.Errors))
	return res
}

// applyOne performs c and reports whether the working copy changed.
func applyOne(root string, c proposal.FileChange) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	target, err := resolveInside(root, c.Path)
	if err != nil {
		return false, err
	}

	switch c.Action {
	case proposal.ActionCreate, proposal.ActionModify:
		return true, writeFile(target, []byte(c.Content))

	case proposal.ActionDelete:
		err := os.Remove(target)
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return err == nil, err

	case proposal.ActionPrepend:
		existing, err := os.ReadFile(target)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return true, writeFile(target, []byte(c.Content))
		case err != nil:
			return false, err
		}
		return true, writeFile(target, append([]byte(c.Content+"\n"), existing...))
	}
	return false, fmt.Errorf("%w %q", proposal.ErrInvalidAction, c.Action)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// resolveInside joins rel to root and rejects results that leave root,
// following any symlinks in the existing part of the path.
func resolveInside(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}

	// Find the deepest existing ancestor and resolve it.
	existing := target
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	if !within(root, resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	if r, err := filepath.Rel(root, resolved); err == nil && proposal.InGitDir(filepath.ToSlash(r)) {
		return "", fmt.Errorf("%w: %s", proposal.ErrPathMetadata, rel)
	}
	return target, nil
}

func within(root, path string) bool {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// CommitChanges stages paths and commits exactly those paths on the current
// branch; anything else already in the index stays staged. With no paths git
// is never invoked.
func (s *ApplierService) CommitChanges(ctx context.Context, repo gitprovider.Repository, paths []string, message string) (*CommitResult, error) {
	if len(paths) == 0 {
		s.log.InfoContext(ctx, "no changes to commit")
		return &CommitResult{}, nil
	}

	res, err := repo.Stage(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}
	if err := res.Err(); err != nil {
		return &CommitResult{Result: res}, fmt.Errorf("stage: %w", err)
	}

	res, err = repo.Commit(ctx, message, false, paths...)
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if err := res.Err(); err != nil {
		return &CommitResult{Result: res}, fmt.Errorf("commit: %w", err)
	}

	hash, err := repo.HeadCommit(ctx)
	if err != nil {
		return &CommitResult{Committed: true, Result: res}, fmt.Errorf("read commit hash: %w", err)
	}
	s.log.InfoContext(ctx, "changes committed", "hash", hash, "files", len(paths))
	return &CommitResult{Committed: true, Hash: hash, Result: res}, nil
}

// CommitMessage formats "<prefix> <goal>" with the goal cut to 50 characters.
func CommitMessage(prefix, goal string) string {
	if utf8.RuneCountInString(goal) > maxCommitGoal {
		goal = string([]rune(goal)[:maxCommitGoal])
	}
	if prefix == "" {
		return goal
	}
	return prefix + " " + goal
}
