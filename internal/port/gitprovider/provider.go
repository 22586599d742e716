// Package gitprovider defines the version-control safety layer port: the
// repository interface the orchestrator mutates through, its result and error
// types, and a registry of backends.
package gitprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/devorch/internal/domain/branchprotection"
	"github.com/Strob0t/devorch/internal/git"
)

var (
	// ErrTimeout marks a command killed by its deadline. It is distinct from a
	// non-zero exit, which surfaces as *CommandError.
	ErrTimeout = errors.New("git command timed out")

	ErrNotRepository = errors.New("not a valid repository")
	ErrBranchExists  = errors.New("branch already exists")
	ErrTargetExists  = errors.New("clone target already exists")
)

// Result is the outcome of one git invocation.
type Result struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"returncode"`
	Command  string `json:"command"`
}

// Err converts an unsuccessful result into a *CommandError.
func (r *Result) Err() error {
	if r == nil || r.Success {
		return nil
	}
	return &CommandError{Command: r.Command, ExitCode: r.ExitCode, Stderr: r.Stderr}
}

// CommandError is a git command that ran and exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Stderr)
}

// TimeoutError is a git command that exceeded its deadline.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Command, e.Timeout)
}

// Is lets errors.Is(err, ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Status is a parsed working-tree status.
type Status struct {
	Branch    string   `json:"branch"`
	Clean     bool     `json:"clean"`
	Modified  []string `json:"modified"`
	Added     []string `json:"added"`
	Deleted   []string `json:"deleted"`
	Untracked []string `json:"untracked"`
}

// Commit is one log entry.
type Commit struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Email   string `json:"email"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

// Options configures a Repository backend.
type Options struct {
	Executable     string
	DefaultBranch  string
	CommandTimeout time.Duration
	CloneTimeout   time.Duration
	Protection     *branchprotection.Set
	Pool           *git.Pool
	Logger         *slog.Logger
}

// Repository wraps every mutation of a working copy behind the safety rules:
// protected branches are never created or committed to, and each command is
// time-bounded.
type Repository interface {
	// Name returns the backend identifier (e.g. "local").
	Name() string

	// Path returns the working copy root.
	Path() string

	// ValidateRepo reports whether Path exists and is a git working copy.
	ValidateRepo(ctx context.Context) bool

	CurrentBranch(ctx context.Context) (string, error)

	// DefaultBranch detects origin/HEAD, then main/master, then the configured default.
	DefaultBranch(ctx context.Context) string

	BranchExists(ctx context.Context, name string) bool

	IsProtected(name string) bool

	// CreateBranch refuses protected or existing names, then checks out base
	// (the default branch when empty), fast-forwards it best effort and
	// branches off.
	CreateBranch(ctx context.Context, name, base string) (*Result, error)

	Checkout(ctx context.Context, name string) (*Result, error)

	Status(ctx context.Context) (*Status, error)

	// Stage adds the given paths, or everything when paths is empty.
	Stage(ctx context.Context, paths []string) (*Result, error)

	// Commit refuses whenever the current branch is protected. With paths,
	// only those paths are committed and the rest of the index is left alone.
	Commit(ctx context.Context, message string, allowEmpty bool, paths ...string) (*Result, error)

	HeadCommit(ctx context.Context) (string, error)

	Diff(ctx context.Context, staged bool, file string) (string, error)

	Log(ctx context.Context, n int) ([]Commit, error)

	FileList(ctx context.Context) ([]string, error)

	ReadFileAt(ctx context.Context, ref, path string) (string, error)
}
