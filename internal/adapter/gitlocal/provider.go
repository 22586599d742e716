// Package gitlocal implements gitprovider.Repository with the local git CLI.
package gitlocal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Strob0t/devorch/internal/domain/branchprotection"
	"github.com/Strob0t/devorch/internal/git"
	"github.com/Strob0t/devorch/internal/port/gitprovider"
)

const (
	providerName = "local"

	defaultCommandTimeout = 120 * time.Second
	defaultCloneTimeout   = 300 * time.Second
)

// Provider runs git commands in one working copy.
type Provider struct {
	dir           string
	exe           string
	defaultBranch string
	timeout       time.Duration
	cloneTimeout  time.Duration
	protection    *branchprotection.Set
	pool          *git.Pool
	log           *slog.Logger
}

var _ gitprovider.Repository = (*Provider)(nil)

// NewProvider creates a Provider for repoPath. Zero-valued options fall back
// to git, "main", 120s/300s timeouts and the built-in protected branches.
func NewProvider(repoPath string, opts gitprovider.Options) *Provider {
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	p := &Provider{
		dir:           repoPath,
		exe:           opts.Executable,
		defaultBranch: opts.DefaultBranch,
		timeout:       opts.CommandTimeout,
		cloneTimeout:  opts.CloneTimeout,
		protection:    opts.Protection,
		pool:          opts.Pool,
		log:           opts.Logger,
	}
	if p.exe == "" {
		p.exe = "git"
	}
	if p.defaultBranch == "" {
		p.defaultBranch = "main"
	}
	if p.timeout <= 0 {
		p.timeout = defaultCommandTimeout
	}
	if p.cloneTimeout <= 0 {
		p.cloneTimeout = defaultCloneTimeout
	}
	if p.protection == nil {
		p.protection = branchprotection.Default()
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Clone clones url into dest and returns a Provider for the new working copy.
// An existing dest is refused.
func Clone(ctx context.Context, url, dest string, opts gitprovider.Options) (*Provider, error) {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: resolve path: %w", err)
	}
	if _, err := os.Stat(absDest); err == nil {
		return nil, fmt.Errorf("gitlocal: %w: %s", gitprovider.ErrTargetExists, absDest)
	}

	p := NewProvider(absDest, opts)
	res, err := p.exec(ctx, "", p.cloneTimeout, "clone", url, absDest)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: clone: %w", err)
	}
	if !res.Success {
		return nil, fmt.Errorf("gitlocal: clone: %w", res.Err())
	}
	p.log.Info("repository cloned", "url", url, "path", absDest)
	return p, nil
}

// Name returns "local".
func (p *Provider) Name() string { return providerName }

// Path returns the working copy root.
func (p *Provider) Path() string { return p.dir }

// ValidateRepo reports whether the path exists and git recognizes it.
func (p *Provider) ValidateRepo(ctx context.Context) bool {
	info, err := os.Stat(p.dir)
	if err != nil || !info.IsDir() {
		return false
	}
	res, err := p.run(ctx, "rev-parse", "--git-dir")
	return err == nil && res.Success
}

// CurrentBranch returns the checked-out branch, or "HEAD" when detached.
func (p *Provider) CurrentBranch(ctx context.Context) (string, error) {
	out, err := p.output(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("gitlocal: current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// DefaultBranch detects the branch new work should start from.
func (p *Provider) DefaultBranch(ctx context.Context) string {
	if out, err := p.output(ctx, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		ref := strings.TrimSpace(out)
		if i := strings.LastIndex(ref, "/"); i >= 0 && i < len(ref)-1 {
			return ref[i+1:]
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if p.BranchExists(ctx, candidate) {
			return candidate
		}
	}
	return p.defaultBranch
}

// BranchExists reports whether name resolves to a commit.
func (p *Provider) BranchExists(ctx context.Context, name string) bool {
	res, err := p.run(ctx, "rev-parse", "--verify", "--quiet", name)
	return err == nil && res.Success
}

// IsProtected reports whether name matches a protection rule.
func (p *Provider) IsProtected(name string) bool {
	return p.protection.IsProtected(name)
}

// CreateBranch creates and checks out name from base.
func (p *Provider) CreateBranch(ctx context.Context, name, base string) (*gitprovider.Result, error) {
	if eval := p.protection.EvaluateCreate(name); !eval.Allowed {
		return nil, fmt.Errorf("gitlocal: %w", eval.Err())
	}
	if p.BranchExists(ctx, name) {
		return nil, fmt.Errorf("gitlocal: %w: %s", gitprovider.ErrBranchExists, name)
	}
	if base == "" {
		base = p.DefaultBranch(ctx)
	}

	res, err := p.run(ctx, "checkout", base)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: checkout %s: %w", base, err)
	}
	if !res.Success {
		return res, nil
	}

	// Best effort: a repository without a reachable upstream still gets a branch.
	if pull, err := p.run(ctx, "pull", "--ff-only"); err != nil || !pull.Success {
		p.log.DebugContext(ctx, "fast-forward skipped", "base", base, "error", errorText(err, pull))
	}

	res, err = p.run(ctx, "checkout", "-b", name)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: create branch %s: %w", name, err)
	}
	if res.Success {
		p.log.InfoContext(ctx, "branch created", "branch", name, "base", base)
	}
	return res, nil
}

// Checkout switches to an existing branch.
func (p *Provider) Checkout(ctx context.Context, name string) (*gitprovider.Result, error) {
	res, err := p.run(ctx, "checkout", name)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: checkout %s: %w", name, err)
	}
	return res, nil
}

// Status parses `git status --porcelain`.
func (p *Provider) Status(ctx context.Context) (*gitprovider.Status, error) {
	branch, err := p.CurrentBranch(ctx)
	if err != nil {
		// An unborn HEAD has no abbrev-ref; report the symbolic target instead.
		out, symErr := p.output(ctx, "symbolic-ref", "--short", "HEAD")
		if symErr != nil {
			return nil, err
		}
		branch = strings.TrimSpace(out)
	}
	out, err := p.output(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("gitlocal: status: %w", err)
	}
	st := parsePorcelain(out)
	st.Branch = branch
	return st, nil
}

// Stage adds paths to the index; an empty list stages everything.
func (p *Provider) Stage(ctx context.Context, paths []string) (*gitprovider.Result, error) {
	args := []string{"add", "-A"}
	if len(paths) > 0 {
		args = append([]string{"add", "-A", "--"}, paths...)
	}
	res, err := p.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: stage: %w", err)
	}
	return res, nil
}

// Commit records the index, or only paths when given. It refuses on a
// protected branch, always.
func (p *Provider) Commit(ctx context.Context, message string, allowEmpty bool, paths ...string) (*gitprovider.Result, error) {
	branch, err := p.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	if eval := p.protection.EvaluateCommit(branch); !eval.Allowed {
		return nil, fmt.Errorf("gitlocal: %w", eval.Err())
	}

	args := []string{"commit", "-m", message}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	if len(paths) > 0 {
		args = append(append(args, "--"), paths...)
	}
	res, err := p.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("gitlocal: commit: %w", err)
	}
	return res, nil
}

// HeadCommit returns the full hash of HEAD.
func (p *Provider) HeadCommit(ctx context.Context) (string, error) {
	out, err := p.output(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("gitlocal: head: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Diff returns the working-tree (or staged) diff, optionally for one file.
func (p *Provider) Diff(ctx context.Context, staged bool, file string) (string, error) {
	args := []string{"diff"}
	if staged {
		args = append(args, "--staged")
	}
	if file != "" {
		args = append(args, "--", file)
	}
	out, err := p.output(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("gitlocal: diff: %w", err)
	}
	return out, nil
}

// Log returns up to n commits from HEAD, newest first.
func (p *Provider) Log(ctx context.Context, n int) ([]gitprovider.Commit, error) {
	if n < 1 {
		n = 10
	}
	out, err := p.output(ctx, "log", fmt.Sprintf("-%d", n), "--format=%H|%an|%ae|%ad|%s", "--date=iso")
	if err != nil {
		return nil, fmt.Errorf("gitlocal: log: %w", err)
	}
	return parseLog(out), nil
}

// FileList returns every path tracked at HEAD.
func (p *Provider) FileList(ctx context.Context) ([]string, error) {
	out, err := p.output(ctx, "ls-tree", "-r", "--name-only", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("gitlocal: ls-tree: %w", err)
	}
	return splitLines(out), nil
}

// ReadFileAt returns the content of path at ref.
func (p *Provider) ReadFileAt(ctx context.Context, ref, path string) (string, error) {
	if ref == "" {
		ref = "HEAD"
	}
	out, err := p.output(ctx, "show", ref+":"+filepath.ToSlash(path))
	if err != nil {
		return "", fmt.Errorf("gitlocal: show %s:%s: %w", ref, path, err)
	}
	return out, nil
}

// output runs a query and turns an unsuccessful result into an error.
func (p *Provider) output(ctx context.Context, args ...string) (string, error) {
	res, err := p.run(ctx, args...)
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", res.Err()
	}
	return res.Stdout, nil
}

func (p *Provider) run(ctx context.Context, args ...string) (*gitprovider.Result, error) {
	return p.exec(ctx, p.dir, p.timeout, args...)
}

// exec runs one git command under the pool and a per-command deadline.
// A non-zero exit is reported in the Result; only deadline expiry, context
// cancellation and failure to start the process are errors.
func (p *Provider) exec(ctx context.Context, dir string, timeout time.Duration, args ...string) (*gitprovider.Result, error) {
	display := "git " + strings.Join(args, " ")

	return git.Do(ctx, p.pool, func() (*gitprovider.Result, error) {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(cctx, p.exe, args...)
		if dir != "" {
			cmd.Dir = dir
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second

		runErr := cmd.Run()

		res := &gitprovider.Result{
			Stdout:  stdout.String(),
			Stderr:  strings.TrimSpace(stderr.String()),
			Command: display,
		}

		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &gitprovider.TimeoutError{Command: display, Timeout: timeout}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if runErr != nil {
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				res.ExitCode = exitErr.ExitCode()
				return res, nil
			}
			return nil, fmt.Errorf("%s: %w", display, runErr)
		}
		res.Success = true
		return res, nil
	})
}

func errorText(err error, res *gitprovider.Result) string {
	if err != nil {
		return err.Error()
	}
	if res != nil {
		return res.Stderr
	}
	return ""
}
