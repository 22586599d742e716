// Package gogit implements the repository context provider in-process with
// go-git. File contents are cached by blob hash.
package gogit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Strob0t/devorch/internal/domain/repocontext"
	"github.com/Strob0t/devorch/internal/port/cache"
	"github.com/Strob0t/devorch/internal/port/contextprovider"
)

// Options configures a Provider.
type Options struct {
	// MaxFileBytes excludes important files of this size or larger.
	MaxFileBytes int64
	Logger       *slog.Logger
}

// Provider builds snapshots with go-git.
type Provider struct {
	cache    cache.Cache
	maxBytes int64
	log      *slog.Logger
}

var _ contextprovider.Provider = (*Provider)(nil)

// New creates a Provider. c may be nil to disable caching.
func New(c cache.Cache, opts Options) *Provider {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = repocontext.DefaultMaxFileBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Provider{cache: c, maxBytes: opts.MaxFileBytes, log: opts.Logger}
}

// Snapshot implements contextprovider.Provider.
func (p *Provider) Snapshot(ctx context.Context, repoPath string) (*repocontext.Snapshot, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", contextprovider.ErrNotRepository, repoPath)
	}

	snap := &repocontext.Snapshot{
		Root:      repoPath,
		Files:     []string{},
		Important: map[string]string{},
	}

	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Unborn HEAD: the symbolic ref still names the branch.
		if ref, refErr := repo.Reference(plumbing.HEAD, false); refErr == nil {
			snap.Branch = ref.Target().Short()
		}
	case err != nil:
		return nil, fmt.Errorf("read HEAD: %w", err)
	default:
		if head.Name().IsBranch() {
			snap.Branch = head.Name().Short()
		} else {
			snap.Branch = "HEAD"
		}
		if err := p.readTree(ctx, repo, head.Hash(), snap); err != nil {
			return nil, err
		}
	}

	status, err := worktreeStatus(repo)
	if err != nil {
		return nil, err
	}
	snap.Status = status
	return snap, nil
}

func (p *Provider) readTree(ctx context.Context, repo *git.Repository, hash plumbing.Hash, snap *repocontext.Snapshot) error {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return fmt.Errorf("read HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("read HEAD tree: %w", err)
	}

	important := make(map[string]bool, len(repocontext.ImportantFiles))
	for _, name := range repocontext.ImportantFiles {
		important[name] = true
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap.Files = append(snap.Files, f.Name)
		if !important[f.Name] || f.Size >= p.maxBytes {
			return nil
		}
		content, err := p.contents(ctx, f)
		if err != nil {
			p.log.WarnContext(ctx, "skipping unreadable file", "path", f.Name, "error", err)
			return nil
		}
		snap.Important[f.Name] = content
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk HEAD tree: %w", err)
	}
	sort.Strings(snap.Files)
	return nil
}

// contents reads a blob through the cache.
func (p *Provider) contents(ctx context.Context, f *object.File) (string, error) {
	key := cache.BlobKey(f.Hash.String())
	if p.cache != nil {
		if data, ok, err := p.cache.Get(ctx, key); err == nil && ok {
			return string(data), nil
		}
	}
	content, err := f.Contents()
	if err != nil {
		return "", err
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, key, []byte(content), 0); err != nil {
			p.log.DebugContext(ctx, "cache set failed", "key", key, "error", err)
		}
	}
	return content, nil
}

func worktreeStatus(repo *git.Repository) (repocontext.StatusSummary, error) {
	sum := repocontext.StatusSummary{
		Modified:  []string{},
		Added:     []string{},
		Deleted:   []string{},
		Untracked: []string{},
	}
	wt, err := repo.Worktree()
	if err != nil {
		return sum, fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return sum, fmt.Errorf("worktree status: %w", err)
	}

	for path, fs := range st {
		switch {
		case fs.Staging == git.Untracked && fs.Worktree == git.Untracked:
			sum.Untracked = append(sum.Untracked, path)
		case fs.Staging == git.Added:
			sum.Added = append(sum.Added, path)
		case fs.Staging == git.Deleted || fs.Worktree == git.Deleted:
			sum.Deleted = append(sum.Deleted, path)
		case fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified:
		default:
			sum.Modified = append(sum.Modified, path)
		}
	}
	sort.Strings(sum.Modified)
	sort.Strings(sum.Added)
	sort.Strings(sum.Deleted)
	sort.Strings(sum.Untracked)
	sum.Clean = len(sum.Modified)+len(sum.Added)+len(sum.Deleted)+len(sum.Untracked) == 0
	return sum, nil
}
