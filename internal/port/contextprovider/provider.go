// Package contextprovider defines the port that captures the read-only
// repository snapshot handed to roles.
package contextprovider

import (
	"context"
	"errors"

	"github.com/Strob0t/devorch/internal/domain/repocontext"
)

// ErrNotRepository is returned when the path is not a git working copy.
var ErrNotRepository = errors.New("not a git repository")

// Provider reads a repository snapshot.
type Provider interface {
	// Snapshot lists the files tracked at HEAD, reads the important ones
	// that fit the size limit and summarizes the working-tree status.
	// A repository without commits yields an empty listing.
	Snapshot(ctx context.Context, repoPath string) (*repocontext.Snapshot, error)
}
