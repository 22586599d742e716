// Package git holds the pieces of the version-control layer that do not
// depend on a particular backend: the process pool and branch naming.
package git

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool caps how many git processes run at once across a run. Phased mode
// reads the repository from several goroutines, so every git invocation is
// routed through one shared Pool.
type Pool struct {
	sem   *semaphore.Weighted
	limit int
}

// NewPool creates a Pool that allows at most limit concurrent git operations.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Limit returns the configured concurrency.
func (p *Pool) Limit() int {
	if p == nil {
		return 0
	}
	return p.limit
}

// Run acquires a slot, runs fn and releases the slot. It returns ctx.Err()
// if ctx ends while waiting. A nil Pool runs fn directly.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Do is Run for functions that produce a value.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Run(ctx, func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}
