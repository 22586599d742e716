package service

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/port/generator"
)

// ResilienceOptions bounds every proposal generation.
type ResilienceOptions struct {
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
}

// ResilientGenerator wraps a generator with retry (exponential backoff) and
// an overall timeout.
type ResilientGenerator struct {
	inner generator.Generator
	opts  ResilienceOptions
}

var _ generator.Generator = (*ResilientGenerator)(nil)

// NewResilientGenerator wraps inner.
func NewResilientGenerator(inner generator.Generator, opts ResilienceOptions) *ResilientGenerator {
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}
	return &ResilientGenerator{inner: inner, opts: opts}
}

// Name returns the wrapped generator's name.
func (g *ResilientGenerator) Name() string { return g.inner.Name() }

// Ping forwards to the wrapped generator when it supports availability checks.
func (g *ResilientGenerator) Ping(ctx context.Context) error {
	if p, ok := g.inner.(generator.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Generate calls the wrapped generator, retrying failures until the attempts
// or the timeout run out.
func (g *ResilientGenerator) Generate(ctx context.Context, req generator.Request) (*proposal.Proposal, error) {
	r := retry.New[*proposal.Proposal](retry.Config{
		MaxAttempts:   g.opts.MaxAttempts,
		InitialDelay:  g.opts.InitialDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	t := timeout.New[*proposal.Proposal](timeout.Config{
		DefaultTimeout: g.opts.Timeout,
	})

	return t.Execute(ctx, g.opts.Timeout, func(ctx context.Context) (*proposal.Proposal, error) {
		return r.Do(ctx, func(ctx context.Context) (*proposal.Proposal, error) {
			return g.inner.Generate(ctx, req)
		})
	})
}
