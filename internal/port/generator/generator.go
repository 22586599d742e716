// Package generator defines the proposal generator port: the reasoning
// backend a role consults to turn a task into a proposal.
package generator

import (
	"context"
	"errors"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/repocontext"
)

// ErrUnavailable marks a backend that cannot serve requests at all.
var ErrUnavailable = errors.New("proposal generator not available")

// Request is everything a backend sees for one role invocation.
type Request struct {
	Role        plan.Role
	TaskType    plan.TaskType
	TaskID      string
	Title       string
	Description string
	Goal        string
	Snapshot    *repocontext.Snapshot

	// Prior holds upstream proposals keyed by role (phased mode) or task ID
	// (linear mode). Backends must not modify it.
	Prior map[string]proposal.Proposal
}

// Generator produces a proposal for one request.
type Generator interface {
	// Name returns the backend identifier (e.g. "heuristic", "litellm").
	Name() string

	Generate(ctx context.Context, req Request) (*proposal.Proposal, error)
}

// Pinger is implemented by backends that can report their availability
// before a run starts.
type Pinger interface {
	Ping(ctx context.Context) error
}
