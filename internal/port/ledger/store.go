// Package ledger defines the run ledger store port (interface).
package ledger

import (
	"context"
	"io"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/run"
)

// Artifact names inside a run directory. The layout is part of the ledger
// contract: reports and tooling read these files directly.
const (
	StateFile    = "state.json"
	PlanFile     = "plan.json"
	ReportFile   = "report.md"
	LogFile      = "execution.log"
	ProposalsDir = "agent_outputs"
)

// Store persists runs and their artifacts. A run has one writer at a time;
// every Save is a full, idempotent overwrite.
type Store interface {
	// Runs
	Create(ctx context.Context, repoPath, goal string) (*run.Run, error)
	Save(ctx context.Context, r *run.Run) error
	Load(ctx context.Context, id string) (*run.Run, error)
	List(ctx context.Context) ([]run.Summary, error)

	// Artifacts
	SavePlan(ctx context.Context, id string, p *plan.Plan) error
	LoadPlan(ctx context.Context, id string) (*plan.Plan, error)
	SaveReport(ctx context.Context, id, markdown string) error
	LoadReport(ctx context.Context, id string) (string, error)
	SaveProposal(ctx context.Context, id, name string, p *proposal.Proposal) error

	// OpenLog opens the run's execution log for appending.
	OpenLog(ctx context.Context, id string) (io.WriteCloser, error)

	// RunDir returns where the run's artifacts live.
	RunDir(id string) string
}
