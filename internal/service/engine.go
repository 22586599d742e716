package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/devorch/internal/adapter/otel"
	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/repocontext"
	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/port/ledger"
)

// Execution modes.
const (
	ModeLinear = "linear"
	ModePhased = "phased"
)

// parallelRoles run concurrently in phase two. Their order fixes the slot
// each result lands in.
var parallelRoles = [3]plan.Role{plan.RoleImplementer, plan.RoleTester, plan.RoleDocumenter}

// Outcome is what an engine run produced: every proposal in production
// order and the change set to apply.
type Outcome struct {
	Proposals []proposal.Proposal
	Changes   []proposal.FileChange
}

// EngineOptions tunes execution policy.
type EngineOptions struct {
	// FailFast stops a linear run at the first failed task and skips the rest.
	FailFast bool
}

// EngineService drives roles through a plan (linear mode) or through the
// fixed architect, parallel workers, reviewer topology (phased mode).
type EngineService struct {
	roles   RoleTable
	store   ledger.Store
	events  *RunEvents
	metrics *otel.Metrics
	log     *slog.Logger
	opts    EngineOptions
	now     func() time.Time
}

// NewEngineService creates an engine. events and metrics may be nil.
func NewEngineService(roles RoleTable, store ledger.Store, events *RunEvents, metrics *otel.Metrics, log *slog.Logger, opts EngineOptions) *EngineService {
	if log == nil {
		log = slog.Default()
	}
	return &EngineService{
		roles:   roles,
		store:   store,
		events:  events,
		metrics: metrics,
		log:     log,
		opts:    opts,
		now:     time.Now,
	}
}

// RunLinear executes the plan's tasks in order on the calling goroutine.
// A failed task does not stop its successors unless FailFast is set. The run
// state is persisted after every task.
func (e *EngineService) RunLinear(ctx context.Context, r *run.Run, p *plan.Plan, snap *repocontext.Snapshot) (*Outcome, error) {
	out := &Outcome{}
	in := RoleInput{Goal: p.Goal, Snapshot: snap, Prior: map[string]proposal.Proposal{}}
	stopped := false

	for _, task := range p.Tasks {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if stopped {
			task.Skip(e.now())
			r.Log(run.LevelWarning, fmt.Sprintf("Task %s skipped", task.ID), nil)
			continue
		}

		task.Start()
		r.Log(run.LevelInfo, fmt.Sprintf("Executing task %s: %s", task.ID, task.Title), map[string]any{"role": task.Role})

		var prop proposal.Proposal
		if role, err := e.roles.Get(task.Role); err != nil {
			prop = proposal.Failure(string(task.Role), task.ID, err)
		} else {
			prop = e.execute(ctx, r.ID, role, in.WithTask(task), task.ID)
		}

		task.Finish(prop.Success, map[string]any{"proposal": prop}, e.now())
		out.Proposals = append(out.Proposals, prop)
		in = in.WithPrior(map[string]proposal.Proposal{task.ID: prop})

		if !prop.Success {
			e.log.WarnContext(ctx, "task failed", "task_id", task.ID, "role", task.Role, "summary", prop.Summary)
			r.AddError(fmt.Sprintf("Task %s failed: %s", task.ID, prop.Summary))
			if e.opts.FailFast {
				stopped = true
			} else {
				r.Log(run.LevelWarning, fmt.Sprintf("Task %s failed, continuing...", task.ID), nil)
			}
		}

		if err := e.store.SaveProposal(ctx, r.ID, task.ID, &prop); err != nil {
			return out, fmt.Errorf("save proposal %s: %w", task.ID, err)
		}
		if err := e.store.Save(ctx, r); err != nil {
			return out, fmt.Errorf("save run: %w", err)
		}
	}

	var ok []proposal.Proposal
	for _, prop := range out.Proposals {
		if prop.Success {
			ok = append(ok, prop)
		}
	}
	out.Changes = proposal.Flatten(ok)
	return out, nil
}

// RunPhased executes the 1→N→1 workflow: the architect designs, the
// implementer, tester and documenter work concurrently on that design, and
// the reviewer consolidates. A worker failure never cancels its siblings.
func (e *EngineService) RunPhased(ctx context.Context, r *run.Run, goal string, snap *repocontext.Snapshot) (*Outcome, error) {
	base := RoleInput{Goal: goal, Snapshot: snap, Prior: map[string]proposal.Proposal{}}
	out := &Outcome{}

	// Phase 1: architect on a synthetic design task.
	architect := e.phase(ctx, r, 1, []plan.Role{plan.RoleArchitect}, func(ctx context.Context) []proposal.Proposal {
		return []proposal.Proposal{e.executeRole(ctx, r.ID, 1, plan.RoleArchitect, base.WithTask(designTask(goal, e.now())))}
	})
	if err := e.persistPhase(ctx, r, architect); err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	// Phase 2: fan out, then barrier.
	workerIn := base.WithPrior(map[string]proposal.Proposal{string(plan.RoleArchitect): architect[0]})
	workers := e.phase(ctx, r, 2, parallelRoles[:], func(ctx context.Context) []proposal.Proposal {
		var results [len(parallelRoles)]proposal.Proposal
		var g errgroup.Group
		for i, name := range parallelRoles {
			g.Go(func() error {
				results[i] = e.executeRole(ctx, r.ID, 2, name, workerIn)
				return nil
			})
		}
		_ = g.Wait()
		return results[:]
	})
	if err := e.persistPhase(ctx, r, workers); err != nil {
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	// Phase 3: reviewer sees everything.
	upstream := append(append([]proposal.Proposal{}, architect...), workers...)
	reviewIn := base.WithPrior(byRole(upstream))
	reviewer := e.phase(ctx, r, 3, []plan.Role{plan.RoleReviewer}, func(ctx context.Context) []proposal.Proposal {
		return []proposal.Proposal{e.executeRole(ctx, r.ID, 3, plan.RoleReviewer, reviewIn)}
	})
	if err := e.persistPhase(ctx, r, reviewer); err != nil {
		return out, err
	}

	out.Proposals = append(upstream, reviewer...)
	out.Changes = AllChanges(upstream, reviewer[0])
	return out, nil
}

// AllChanges is every upstream file change followed by the reviewer's own.
// The reviewer comes last so its version of a path wins once the applier
// dedupes.
func AllChanges(upstream []proposal.Proposal, reviewer proposal.Proposal) []proposal.FileChange {
	return append(proposal.Flatten(upstream), reviewer.FileChanges...)
}

func (e *EngineService) phase(ctx context.Context, r *run.Run, n int, roles []plan.Role, fn func(context.Context) []proposal.Proposal) []proposal.Proposal {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	ctx, span := otel.StartPhaseSpan(ctx, n, names)
	defer span.End()

	start := e.now()
	r.Log(run.LevelInfo, fmt.Sprintf("Phase %d started", n), map[string]any{"roles": names})
	props := fn(ctx)

	e.metrics.PhaseFinished(ctx, n, e.now().Sub(start))
	e.events.Phase(ctx, r.ID, n, props)
	e.log.InfoContext(ctx, "phase finished", "phase", n, "roles", names)
	return props
}

// persistPhase records failures and saves each proposal under its role name.
func (e *EngineService) persistPhase(ctx context.Context, r *run.Run, props []proposal.Proposal) error {
	for i := range props {
		p := &props[i]
		if !p.Success {
			e.log.WarnContext(ctx, "role failed", "role", p.Role, "summary", p.Summary)
			r.AddError(fmt.Sprintf("Role %s failed: %s", p.Role, p.Summary))
		}
		if err := e.store.SaveProposal(ctx, r.ID, p.Role, p); err != nil {
			return fmt.Errorf("save proposal %s: %w", p.Role, err)
		}
	}
	if err := e.store.Save(ctx, r); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// executeRole runs a phased-mode role. Proposals without a task get the
// ID phase_<n>_<role>.
func (e *EngineService) executeRole(ctx context.Context, runID string, n int, name plan.Role, in RoleInput) proposal.Proposal {
	taskID := fmt.Sprintf("phase_%d_%s", n, name)
	if in.Task != nil {
		taskID = in.Task.ID
	}
	role, err := e.roles.Get(name)
	if err != nil {
		return proposal.Failure(string(name), taskID, err)
	}
	return e.execute(ctx, runID, role, in, taskID)
}

func (e *EngineService) execute(ctx context.Context, runID string, role Role, in RoleInput, taskID string) proposal.Proposal {
	ctx, span := otel.StartTaskSpan(ctx, taskID, string(role.Name()))
	defer span.End()

	prop := role.Execute(ctx, in)
	if prop.TaskID == "" {
		prop.TaskID = taskID
	}
	e.metrics.TaskFinished(ctx, prop.Role, prop.Success)
	e.events.Task(ctx, runID, &prop)
	return prop
}

// designTask is the synthetic task the architect runs in phase one.
func designTask(goal string, now time.Time) *plan.Task {
	tmpl := taskTemplates[plan.TypeDesign]
	return &plan.Task{
		ID:           "phase_1_design",
		Type:         plan.TypeDesign,
		Title:        fmt.Sprintf(tmpl.title, GoalSummary(goal)),
		Description:  fmt.Sprintf(tmpl.description, goal),
		Role:         plan.RoleArchitect,
		Status:       plan.TaskPending,
		Dependencies: []string{},
		CreatedAt:    now,
	}
}

func byRole(props []proposal.Proposal) map[string]proposal.Proposal {
	out := make(map[string]proposal.Proposal, len(props))
	for _, p := range props {
		out[p.Role] = p
	}
	return out
}
