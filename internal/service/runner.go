package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Strob0t/devorch/internal/adapter/otel"
	"github.com/Strob0t/devorch/internal/domain"
	"github.com/Strob0t/devorch/internal/domain/branchprotection"
	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/repocontext"
	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/git"
	"github.com/Strob0t/devorch/internal/logger"
	"github.com/Strob0t/devorch/internal/port/contextprovider"
	"github.com/Strob0t/devorch/internal/port/generator"
	"github.com/Strob0t/devorch/internal/port/gitprovider"
	"github.com/Strob0t/devorch/internal/port/ledger"
)

const reportCommits = 3

// RepoOpener opens the working copy at path.
type RepoOpener func(path string) (gitprovider.Repository, error)

// RunnerDeps are the ports a runner drives.
type RunnerDeps struct {
	Store     ledger.Store
	OpenRepo  RepoOpener
	Snapshots contextprovider.Provider
	Generator generator.Generator
	Events    *RunEvents    // optional
	Metrics   *otel.Metrics // optional
	Logger    *slog.Logger
}

// RunnerOptions are the orchestrator settings applied to every run.
type RunnerOptions struct {
	Mode         string
	DryRun       bool
	FailFast     bool
	BranchPrefix string
	CommitPrefix string
	LogLevel     string
}

// RunRequest starts one run. Mode overrides the configured mode when set;
// DryRun is OR-ed with the configured flag.
type RunRequest struct {
	RepoPath string
	Goal     string
	Mode     string
	DryRun   bool
}

// RunResult is a finished run and what it produced.
type RunResult struct {
	Run        *run.Run
	Plan       *plan.Plan
	Outcome    *Outcome
	Applied    []string
	Commit     string
	ReportPath string
}

// RunnerService executes the full workflow for a goal: validate, plan,
// branch, execute roles, apply, commit, report.
type RunnerService struct {
	deps RunnerDeps
	opts RunnerOptions
	now  func() time.Time
}

// NewRunnerService creates a runner.
func NewRunnerService(deps RunnerDeps, opts RunnerOptions) *RunnerService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = ModeLinear
	}
	if deps.Events == nil {
		deps.Events = NewRunEvents(nil, deps.Logger)
	}
	return &RunnerService{deps: deps, opts: opts, now: time.Now}
}

// execution is the mutable state of one run. Only the runner goroutine
// touches it.
type execution struct {
	*RunnerService
	r       *run.Run
	mode    string
	dryRun  bool
	log     *slog.Logger
	repo    gitprovider.Repository
	plan    *plan.Plan
	outcome *Outcome
	applied []string
	commit  string
}

// Execute runs the workflow. Whatever happens after the run is created, its
// state and report are persisted; a fatal error marks it failed (aborted on
// cancellation) and is returned alongside the result.
func (s *RunnerService) Execute(ctx context.Context, req RunRequest) (*RunResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = s.opts.Mode
	}
	if mode != ModeLinear && mode != ModePhased {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode)
	}
	if strings.TrimSpace(req.Goal) == "" {
		return nil, fmt.Errorf("%w: goal is required", domain.ErrValidation)
	}

	r, err := s.deps.Store.Create(ctx, req.RepoPath, req.Goal)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	ctx = logger.WithRunID(ctx, r.ID)
	log, closeLog := s.runLogger(ctx, r.ID)
	defer closeLog()

	ctx, span := otel.StartRunSpan(ctx, r.ID, mode)
	defer span.End()

	x := &execution{RunnerService: s, r: r, mode: mode, dryRun: req.DryRun || s.opts.DryRun, log: log}
	start := s.now()
	s.deps.Metrics.RunStarted(ctx, mode)
	s.deps.Events.Created(ctx, r, mode)
	log.InfoContext(ctx, "run started", "repo", r.RepoPath, "goal", r.Goal, "mode", mode, "dry_run", x.dryRun)

	runErr := x.run(ctx)
	if runErr != nil {
		x.markFailed(ctx, runErr)
	}
	result, finishErr := x.finish(context.WithoutCancel(ctx))
	s.deps.Metrics.RunFinished(ctx, mode, r.Status == run.StatusCompleted, s.now().Sub(start))
	log.InfoContext(ctx, "run finished", "status", r.Status, "errors", len(r.Errors))

	return result, errors.Join(runErr, finishErr)
}

func (x *execution) run(ctx context.Context) error {
	snap, err := x.setup(ctx)
	if err != nil {
		return err
	}
	if err := x.createPlan(ctx, snap); err != nil {
		return err
	}
	if x.dryRun {
		x.r.Log(run.LevelInfo, "Dry run: stopping after planning", nil)
		return x.setStatus(ctx, run.StatusCompleted)
	}
	if err := x.createBranch(ctx); err != nil {
		return err
	}
	if err := x.execute(ctx, snap); err != nil {
		return err
	}
	if err := x.applyAndCommit(ctx); err != nil {
		return err
	}
	return x.setStatus(ctx, run.StatusCompleted)
}

// setup validates the repository and the proposal generator before anything
// is mutated, and reads the repository snapshot.
func (x *execution) setup(ctx context.Context) (*repocontext.Snapshot, error) {
	x.r.Log(run.LevelInfo, "Setting up run", nil)

	repo, err := x.deps.OpenRepo(x.r.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	if !repo.ValidateRepo(ctx) {
		return nil, fmt.Errorf("%w: %s", gitprovider.ErrNotRepository, x.r.RepoPath)
	}
	x.repo = repo

	if p, ok := x.deps.Generator.(generator.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			if !errors.Is(err, generator.ErrUnavailable) {
				err = fmt.Errorf("%w: %w", generator.ErrUnavailable, err)
			}
			return nil, err
		}
	}

	snap, err := x.deps.Snapshots.Snapshot(ctx, x.r.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("read repository context: %w", err)
	}
	return snap, nil
}

func (x *execution) createPlan(ctx context.Context, snap *repocontext.Snapshot) error {
	if err := x.setStatus(ctx, run.StatusPlanning); err != nil {
		return err
	}
	x.r.Log(run.LevelInfo, "Creating plan for goal: "+x.r.Goal, nil)

	x.plan = NewPlannerService(x.log).CreatePlan(x.r.Goal, snap)
	if err := x.deps.Store.SavePlan(ctx, x.r.ID, x.plan); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	x.r.SetTasks(x.plan.TaskIDs())
	x.r.SetArtifact("plan", filepath.Join(x.deps.Store.RunDir(x.r.ID), ledger.PlanFile))
	x.r.Log(run.LevelInfo, fmt.Sprintf("Plan created with %d tasks", len(x.plan.Tasks)), nil)
	return x.save(ctx)
}

func (x *execution) createBranch(ctx context.Context) error {
	name := git.GenerateBranchName(x.opts.BranchPrefix, x.r.Goal, x.now())
	x.r.Log(run.LevelInfo, "Creating branch: "+name, nil)

	res, err := x.repo.CreateBranch(ctx, name, "")
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	x.r.SetBranch(name)
	return x.save(ctx)
}

func (x *execution) execute(ctx context.Context, snap *repocontext.Snapshot) error {
	if err := x.setStatus(ctx, run.StatusExecuting); err != nil {
		return err
	}
	x.r.Log(run.LevelInfo, "Starting execution", map[string]any{"mode": x.mode})

	roles := NewRoleTable(x.deps.Generator, x.log)
	engine := NewEngineService(roles, x.deps.Store, x.deps.Events, x.deps.Metrics, x.log, EngineOptions{FailFast: x.opts.FailFast})

	var err error
	switch x.mode {
	case ModePhased:
		x.outcome, err = engine.RunPhased(ctx, x.r, x.r.Goal, snap)
	default:
		x.outcome, err = engine.RunLinear(ctx, x.r, x.plan, snap)
	}
	if err != nil {
		return fmt.Errorf("execute %s: %w", x.mode, err)
	}
	return nil
}

func (x *execution) applyAndCommit(ctx context.Context) error {
	applier := NewApplierService(x.log)
	x.r.Log(run.LevelInfo, "Applying proposed changes", map[string]any{"changes": len(x.outcome.Changes)})

	actx, span := otel.StartApplySpan(ctx, x.r.ID, len(x.outcome.Changes))
	res := applier.Apply(actx, x.r.RepoPath, x.outcome.Changes)
	span.End()

	x.applied = res.Applied
	x.deps.Metrics.Applied(ctx, len(res.Applied))
	for _, e := range res.Errors {
		x.r.AddError("Apply failed: " + e)
	}

	msg := CommitMessage(x.opts.CommitPrefix, x.r.Goal)
	cr, err := applier.CommitChanges(ctx, x.repo, x.applied, msg)
	switch {
	case errors.Is(err, branchprotection.ErrProtectedBranch):
		return fmt.Errorf("commit refused: %w", err)
	case err != nil:
		x.r.AddError(fmt.Sprintf("Commit failed: %v", err))
	case cr.Committed:
		x.commit = cr.Hash
		x.r.SetArtifact("commit", cr.Hash)
		x.r.Log(run.LevelInfo, "Committed changes: "+msg, map[string]any{"hash": cr.Hash})
	default:
		x.r.Log(run.LevelInfo, "No changes to commit", nil)
	}
	return x.save(ctx)
}

func (x *execution) setStatus(ctx context.Context, s run.Status) error {
	from := x.r.Status
	if err := x.r.SetStatus(s); err != nil {
		return err
	}
	if from != s {
		x.deps.Events.Status(ctx, x.r.ID, from, s)
		x.log.InfoContext(ctx, "status changed", "from", from, "to", s)
	}
	return nil
}

func (x *execution) markFailed(ctx context.Context, cause error) {
	status := run.StatusFailed
	if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
		status = run.StatusAborted
	}
	if err := x.setStatus(context.WithoutCancel(ctx), status); err != nil {
		x.log.WarnContext(ctx, "status not changed", "status", status, "error", err)
	}
	x.r.AddError(cause.Error())
	x.log.ErrorContext(ctx, "run failed", "error", cause)
}

// finish renders the report and persists the final state.
func (x *execution) finish(ctx context.Context) (*RunResult, error) {
	if x.plan != nil {
		if err := x.deps.Store.SavePlan(ctx, x.r.ID, x.plan); err != nil {
			x.log.WarnContext(ctx, "plan not saved", "error", err)
		}
	}

	reportPath := filepath.Join(x.deps.Store.RunDir(x.r.ID), ledger.ReportFile)
	x.r.SetArtifact("report", reportPath)

	data := ReportData{Run: x.r, Mode: x.mode, Plan: x.plan, Applied: x.applied, Commit: x.commit, Git: x.gitInfo(ctx)}
	if x.outcome != nil {
		data.Proposals = x.outcome.Proposals
	}
	var errs []error
	if err := x.deps.Store.SaveReport(ctx, x.r.ID, RenderReport(data)); err != nil {
		errs = append(errs, fmt.Errorf("save report: %w", err))
	}
	if err := x.save(ctx); err != nil {
		errs = append(errs, err)
	}
	x.deps.Events.Completed(ctx, x.r, x.commit, x.applied)

	return &RunResult{
		Run:        x.r,
		Plan:       x.plan,
		Outcome:    x.outcome,
		Applied:    x.applied,
		Commit:     x.commit,
		ReportPath: reportPath,
	}, errors.Join(errs...)
}

func (x *execution) gitInfo(ctx context.Context) *GitInfo {
	if x.repo == nil {
		return nil
	}
	st, err := x.repo.Status(ctx)
	if err != nil {
		return &GitInfo{Err: err}
	}
	info := &GitInfo{Branch: st.Branch, Clean: st.Clean}
	if commits, err := x.repo.Log(ctx, reportCommits); err == nil {
		info.Commits = commits
	}
	return info
}

func (x *execution) save(ctx context.Context) error {
	if err := x.deps.Store.Save(ctx, x.r); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// runLogger mirrors every record of this run into its execution.log.
func (s *RunnerService) runLogger(ctx context.Context, id string) (*slog.Logger, func()) {
	f, err := s.deps.Store.OpenLog(ctx, id)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "execution log unavailable", "error", err)
		return s.deps.Logger, func() {}
	}
	h := logger.NewMultiHandler(s.deps.Logger.Handler(), logger.FileHandler(f, s.opts.LogLevel))
	return slog.New(h), func() { closeQuietly(f) }
}

func closeQuietly(c io.Closer) { _ = c.Close() }
