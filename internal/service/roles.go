package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/Strob0t/devorch/internal/domain/plan"
	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/repocontext"
	"github.com/Strob0t/devorch/internal/port/generator"
)

// RoleInput is what a role sees. Treat it as immutable: build a new value
// with WithTask or WithPrior instead of mutating the maps.
type RoleInput struct {
	Goal     string
	Task     *plan.Task // nil in phased mode
	Snapshot *repocontext.Snapshot
	Prior    map[string]proposal.Proposal
}

// WithTask returns a copy of in bound to task.
func (in RoleInput) WithTask(task *plan.Task) RoleInput {
	in.Task = task
	return in
}

// WithPrior returns a copy of in whose prior proposals are the current ones
// overlaid with extra.
func (in RoleInput) WithPrior(extra map[string]proposal.Proposal) RoleInput {
	prior := make(map[string]proposal.Proposal, len(in.Prior)+len(extra))
	maps.Copy(prior, in.Prior)
	maps.Copy(prior, extra)
	in.Prior = prior
	return in
}

// Role is a worker specialization. The set of implementations is closed.
type Role interface {
	Name() plan.Role
	Handles(t plan.TaskType) bool
	// Execute never returns an error: generator failures and panics come
	// back as failure proposals.
	Execute(ctx context.Context, in RoleInput) proposal.Proposal

	role()
}

type baseRole struct {
	name    plan.Role
	handles []plan.TaskType
	// phased is the task type used when the input carries no task.
	phased plan.TaskType
	gen    generator.Generator
	log    *slog.Logger
}

func (b *baseRole) Name() plan.Role { return b.name }

func (b *baseRole) Handles(t plan.TaskType) bool { return slices.Contains(b.handles, t) }

func (b *baseRole) role() {}

func (b *baseRole) Execute(ctx context.Context, in RoleInput) (out proposal.Proposal) {
	taskType, taskID := b.phased, ""
	req := generator.Request{Role: b.name, Goal: in.Goal, Snapshot: in.Snapshot, Prior: in.Prior}
	if in.Task != nil {
		taskType, taskID = in.Task.Type, in.Task.ID
		if !b.Handles(taskType) {
			return proposal.Unsupported(string(b.name), taskID, string(taskType))
		}
		req.Title, req.Description = in.Task.Title, in.Task.Description
	}
	req.TaskType, req.TaskID = taskType, taskID

	defer func() {
		if r := recover(); r != nil {
			b.log.ErrorContext(ctx, "role panicked", "role", b.name, "task_id", taskID, "panic", r)
			out = proposal.Failure(string(b.name), taskID, fmt.Errorf("panic: %v", r))
		}
	}()

	p, err := b.gen.Generate(ctx, req)
	if err != nil {
		b.log.WarnContext(ctx, "proposal generation failed", "role", b.name, "task_id", taskID, "error", err)
		return proposal.Failure(string(b.name), taskID, err)
	}
	if p == nil {
		return proposal.Failure(string(b.name), taskID, fmt.Errorf("generator returned no proposal"))
	}
	out = *p
	out.Role = string(b.name)
	out.TaskID = taskID
	out.Normalize()
	return out
}

// Architect analyzes the repository, designs the change and reviews plans.
type Architect struct{ baseRole }

// Implementer writes code.
type Implementer struct{ baseRole }

// Tester writes tests and validates the result.
type Tester struct{ baseRole }

// Documenter maintains the changelog and README.
type Documenter struct{ baseRole }

// Reviewer consolidates the phased run. It owns no planner task type.
type Reviewer struct{ baseRole }

// RoleTable resolves role names to implementations.
type RoleTable map[plan.Role]Role

// NewRoleTable binds every role to gen.
func NewRoleTable(gen generator.Generator, log *slog.Logger) RoleTable {
	if log == nil {
		log = slog.Default()
	}
	base := func(name plan.Role, phased plan.TaskType, handles ...plan.TaskType) baseRole {
		return baseRole{name: name, handles: handles, phased: phased, gen: gen, log: log}
	}
	return RoleTable{
		plan.RoleArchitect:   &Architect{base(plan.RoleArchitect, plan.TypeDesign, plan.TypeAnalyze, plan.TypeDesign, plan.TypeReview)},
		plan.RoleImplementer: &Implementer{base(plan.RoleImplementer, plan.TypeImplement, plan.TypeImplement)},
		plan.RoleTester:      &Tester{base(plan.RoleTester, plan.TypeTest, plan.TypeTest, plan.TypeValidate)},
		plan.RoleDocumenter:  &Documenter{base(plan.RoleDocumenter, plan.TypeDocument, plan.TypeDocument)},
		plan.RoleReviewer:    &Reviewer{base(plan.RoleReviewer, "")},
	}
}

// Get returns the role named name.
func (t RoleTable) Get(name plan.Role) (Role, error) {
	r, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}
