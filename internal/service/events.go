package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/devorch/internal/domain/proposal"
	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/port/messagequeue"
)

// RunEvents publishes run lifecycle events. Publishing is best effort: a
// failure is logged and never reaches the run.
type RunEvents struct {
	pub messagequeue.Publisher
	log *slog.Logger
}

// NewRunEvents wraps pub. A nil publisher discards every event.
func NewRunEvents(pub messagequeue.Publisher, log *slog.Logger) *RunEvents {
	if pub == nil {
		pub = messagequeue.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &RunEvents{pub: pub, log: log}
}

func (e *RunEvents) publish(ctx context.Context, runID, event string, payload any) {
	if e == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.WarnContext(ctx, "event marshal failed", "event", event, "error", err)
		return
	}
	if err := e.pub.Publish(ctx, messagequeue.RunSubject(runID, event), data); err != nil {
		e.log.WarnContext(ctx, "event publish failed", "event", event, "error", err)
	}
}

// Created announces a new run.
func (e *RunEvents) Created(ctx context.Context, r *run.Run, mode string) {
	e.publish(ctx, r.ID, messagequeue.EventCreated, messagequeue.RunCreatedPayload{
		RunID: r.ID, RepoPath: r.RepoPath, Goal: r.Goal, Mode: mode, CreatedAt: r.CreatedAt,
	})
}

// Status announces a status transition.
func (e *RunEvents) Status(ctx context.Context, runID string, from, to run.Status) {
	e.publish(ctx, runID, messagequeue.EventStatus, messagequeue.RunStatusPayload{
		RunID: runID, From: string(from), Status: string(to),
	})
}

// Phase announces the end of a phased-mode phase.
func (e *RunEvents) Phase(ctx context.Context, runID string, phase int, proposals []proposal.Proposal) {
	roles := make([]string, len(proposals))
	ok := true
	for i := range proposals {
		roles[i] = proposals[i].Role
		ok = ok && proposals[i].Success
	}
	e.publish(ctx, runID, messagequeue.EventPhase, messagequeue.RunPhasePayload{
		RunID: runID, Phase: phase, Roles: roles, Success: ok,
	})
}

// Task announces one finished role execution.
func (e *RunEvents) Task(ctx context.Context, runID string, p *proposal.Proposal) {
	status := "completed"
	if !p.Success {
		status = "failed"
	}
	e.publish(ctx, runID, messagequeue.EventTask, messagequeue.RunTaskPayload{
		RunID: runID, TaskID: p.TaskID, Role: p.Role, Status: status, Summary: p.Summary,
	})
}

// Completed announces a terminal run.
func (e *RunEvents) Completed(ctx context.Context, r *run.Run, commit string, files []string) {
	if files == nil {
		files = []string{}
	}
	e.publish(ctx, r.ID, messagequeue.EventCompleted, messagequeue.RunCompletedPayload{
		RunID:        r.ID,
		Status:       string(r.Status),
		BranchName:   r.BranchName,
		Commit:       commit,
		FilesChanged: files,
		Errors:       append([]string{}, r.Errors...),
	})
}
