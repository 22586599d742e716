package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "devorch"

// StartRunSpan starts a span for an orchestration run.
func StartRunSpan(ctx context.Context, runID, mode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.mode", mode),
		),
	)
}

// StartPhaseSpan starts a span for one phase of a phased run.
func StartPhaseSpan(ctx context.Context, phase int, roles []string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "phase",
		trace.WithAttributes(
			attribute.Int("phase.number", phase),
			attribute.StringSlice("phase.roles", roles),
		),
	)
}

// StartTaskSpan starts a span for a role executing a task.
func StartTaskSpan(ctx context.Context, taskID, role string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.role", role),
		),
	)
}

// StartApplySpan starts a span for writing aggregated changes to the working copy.
func StartApplySpan(ctx context.Context, runID string, changes int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "apply",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("apply.changes", changes),
		),
	)
}
