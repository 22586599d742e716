package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "devorch"

// Metrics holds all devorch metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	RunsStarted   metric.Int64Counter
	RunsCompleted metric.Int64Counter
	RunsFailed    metric.Int64Counter
	Tasks         metric.Int64Counter
	FilesApplied  metric.Int64Counter
	RunDuration   metric.Float64Histogram
	PhaseDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on provider, or on the global
// meter provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("devorch.runs.started",
		metric.WithDescription("Number of runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("devorch.runs.completed",
		metric.WithDescription("Number of runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("devorch.runs.failed",
		metric.WithDescription("Number of runs failed"))
	if err != nil {
		return nil, err
	}

	m.Tasks, err = meter.Int64Counter("devorch.tasks",
		metric.WithDescription("Number of role executions by role and outcome"))
	if err != nil {
		return nil, err
	}

	m.FilesApplied, err = meter.Int64Counter("devorch.files.applied",
		metric.WithDescription("Number of file changes written to a working copy"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("devorch.run.duration_seconds",
		metric.WithDescription("Run duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.PhaseDuration, err = meter.Float64Histogram("devorch.phase.duration_seconds",
		metric.WithDescription("Phased mode phase duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RunStarted counts a run entering execution.
func (m *Metrics) RunStarted(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.RunsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RunFinished counts a terminal run and records its duration.
func (m *Metrics) RunFinished(ctx context.Context, mode string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	if ok {
		m.RunsCompleted.Add(ctx, 1, attrs)
	} else {
		m.RunsFailed.Add(ctx, 1, attrs)
	}
	m.RunDuration.Record(ctx, d.Seconds(), attrs)
}

// TaskFinished counts one role execution.
func (m *Metrics) TaskFinished(ctx context.Context, role string, ok bool) {
	if m == nil {
		return
	}
	status := "completed"
	if !ok {
		status = "failed"
	}
	m.Tasks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("status", status),
	))
}

// PhaseFinished records a phased-mode phase duration.
func (m *Metrics) PhaseFinished(ctx context.Context, phase int, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Int("phase", phase)))
}

// Applied counts files written to the working copy.
func (m *Metrics) Applied(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FilesApplied.Add(ctx, int64(n))
}
