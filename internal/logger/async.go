package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler moves record encoding off the orchestration goroutines.
// Records are queued on a bounded channel and dropped (and counted) when the
// queue is full, so a slow sink never stalls a run.
type AsyncHandler struct {
	inner   slog.Handler
	queue   chan slog.Record
	wg      *sync.WaitGroup
	once    *sync.Once
	dropped *atomic.Int64
}

// NewAsyncHandler starts workers draining a queue of the given capacity into inner.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	if workers < 1 {
		workers = 1
	}
	h := &AsyncHandler{
		inner:   inner,
		queue:   make(chan slog.Record, capacity),
		wg:      &sync.WaitGroup{},
		once:    &sync.Once{},
		dropped: &atomic.Int64{},
	}
	h.wg.Add(workers)
	for range workers {
		go h.drain()
	}
	return h
}

func (h *AsyncHandler) drain() {
	defer h.wg.Done()
	for rec := range h.queue {
		_ = h.inner.Handle(context.Background(), rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues a clone of rec, or drops it when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.queue <- rec.Clone():
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs shares the queue and workers but binds attrs on the inner handler.
// Records queued through the derived handler are still written by the
// original handler's workers, so attrs are applied at enqueue time.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &attrHandler{parent: h, attrs: attrs}
}

// WithGroup is not supported on the async path; the group is ignored.
func (h *AsyncHandler) WithGroup(string) slog.Handler {
	return h
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and waits for the queue to drain.
// Safe to call more than once.
func (h *AsyncHandler) Close() {
	h.once.Do(func() {
		close(h.queue)
		h.wg.Wait()
	})
}

// attrHandler carries attrs bound via WithAttrs on an AsyncHandler.
type attrHandler struct {
	parent *AsyncHandler
	attrs  []slog.Attr
}

func (a *attrHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return a.parent.Enabled(ctx, level)
}

func (a *attrHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	rec = rec.Clone()
	rec.AddAttrs(a.attrs...)
	return a.parent.Handle(ctx, rec)
}

func (a *attrHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(a.attrs)+len(attrs))
	merged = append(merged, a.attrs...)
	merged = append(merged, attrs...)
	return &attrHandler{parent: a.parent, attrs: merged}
}

func (a *attrHandler) WithGroup(string) slog.Handler { return a }
