// Package messagequeue defines the run event publishing port (interface),
// the subjects events travel on and their payload schemas.
package messagequeue

import (
	"context"
	"strings"
)

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Publisher sends run events. Publishing is best effort: callers log a
// failure and carry on.
type Publisher interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close shuts down the connection.
	Close() error
}

// Queue is a Publisher that can also deliver messages.
type Queue interface {
	Publisher

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// SubjectRuns prefixes every run event subject: devorch.runs.<run_id>.<event>.
const SubjectRuns = "devorch.runs"

// Run event names.
const (
	EventCreated   = "created"
	EventStatus    = "status"
	EventPhase     = "phase"
	EventTask      = "task"
	EventCompleted = "completed"
)

// RunSubject returns the subject of event for runID.
func RunSubject(runID, event string) string {
	return SubjectRuns + "." + runID + "." + event
}

// ParseRunSubject splits a run event subject into run ID and event name.
func ParseRunSubject(subject string) (runID, event string, ok bool) {
	rest, found := strings.CutPrefix(subject, SubjectRuns+".")
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// Noop discards every message. It stands in when no broker is configured.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, string, []byte) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }
