// Package run defines the Run entity: the ledger record of one orchestration attempt.
package run

import (
	"fmt"
	"path/filepath"
	"time"
)

// Status represents the current state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlanning  Status = "planning"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusPlanning:  true,
	StatusExecuting: true,
	StatusCompleted: true,
	StatusFailed:    true,
	StatusAborted:   true,
}

// Validate checks that s is a known status.
func (s Status) Validate() error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid run status %q", s)
	}
	return nil
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAborted
}

// Level is the severity of a ledger log entry.
type Level string

const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// LogEntry is one line of a run's audit log.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Run is the durable record of one attempt to satisfy a goal against a repository.
// Mutate it only through Log, AddError, SetStatus, SetBranch, SetTasks and SetArtifact.
type Run struct {
	ID         string            `json:"run_id"`
	RepoPath   string            `json:"repo_path"`
	Goal       string            `json:"goal"`
	Status     Status            `json:"status"`
	BranchName string            `json:"branch_name,omitempty"`
	Tasks      []string          `json:"tasks"`
	Logs       []LogEntry        `json:"logs"`
	Errors     []string          `json:"errors"`
	Artifacts  map[string]string `json:"artifacts"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	now func() time.Time
}

// New creates a pending run with a fresh identity. repoPath is made absolute
// when possible.
func New(repoPath, goal string) *Run {
	return newAt(repoPath, goal, time.Now)
}

func newAt(repoPath, goal string, now func() time.Time) *Run {
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	ts := now()
	return &Run{
		ID:        NewID(ts),
		RepoPath:  repoPath,
		Goal:      goal,
		Status:    StatusPending,
		Tasks:     []string{},
		Logs:      []LogEntry{},
		Errors:    []string{},
		Artifacts: map[string]string{},
		CreatedAt: ts,
		UpdatedAt: ts,
		now:       now,
	}
}

func (r *Run) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func (r *Run) touch() time.Time {
	r.UpdatedAt = r.clock()
	return r.UpdatedAt
}

// Log appends an entry. It never fails.
func (r *Run) Log(level Level, msg string, data map[string]any) {
	ts := r.touch()
	r.Logs = append(r.Logs, LogEntry{Timestamp: ts, Level: level, Message: msg, Data: data})
}

// AddError records msg in the error list and logs it at ERROR.
func (r *Run) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Log(LevelError, msg, nil)
}

// SetStatus moves the run to s. Setting the current status again is a no-op.
// Backward moves and moves out of a terminal status return ErrInvalidTransition.
func (r *Run) SetStatus(s Status) error {
	if s == r.Status {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	next, err := transition(r.Status, s)
	if err != nil {
		return err
	}
	r.Status = next
	r.Log(LevelInfo, fmt.Sprintf("Status changed to %s", next), nil)
	return nil
}

// SetBranch records the branch created for this run.
func (r *Run) SetBranch(name string) {
	r.BranchName = name
	r.touch()
}

// SetTasks records the IDs of the plan's tasks.
func (r *Run) SetTasks(ids []string) {
	r.Tasks = append([]string(nil), ids...)
	r.touch()
}

// SetArtifact records the path of a named artifact (plan, report, ...).
func (r *Run) SetArtifact(name, path string) {
	if r.Artifacts == nil {
		r.Artifacts = map[string]string{}
	}
	r.Artifacts[name] = path
	r.touch()
}

// Summary is a compact, listable view of a run.
type Summary struct {
	ID         string    `json:"run_id"`
	Goal       string    `json:"goal"`
	Status     Status    `json:"status"`
	BranchName string    `json:"branch_name,omitempty"`
	ErrorCount int       `json:"error_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary returns the listable view of r.
func (r *Run) Summary() Summary {
	return Summary{
		ID:         r.ID,
		Goal:       r.Goal,
		Status:     r.Status,
		BranchName: r.BranchName,
		ErrorCount: len(r.Errors),
		CreatedAt:  r.CreatedAt,
	}
}
