package plan

import (
	"fmt"
	"time"
)

// TaskType classifies the kind of work a task represents.
type TaskType string

const (
	TypeAnalyze   TaskType = "analyze"
	TypeDesign    TaskType = "design"
	TypeImplement TaskType = "implement"
	TypeTest      TaskType = "test"
	TypeDocument  TaskType = "document"
	TypeReview    TaskType = "review"
	TypeValidate  TaskType = "validate"
)

// Order is the fixed execution order every plan is projected onto.
var Order = []TaskType{
	TypeAnalyze,
	TypeDesign,
	TypeImplement,
	TypeTest,
	TypeDocument,
	TypeReview,
	TypeValidate,
}

// Validate checks that t is a known task type.
func (t TaskType) Validate() error {
	for _, known := range Order {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("invalid task type %q", t)
}

// Role names a worker specialization.
type Role string

const (
	RoleArchitect   Role = "architect"
	RoleImplementer Role = "implementer"
	RoleTester      Role = "tester"
	RoleDocumenter  Role = "documenter"
	RoleReviewer    Role = "reviewer"
)

// roleFor is the static task-type to role binding.
var roleFor = map[TaskType]Role{
	TypeAnalyze:   RoleArchitect,
	TypeDesign:    RoleArchitect,
	TypeReview:    RoleArchitect,
	TypeImplement: RoleImplementer,
	TypeTest:      RoleTester,
	TypeValidate:  RoleTester,
	TypeDocument:  RoleDocumenter,
}

// RoleFor returns the role that owns task type t.
func RoleFor(t TaskType) (Role, bool) {
	r, ok := roleFor[t]
	return r, ok
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskSkipped    TaskStatus = "skipped"
)

// IsTerminal reports whether the status is final.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskSkipped
}

// Task is one unit of work in a plan.
type Task struct {
	ID           string         `json:"id"`
	Type         TaskType       `json:"type"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Role         Role           `json:"role"`
	Status       TaskStatus     `json:"status"`
	Dependencies []string       `json:"dependencies"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// TaskID formats the ID of the task at 1-based position n.
func TaskID(n int, t TaskType) string {
	return fmt.Sprintf("task_%02d_%s", n, t)
}

// Start marks the task in progress.
func (t *Task) Start() {
	t.Status = TaskInProgress
}

// Finish marks the task completed or failed and records outputs.
func (t *Task) Finish(ok bool, outputs map[string]any, at time.Time) {
	if ok {
		t.Status = TaskCompleted
	} else {
		t.Status = TaskFailed
	}
	t.Outputs = outputs
	t.CompletedAt = &at
}

// Skip marks a task that will not run.
func (t *Task) Skip(at time.Time) {
	t.Status = TaskSkipped
	t.CompletedAt = &at
}
