// Package plan defines the task plan derived from a goal: typed tasks bound to
// roles and chained in a fixed order.
package plan

import "time"

// Metadata records how the plan was derived.
type Metadata struct {
	DetectedTypes []TaskType `json:"detected_types"`
	GoalSummary   string     `json:"goal_summary"`
}

// Plan is the ordered task sequence for one run. Tasks are held by pointer so
// the engine's in-place status updates are visible through the plan.
type Plan struct {
	Goal      string    `json:"goal"`
	Tasks     []*Task   `json:"tasks"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"metadata"`
}

// Task returns the task with the given ID, or nil.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// TaskIDs returns task IDs in plan order.
func (p *Plan) TaskIDs() []string {
	ids := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// PendingTasks returns pending tasks whose dependencies have all completed.
func (p *Plan) PendingTasks() []*Task {
	done := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.Status == TaskCompleted {
			done[t.ID] = true
		}
	}

	var ready []*Task
	for _, t := range p.Tasks {
		if t.Status != TaskPending {
			continue
		}
		ok := true
		for _, dep := range t.Dependencies {
			if !done[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// Counts tallies tasks by status.
func (p *Plan) Counts() map[TaskStatus]int {
	c := make(map[TaskStatus]int, 5)
	for _, t := range p.Tasks {
		c[t.Status]++
	}
	return c
}

// AllTerminal reports whether every task reached a final status.
func (p *Plan) AllTerminal() bool {
	for _, t := range p.Tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}
