package plan

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrGoalRequired   = errors.New("goal is required")
	ErrNoTasks        = errors.New("at least one task is required")
	ErrDuplicateTask  = errors.New("duplicate task id")
	ErrTaskMissingID  = errors.New("task id is required")
	ErrRoleMismatch   = errors.New("task role does not match its type")
	ErrBrokenChain    = errors.New("task dependencies do not form a chain")
	ErrOrderViolation = errors.New("task types are out of order")
)

// Validate checks a plan, typically one loaded from disk, for structural
// correctness: known types, role binding, unique IDs, fixed type order and the
// linear dependency chain.
func (p *Plan) Validate() error {
	if p.Goal == "" {
		return ErrGoalRequired
	}
	if len(p.Tasks) == 0 {
		return ErrNoTasks
	}

	seen := make(map[string]bool, len(p.Tasks))
	lastOrder := -1
	for i, t := range p.Tasks {
		if t == nil || t.ID == "" {
			return fmt.Errorf("task %d: %w", i, ErrTaskMissingID)
		}
		if seen[t.ID] {
			return fmt.Errorf("task %s: %w", t.ID, ErrDuplicateTask)
		}
		seen[t.ID] = true

		if err := t.Type.Validate(); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
		if want, _ := RoleFor(t.Type); t.Role != want {
			return fmt.Errorf("task %s: %w: %s is owned by %s", t.ID, ErrRoleMismatch, t.Type, want)
		}

		pos := slices.Index(Order, t.Type)
		if pos <= lastOrder {
			return fmt.Errorf("task %s: %w", t.ID, ErrOrderViolation)
		}
		lastOrder = pos

		if i == 0 {
			if len(t.Dependencies) != 0 {
				return fmt.Errorf("task %s: %w: first task has dependencies", t.ID, ErrBrokenChain)
			}
			continue
		}
		prev := p.Tasks[i-1].ID
		if len(t.Dependencies) != 1 || t.Dependencies[0] != prev {
			return fmt.Errorf("task %s: %w: want [%s], got %v", t.ID, ErrBrokenChain, prev, t.Dependencies)
		}
	}
	return nil
}
