package run

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// ErrInvalidTransition is returned when a status change is not a forward move.
var ErrInvalidTransition = errors.New("invalid run status transition")

// Statekit state IDs; kept in sync with the Status constants by init.
const (
	statePending   = "pending"
	statePlanning  = "planning"
	stateExecuting = "executing"
	stateCompleted = "completed"
	stateFailed    = "failed"
	stateAborted   = "aborted"
)

func init() {
	for state, status := range map[string]Status{
		statePending:   StatusPending,
		statePlanning:  StatusPlanning,
		stateExecuting: StatusExecuting,
		stateCompleted: StatusCompleted,
		stateFailed:    StatusFailed,
		stateAborted:   StatusAborted,
	} {
		if state != string(status) {
			panic(fmt.Sprintf("run fsm state %q out of sync with status %q", state, status))
		}
	}
}

type fsmContext struct{}

// transition runs the status machine from "from" with the event named after
// "to" and returns the resulting status.
func transition(from, to Status) (Status, error) {
	builder := statekit.NewMachine[fsmContext]("run-status").
		WithInitial(statekit.StateID(from)).
		WithContext(fsmContext{})

	builder.State(statePending).
		On(statePlanning).Target(statePlanning).
		On(stateFailed).Target(stateFailed).
		On(stateAborted).Target(stateAborted).
		Done()

	// planning -> completed covers dry runs.
	builder.State(statePlanning).
		On(stateExecuting).Target(stateExecuting).
		On(stateCompleted).Target(stateCompleted).
		On(stateFailed).Target(stateFailed).
		On(stateAborted).Target(stateAborted).
		Done()

	builder.State(stateExecuting).
		On(stateCompleted).Target(stateCompleted).
		On(stateFailed).Target(stateFailed).
		On(stateAborted).Target(stateAborted).
		Done()

	// Terminal: no outgoing events.
	builder.State(stateCompleted).Done()
	builder.State(stateFailed).Done()
	builder.State(stateAborted).Done()

	machine, err := builder.Build()
	if err != nil {
		return from, fmt.Errorf("build run status machine: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	interp.Send(statekit.Event{Type: statekit.EventType(to)})

	got := Status(interp.State().Value)
	if got != to {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return got, nil
}
