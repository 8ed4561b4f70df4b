package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleDetected marks workflows whose dependency graph is not acyclic.
	ErrCycleDetected = errors.New("cycle detected in workflow graph")

	// ErrExecutionNotActive marks control requests for runs that are not in
	// the active-run set.
	ErrExecutionNotActive = errors.New("execution is not active")

	// ErrNotPaused marks resume requests for runs that are not paused.
	ErrNotPaused = errors.New("execution is not paused")

	// ErrAlreadyPaused marks pause requests for runs that are already paused.
	ErrAlreadyPaused = errors.New("execution is already paused")
)

// CycleError names the nodes left unscheduled by the topological sort.
type CycleError struct {
	WorkflowID string
	Nodes      []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in workflow %s involving nodes %v", e.WorkflowID, e.Nodes)
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}
