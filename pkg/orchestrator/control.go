package orchestrator

import (
	"context"
	"fmt"

	"github.com/aubira/flowd/pkg/models"
)

// Pause stops further node dequeuing for an active run. An in-flight node
// call finishes on its own; its result is kept.
func (o *Orchestrator) Pause(executionID string) error {
	entry, err := o.activeRun(executionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.paused {
		return fmt.Errorf("%w: %s", ErrAlreadyPaused, executionID)
	}

	entry.paused = true
	entry.resume = make(chan struct{})
	entry.status = models.ExecutionStatusPaused

	o.logger.Info("Pause requested", "execution_id", executionID)

	return nil
}

// Resume re-enters the ready-queue loop of a paused run.
func (o *Orchestrator) Resume(executionID string) error {
	entry, err := o.activeRun(executionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.paused {
		return fmt.Errorf("%w: %s", ErrNotPaused, executionID)
	}

	entry.paused = false
	entry.status = models.ExecutionStatusRunning
	close(entry.resume)

	o.logger.Info("Resume requested", "execution_id", executionID)

	return nil
}

// Cancel marks the run cancelled and cancels its context. A call already
// dispatched to an external system is not forcibly interrupted; its result is
// discarded when it returns.
func (o *Orchestrator) Cancel(executionID string) error {
	entry, err := o.activeRun(executionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	entry.status = models.ExecutionStatusCancelled
	entry.mu.Unlock()

	entry.cancel()

	o.logger.Info("Cancel requested", "execution_id", executionID)

	return nil
}

// Status reports a run's current state, consulting the active-run set first
// and falling back to the persisted record for finished runs.
func (o *Orchestrator) Status(ctx context.Context, executionID string) (models.ExecutionStatus, error) {
	o.mu.RLock()
	entry, ok := o.active[executionID]
	o.mu.RUnlock()

	if ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()

		return entry.status, nil
	}

	if o.gateway == nil {
		return "", fmt.Errorf("%w: %s", ErrExecutionNotActive, executionID)
	}

	record, err := o.gateway.ExecutionByID(ctx, executionID)
	if err != nil {
		return "", err
	}

	return record.Status, nil
}

// ActiveExecutions lists the ids of runs currently in flight.
func (o *Orchestrator) ActiveExecutions() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}

	return ids
}

func (o *Orchestrator) activeRun(executionID string) (*run, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entry, ok := o.active[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotActive, executionID)
	}

	return entry, nil
}
