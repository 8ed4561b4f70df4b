// Package schedule runs workflows on cron expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/orchestrator"
)

// Entry binds one workflow to a cron expression. Inputs are passed verbatim
// to every run the entry fires.
type Entry struct {
	ID       string
	CronExpr string
	Workflow *models.Workflow
	Inputs   map[string]any
	UserID   string
}

// Validate checks the entry before it is added to a scheduler.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return errors.New("schedule entry ID is required")
	}

	if e.CronExpr == "" {
		return errors.New("schedule entry cron expression is required")
	}

	if _, err := cron.ParseStandard(e.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	if e.Workflow == nil {
		return errors.New("schedule entry workflow is required")
	}

	return e.Workflow.Validate()
}

// Scheduler fires workflow runs on cron schedules. Overlapping fires of the
// same entry are skipped rather than queued.
type Scheduler struct {
	orchestrator *orchestrator.Orchestrator
	cron         *cron.Cron
	logger       *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(orch *orchestrator.Orchestrator, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orch,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		logger:  logger.With("module", "schedule"),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers an entry. Each fire executes the workflow in its own run.
func (s *Scheduler) Add(ctx context.Context, entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("schedule entry %s already registered", entry.ID)
	}

	id, err := s.cron.AddFunc(entry.CronExpr, func() { s.fire(ctx, entry) })
	if err != nil {
		return fmt.Errorf("failed to add cron job for entry %s: %w", entry.ID, err)
	}

	s.entries[entry.ID] = id

	s.logger.Info("Schedule entry added",
		"entry_id", entry.ID, "cron", entry.CronExpr, "workflow_id", entry.Workflow.ID)

	return nil
}

// Remove drops an entry. It reports whether the entry was registered.
func (s *Scheduler) Remove(entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[entryID]
	if !ok {
		return false
	}

	s.cron.Remove(id)
	delete(s.entries, entryID)

	s.logger.Info("Schedule entry removed", "entry_id", entryID)

	return true
}

// Entries lists the registered entry ids.
func (s *Scheduler) Entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}

	return ids
}

func (s *Scheduler) Start() {
	s.cron.Start()

	s.logger.Info("Scheduler started")
}

// Stop halts firing and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()

	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) fire(ctx context.Context, entry *Entry) {
	s.logger.Info("Schedule entry fired",
		"entry_id", entry.ID, "workflow_id", entry.Workflow.ID)

	result, err := s.orchestrator.Execute(ctx, entry.Workflow, entry.Inputs, entry.UserID)
	if err != nil {
		s.logger.Error("Scheduled run failed to start",
			"entry_id", entry.ID, "workflow_id", entry.Workflow.ID, "error", err)

		return
	}

	s.logger.Info("Scheduled run finished",
		"entry_id", entry.ID, "execution_id", result.ExecutionID, "status", result.Status)
}
