package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the pruner on a cron schedule for daemon mode. Overlapping
// runs, in this process or another, are turned into skipped runs by the
// run lock.
type Scheduler struct {
	pruner   *Pruner
	cron     *cron.Cron
	entryID  cron.EntryID
	schedule string
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool

	lastMu    sync.RWMutex
	lastEvent *Event
	lastErr   error
}

// NewScheduler creates a new retention scheduler.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: slog.Default().With("component", "retention.scheduler"),
	}
}

// Start begins scheduled runs using the pruner's Schedule, a standard
// five-field cron expression:
//   - "*/15 * * * *" - every 15 minutes
//   - "0 * * * *"    - hourly
//
// If Schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, cfg := s.pruner.Config()
	if cfg.Schedule == "" {
		s.logger.Info("retention schedule not configured, skipping scheduler")
		return nil
	}

	if err := s.addJob(ctx, cfg.Schedule); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("retention scheduler started",
		"schedule", cfg.Schedule,
		"threshold", cfg.Threshold.String(),
		"max_deletions", cfg.MaxDeletions,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) addJob(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	id, err := s.cron.AddFunc(schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention: %w", err)
	}

	s.entryID = id
	s.schedule = schedule
	return nil
}

// Reschedule replaces the schedule of a started scheduler. The next run
// follows the new expression.
func (s *Scheduler) Reschedule(ctx context.Context, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule == s.schedule {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	old := s.entryID
	if err := s.addJob(ctx, schedule); err != nil {
		return err
	}
	if old != 0 {
		s.cron.Remove(old)
	}

	s.logger.Info("retention schedule changed", "schedule", schedule)
	return nil
}

// RunOnce invokes the pruner now and records the result.
func (s *Scheduler) RunOnce(ctx context.Context) (*Event, error) {
	ev, err := s.pruner.Invoke(ctx)

	s.lastMu.Lock()
	s.lastEvent = ev
	s.lastErr = err
	s.lastMu.Unlock()

	if err != nil {
		s.logger.Error("scheduled retention run failed", "error", err)
	}
	return ev, err
}

// Last returns the event and error of the most recent run, or nil before
// the first one.
func (s *Scheduler) Last() (*Event, error) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()

	return s.lastEvent, s.lastErr
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("retention scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled run time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil || s.entryID == 0 {
		return nil
	}

	entry := s.cron.Entry(s.entryID)
	if !entry.Valid() {
		return nil
	}

	next := entry.Next
	return &next
}
