package certstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler rebuilds the certificate index on a cron schedule. Renewal
// tools often replace certificates without touching the paths a
// watcher covers (for example behind symlinks), so a periodic rescan
// catches what inotify misses.
type Scheduler struct {
	store    *Store
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool

	// AfterRescan, if set, runs with each fresh snapshot. The engine
	// uses it to record observations in the inventory.
	AfterRescan func(*Index)
}

// NewScheduler creates a rescan scheduler for the given store.
func NewScheduler(store *Store, schedule string) *Scheduler {
	return &Scheduler{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "certstore.scheduler"),
	}
}

// Start begins scheduled rescans based on the cron expression.
//
// Common cron expressions:
//   - "0 4 * * *"    - Daily at 4 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "0 0 * * 0"    - Weekly on Sunday at midnight
//
// If the schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("rescan schedule not configured, skipping scheduler")
		return nil
	}

	_, err := cron.ParseStandard(s.schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	_, err = s.cron.AddFunc(s.schedule, func() {
		s.runRescan()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule rescan: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("rescan scheduler started",
		"schedule", s.schedule,
		"root", s.store.Root(),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runRescan executes one rescan cycle.
func (s *Scheduler) runRescan() {
	s.logger.Info("starting scheduled certificate rescan")

	idx := s.store.Rebuild("schedule")

	s.logger.Info("scheduled rescan completed",
		"certificates", idx.Len(),
		"skipped", idx.Skipped(),
	)

	if s.AfterRescan != nil {
		s.AfterRescan(idx)
	}
}

// Stop stops the scheduler and waits for any running rescan to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("rescan scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled rescan time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
