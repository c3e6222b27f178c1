package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/logger"
)

const reapTag = "reap-stale-jobs"

// staleJobFailer moves an abandoned job to its error state.
type staleJobFailer interface {
	FailStale(ctx context.Context, job domain.IngestionJob)
}

// Scheduler runs background maintenance. Today that is the stale job
// reaper: jobs that stopped reporting progress for longer than the job
// timeout are failed so their documents leave the processing state.
type Scheduler struct {
	jobs       driven.JobStore
	failer     staleJobFailer
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time

	mu        sync.Mutex
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs idle for staleAfter are reaped
// every interval, and once immediately on Start.
func NewScheduler(jobs driven.JobStore, failer staleJobFailer, staleAfter, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		jobs:       jobs,
		failer:     failer,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
	}
}

// Start schedules the reaper. It returns immediately; calling it twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()

	_, err := sched.Every(s.interval).Tag(reapTag).Do(func() {
		if _, err := s.ReapStale(ctx); err != nil {
			logger.Warn("stale job reaper: %v", err)
		}
	})
	if err != nil {
		cancel()
		return err
	}

	sched.StartAsync()
	s.scheduler = sched
	s.cancel = cancel
	return nil
}

// Stop halts the scheduler and cancels a running reap.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return
	}
	s.cancel()
	s.scheduler.Stop()
	s.scheduler = nil
}

// ReapStale fails every non-terminal job idle for longer than staleAfter.
// It returns the number of jobs reaped.
func (s *Scheduler) ReapStale(ctx context.Context) (int, error) {
	stale, err := s.jobs.ListStale(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, err
	}
	for _, job := range stale {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		logger.Warn("reaping stale job=%s document=%s (last update %s)",
			job.ID, job.DocumentID, job.UpdatedAt.Format(time.RFC3339))
		s.failer.FailStale(ctx, job)
	}
	return len(stale), nil
}
