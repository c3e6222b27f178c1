// Package local provides an in-process JobQueue backed by a worker pool.
package local

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Ensure Queue implements the interface.
var _ driven.JobQueue = (*Queue)(nil)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Queue buffers up to size jobs and runs them on a fixed number of workers.
// Enqueue on a full buffer waits for a free slot until its context ends,
// then fails with domain.ErrQueueFull.
type Queue struct {
	jobs    chan domain.IngestionJob
	done    chan struct{}
	workers int

	closeOnce sync.Once
}

// New creates a queue with the given worker count and buffer size.
func New(workers, size int) *Queue {
	if workers <= 0 {
		workers = domain.DefaultWorkers
	}
	if size <= 0 {
		size = 1
	}
	return &Queue{
		jobs:    make(chan domain.IngestionJob, size),
		done:    make(chan struct{}),
		workers: workers,
	}
}

// Enqueue buffers a job, waiting while the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, job domain.IngestionJob) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %d jobs waiting: %w", domain.ErrQueueFull, cap(q.jobs), ctx.Err())
	}
}

// Run processes jobs until ctx is cancelled or the queue is closed and
// drained. Jobs already started finish before Run returns.
func (q *Queue) Run(ctx context.Context, handler driven.JobHandler) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					q.handle(ctx, worker, job, handler)
				case <-q.done:
					q.drain(ctx, worker, handler)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

// drain runs the jobs still buffered after Close.
func (q *Queue) drain(ctx context.Context, worker int, handler driven.JobHandler) {
	for ctx.Err() == nil {
		select {
		case job := <-q.jobs:
			q.handle(ctx, worker, job, handler)
		default:
			return
		}
	}
}

func (q *Queue) handle(ctx context.Context, worker int, job domain.IngestionJob, handler driven.JobHandler) {
	logger.Debug("worker %d: job=%s document=%s", worker, job.ID, job.DocumentID)
	if err := handler(ctx, job); err != nil {
		logger.Warn("job %s failed: %v", job.ID, err)
	}
}

// Close stops accepting jobs and wakes blocked producers.
// Buffered jobs are still handed to Run.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// Pending reports the number of buffered jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}
