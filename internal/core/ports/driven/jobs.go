package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// IngestionLock is the unique in-flight marker per document.
type IngestionLock interface {
	// Acquire marks documentID as in flight for holder, usually a job ID.
	// Returns false if an unexpired marker exists. The marker expires after
	// ttl so a crashed worker cannot block forever.
	Acquire(ctx context.Context, documentID, holder string, ttl time.Duration) (bool, error)

	// Release clears the marker only while holder still owns it, so a late
	// job cannot drop a marker taken by a newer one.
	Release(ctx context.Context, documentID, holder string) error
}

// JobHandler runs one admitted job to a terminal state.
type JobHandler func(ctx context.Context, job domain.IngestionJob) error

// JobQueue hands admitted jobs to a bounded worker pool.
// Jobs beyond the pool size wait rather than fail.
type JobQueue interface {
	// Enqueue schedules a job. It never blocks on job execution, but may wait
	// for buffer space until ctx ends, then fails with domain.ErrQueueFull.
	Enqueue(ctx context.Context, job domain.IngestionJob) error

	// Run processes jobs with handler until ctx is cancelled.
	Run(ctx context.Context, handler JobHandler) error

	// Close stops accepting jobs and releases resources.
	Close() error
}
