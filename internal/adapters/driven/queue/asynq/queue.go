// Package asynq provides a Redis-backed JobQueue so ingestion workers can run
// in separate processes from the HTTP server.
package asynq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Ensure Queue implements the interface.
var _ driven.JobQueue = (*Queue)(nil)

// Task routing.
const (
	TaskIngestDocument = "ingest:document"
	QueueName          = "ingestion"
)

// Config configures the Redis connection and worker pool.
type Config struct {
	RedisAddr  string
	Workers    int
	JobTimeout time.Duration
}

// Queue enqueues jobs through an asynq client and serves them with an
// asynq server. A process may use either side or both.
type Queue struct {
	cfg    Config
	redis  asynq.RedisClientOpt
	client *asynq.Client
}

// New creates a queue for the Redis server at cfg.RedisAddr.
func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = domain.DefaultWorkers
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = domain.DefaultIngestionSettings().JobTimeout
	}
	opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	return &Queue{cfg: cfg, redis: opt, client: asynq.NewClient(opt)}
}

type ingestPayload struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	OwnerID    string `json:"owner_id"`
}

// NewIngestTask builds the task for one job. The job id doubles as the task
// id so the same job cannot be queued twice. Retries are off: the ingestion
// service already retries embedding batches and records terminal failures.
func NewIngestTask(job domain.IngestionJob, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ingestPayload{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		OwnerID:    job.OwnerID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
		asynq.Queue(QueueName),
		asynq.TaskID(job.ID),
	), nil
}

// ParseIngestTask recovers the job reference carried by a task.
func ParseIngestTask(t *asynq.Task) (domain.IngestionJob, error) {
	var p ingestPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return domain.IngestionJob{}, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	if p.JobID == "" || p.DocumentID == "" {
		return domain.IngestionJob{}, fmt.Errorf("%w: task missing job or document id", domain.ErrInvalidInput)
	}
	return domain.IngestionJob{ID: p.JobID, DocumentID: p.DocumentID, OwnerID: p.OwnerID}, nil
}

// Enqueue hands the job to Redis.
func (q *Queue) Enqueue(ctx context.Context, job domain.IngestionJob) error {
	task, err := NewIngestTask(job, q.cfg.JobTimeout)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("%w: job %s already queued", domain.ErrIngestionInProgress, job.ID)
	}
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	logger.Debug("enqueued task %s on %s", info.ID, info.Queue)
	return nil
}

// Run serves ingestion tasks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handler driven.JobHandler) error {
	srv := asynq.NewServer(q.redis, asynq.Config{
		Concurrency: q.cfg.Workers,
		Queues:      map[string]int{QueueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, t *asynq.Task, err error) {
			logger.Warn("task %s failed: %v", t.Type(), err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskIngestDocument, taskHandler(handler))

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	<-ctx.Done()
	srv.Shutdown()
	return ctx.Err()
}

func taskHandler(handler driven.JobHandler) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		job, err := ParseIngestTask(t)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := handler(ctx, job); err != nil {
			return fmt.Errorf("ingest %s: %v: %w", job.DocumentID, err, asynq.SkipRetry)
		}
		return nil
	}
}

// Close closes the client connection.
func (q *Queue) Close() error {
	return q.client.Close()
}
