package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobColumns = `id, document_id, owner_id, status, stage, progress,
	chunk_count, embedding_count, error_reason, created_at, updated_at`

// SaveJob inserts or replaces a job.
func (s *jobStore) SaveJob(ctx context.Context, job *domain.IngestionJob) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			progress = excluded.progress,
			chunk_count = excluded.chunk_count,
			embedding_count = excluded.embedding_count,
			error_reason = excluded.error_reason,
			updated_at = excluded.updated_at
	`, job.ID, job.DocumentID, job.OwnerID, string(job.Status), string(job.Stage), job.Progress,
		job.ChunkCount, job.EmbeddingCount, job.ErrorReason, job.CreatedAt.UTC(), job.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *jobStore) GetJob(ctx context.Context, id string) (*domain.IngestionJob, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM ingestion_jobs WHERE id = ?", id)
	return scanJobRow(row)
}

// LatestJob returns the newest job for a document of the owner.
func (s *jobStore) LatestJob(ctx context.Context, ownerID, documentID string) (*domain.IngestionJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM ingestion_jobs
		WHERE document_id = ? AND owner_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, documentID, ownerID)
	return scanJobRow(row)
}

// ListStale returns queued or processing jobs last updated before the cutoff.
func (s *jobStore) ListStale(ctx context.Context, before time.Time) ([]domain.IngestionJob, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM ingestion_jobs
		WHERE status IN (?, ?) AND updated_at < ?
		ORDER BY updated_at
	`, string(domain.JobQueued), string(domain.JobProcessing), before.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.IngestionJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanJobRow(row *sql.Row) (*domain.IngestionJob, error) {
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func scanJob(row rowScanner) (*domain.IngestionJob, error) {
	var (
		job           domain.IngestionJob
		status, stage string
	)
	err := row.Scan(&job.ID, &job.DocumentID, &job.OwnerID, &status, &stage, &job.Progress,
		&job.ChunkCount, &job.EmbeddingCount, &job.ErrorReason, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.Stage = domain.IngestionStage(stage)
	return &job, nil
}
