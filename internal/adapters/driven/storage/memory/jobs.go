package memory

import (
	"context"
	"sort"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

type jobStore struct{ s *Store }

var _ driven.JobStore = (*jobStore)(nil)

func (j *jobStore) SaveJob(_ context.Context, job *domain.IngestionJob) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	if _, ok := j.s.jobSeq[job.ID]; !ok {
		j.s.seq++
		j.s.jobSeq[job.ID] = j.s.seq
	}
	j.s.jobs[job.ID] = *job
	return nil
}

func (j *jobStore) GetJob(_ context.Context, id string) (*domain.IngestionJob, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// LatestJob returns the most recently created job, insertion order breaking ties.
func (j *jobStore) LatestJob(_ context.Context, ownerID, documentID string) (*domain.IngestionJob, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	var (
		latest domain.IngestionJob
		found  bool
	)
	for id, job := range j.s.jobs {
		if job.DocumentID != documentID || job.OwnerID != ownerID {
			continue
		}
		if !found || job.CreatedAt.After(latest.CreatedAt) ||
			(job.CreatedAt.Equal(latest.CreatedAt) && j.s.jobSeq[id] > j.s.jobSeq[latest.ID]) {
			latest, found = job, true
		}
	}
	if !found {
		return nil, domain.ErrNotFound
	}
	return &latest, nil
}

func (j *jobStore) ListStale(_ context.Context, before time.Time) ([]domain.IngestionJob, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	var stale []domain.IngestionJob
	for _, job := range j.s.jobs {
		if job.Status.IsTerminal() || !job.UpdatedAt.Before(before) {
			continue
		}
		stale = append(stale, job)
	}
	sort.Slice(stale, func(a, b int) bool { return stale[a].UpdatedAt.Before(stale[b].UpdatedAt) })
	return stale, nil
}
