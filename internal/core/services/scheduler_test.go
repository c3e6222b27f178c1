package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/studyrag/internal/core/domain"
)

func seedJobs(t *testing.T, store *memory.Store, now time.Time) {
	t.Helper()
	ctx := context.Background()
	jobs := []domain.IngestionJob{
		{ID: "old-running", Status: domain.JobProcessing, UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "old-queued", Status: domain.JobQueued, UpdatedAt: now.Add(-90 * time.Minute)},
		{ID: "old-done", Status: domain.JobReady, UpdatedAt: now.Add(-3 * time.Hour)},
		{ID: "fresh", Status: domain.JobProcessing, UpdatedAt: now.Add(-time.Minute)},
	}
	for i := range jobs {
		jobs[i].DocumentID = "doc-" + jobs[i].ID
		jobs[i].OwnerID = "alice"
		jobs[i].CreatedAt = jobs[i].UpdatedAt
		require.NoError(t, store.JobStore().SaveJob(ctx, &jobs[i]))
	}
}

func TestScheduler_ReapStale(t *testing.T) {
	store, err := memory.NewStore()
	require.NoError(t, err)
	now := time.Now()
	seedJobs(t, store, now)

	failer := &mockFailer{}
	s := NewScheduler(store.JobStore(), failer, time.Hour, time.Minute)
	s.now = func() time.Time { return now }

	n, err := s.ReapStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"old-running", "old-queued"}, failer.reaped)
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	store, err := memory.NewStore()
	require.NoError(t, err)
	seedJobs(t, store, time.Now())

	failer := &mockFailer{}
	s := NewScheduler(store.JobStore(), failer, time.Hour, time.Hour)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		failer.mu.Lock()
		defer failer.mu.Unlock()
		return len(failer.reaped) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	store, err := memory.NewStore()
	require.NoError(t, err)
	s := NewScheduler(store.JobStore(), &mockFailer{}, time.Hour, 0)
	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
}
