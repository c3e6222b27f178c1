package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/lexical"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// createTestDocument registers a document for owner.
func createTestDocument(t *testing.T, store *Store, ownerID, id string) *domain.Document {
	t.Helper()
	now := time.Now()
	doc := &domain.Document{
		ID:             id,
		OwnerID:        ownerID,
		Title:          "Doc " + id,
		StorageLocator: "/tmp/" + id + ".txt",
		MIMEType:       "text/plain",
		Status:         domain.StatusUploaded,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.DocumentStore().CreateDocument(context.Background(), doc))
	return doc
}

func batchOf(docID string, start int, contents []string, vectors [][]float32) driven.ChunkBatch {
	b := driven.ChunkBatch{Vectors: vectors}
	for i, c := range contents {
		b.Chunks = append(b.Chunks, domain.Chunk{
			DocumentID:   docID,
			Ordinal:      start + i,
			Content:      c,
			TokenCount:   len(c),
			SectionLabel: fmt.Sprintf("Section %d", start+i+1),
			LexicalKey:   lexical.Key(c),
		})
	}
	return b
}

func TestNewStore_RunsMigrationsOnce(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
	assert.Contains(t, second.Path(), dbFile)
	assert.NoError(t, second.Ping(context.Background()))
}

func TestDocumentStore_CRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()

	createTestDocument(t, store, "alice", "d1")

	got, err := docs.GetDocument(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUploaded, got.Status)
	assert.Nil(t, got.PageCount)

	require.NoError(t, docs.RenameDocument(ctx, "alice", "d1", "Syllabus"))

	pages := 12
	require.NoError(t, docs.UpdateStatus(ctx, "alice", "d1", driven.StatusUpdate{
		Status: domain.StatusReady, PageCount: &pages, ChunkCount: 4,
	}))

	got, err = docs.GetDocument(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, "Syllabus", got.Title)
	assert.Equal(t, domain.StatusReady, got.Status)
	require.NotNil(t, got.PageCount)
	assert.Equal(t, 12, *got.PageCount)
	assert.Equal(t, 4, got.ChunkCount)

	// negative chunk count and nil page count leave values untouched
	require.NoError(t, docs.UpdateStatus(ctx, "alice", "d1", driven.StatusUpdate{
		Status: domain.StatusError, ErrorReason: "boom", ChunkCount: -1,
	}))
	got, err = docs.GetDocument(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, "boom", got.ErrorReason)
	assert.Equal(t, 4, got.ChunkCount)
	assert.Equal(t, 12, *got.PageCount)

	list, err := docs.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, docs.DeleteDocument(ctx, "alice", "d1"))
	_, err = docs.GetDocument(ctx, "alice", "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_OwnerIsolation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()

	createTestDocument(t, store, "alice", "d1")

	_, err := docs.GetDocument(ctx, "bob", "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, docs.RenameDocument(ctx, "bob", "d1", "stolen"), domain.ErrNotFound)
	assert.ErrorIs(t, docs.UpdateStatus(ctx, "bob", "d1", driven.StatusUpdate{Status: domain.StatusReady}), domain.ErrNotFound)
	assert.ErrorIs(t, docs.DeleteDocument(ctx, "bob", "d1"), domain.ErrNotFound)

	list, err := docs.ListDocuments(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := docs.GetDocument(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, "Doc d1", got.Title)
}

func TestChunkStore_InsertBatchAndCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")
	chunks := store.ChunkStore()

	ids, err := chunks.InsertBatch(ctx, "alice", "d1", batchOf("d1", 0,
		[]string{"first passage", "second passage"},
		[][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEmpty(t, ids[0])

	nChunks, nEmb, err := chunks.CountChunks(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, nChunks)
	assert.Equal(t, 2, nEmb)

	list, err := chunks.ListChunks(ctx, "alice", "d1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].Ordinal)
	assert.Equal(t, ids[1], list[1].ID)
	assert.Equal(t, "second passage", list[1].LexicalKey)
}

func TestChunkStore_InsertBatchIsAtomic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")
	chunks := store.ChunkStore()

	_, err := chunks.InsertBatch(ctx, "alice", "d1", batchOf("d1", 0, []string{"a"}, [][]float32{{1}}))
	require.NoError(t, err)

	// ordinal 0 collides on the second row, so the first row must roll back too
	bad := batchOf("d1", 1, []string{"b", "dup"}, [][]float32{{1}, {1}})
	bad.Chunks[1].Ordinal = 0
	_, err = chunks.InsertBatch(ctx, "alice", "d1", bad)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	nChunks, nEmb, err := chunks.CountChunks(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, nChunks)
	assert.Equal(t, 1, nEmb)
}

func TestChunkStore_InsertBatchRejectsMismatch(t *testing.T) {
	store := setupTestStore(t)
	createTestDocument(t, store, "alice", "d1")

	_, err := store.ChunkStore().InsertBatch(context.Background(), "alice", "d1",
		batchOf("d1", 0, []string{"a", "b"}, [][]float32{{1}}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChunkStore_InsertBatchRejectsOtherOwner(t *testing.T) {
	store := setupTestStore(t)
	createTestDocument(t, store, "alice", "d1")

	_, err := store.ChunkStore().InsertBatch(context.Background(), "bob", "d1",
		batchOf("d1", 0, []string{"a"}, [][]float32{{1}}))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkStore_DeleteDocumentCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")

	_, err := store.ChunkStore().InsertBatch(ctx, "alice", "d1", batchOf("d1", 0, []string{"refund policy"}, [][]float32{{1, 1}}))
	require.NoError(t, err)
	require.NoError(t, store.DocumentStore().DeleteDocument(ctx, "alice", "d1"))

	for _, table := range []string{"chunks", "chunk_terms", "embeddings"} {
		var n int
		require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestChunkStore_DeleteChunks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")
	chunks := store.ChunkStore()

	_, err := chunks.InsertBatch(ctx, "alice", "d1", batchOf("d1", 0, []string{"a b"}, [][]float32{{1}}))
	require.NoError(t, err)

	// another owner cannot delete
	require.NoError(t, chunks.DeleteChunks(ctx, "bob", "d1"))
	n, _, err := chunks.CountChunks(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, chunks.DeleteChunks(ctx, "alice", "d1"))
	n, _, err = chunks.CountChunks(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkStore_LexicalSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")
	chunks := store.ChunkStore()

	_, err := chunks.InsertBatch(ctx, "alice", "d1", batchOf("d1", 0, []string{
		"Welcome to the course and its schedule.",
		"Our refund policy allows a full refund within 30 days.",
		"Money can be returned if you cancel early.",
		"The attendance policy is strict.",
	}, [][]float32{{1, 0}, {1, 0}, {1, 0}, {1, 0}}))
	require.NoError(t, err)

	results, err := chunks.LexicalSearch(ctx, "alice", "d1", lexical.QueryTerms("refund policy"), 20)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Chunk.Ordinal)
	assert.Equal(t, 3, results[1].Chunk.Ordinal)
	assert.Greater(t, results[0].Score, results[1].Score)

	results, err = chunks.LexicalSearch(ctx, "alice", "d1", lexical.QueryTerms("quantum"), 20)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = chunks.LexicalSearch(ctx, "alice", "d1", nil, 20)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChunkStore_VectorSearch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")
	chunks := store.ChunkStore()

	_, err := chunks.InsertBatch(ctx, "alice", "d1", batchOf("d1", 0,
		[]string{"a", "b", "c", "d"},
		[][]float32{{1, 0}, {0, 1}, {0.7, 0.7}, {-1, 0}}))
	require.NoError(t, err)

	results, err := chunks.VectorSearch(ctx, "alice", "d1", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].Chunk.Ordinal)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, 2, results[1].Chunk.Ordinal)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	// orthogonal and opposite vectors both clamp to 0; lower ordinal wins the tie
	assert.Equal(t, 1, results[2].Chunk.Ordinal)
}

func TestChunkStore_OwnerIsolation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")
	createTestDocument(t, store, "bob", "d2")
	chunks := store.ChunkStore()

	_, err := chunks.InsertBatch(ctx, "alice", "d1", batchOf("d1", 0, []string{"alice refund secret"}, [][]float32{{1, 0}}))
	require.NoError(t, err)
	_, err = chunks.InsertBatch(ctx, "bob", "d2", batchOf("d2", 0, []string{"bob refund notes"}, [][]float32{{1, 0}}))
	require.NoError(t, err)

	for _, owner := range []string{"bob", "mallory"} {
		lex, err := chunks.LexicalSearch(ctx, owner, "d1", []string{"refund"}, 20)
		require.NoError(t, err)
		assert.Empty(t, lex, owner)

		vec, err := chunks.VectorSearch(ctx, owner, "d1", []float32{1, 0}, 20)
		require.NoError(t, err)
		assert.Empty(t, vec, owner)

		list, err := chunks.ListChunks(ctx, owner, "d1")
		require.NoError(t, err)
		assert.Empty(t, list, owner)
	}

	lex, err := chunks.LexicalSearch(ctx, "bob", "d2", []string{"refund"}, 20)
	require.NoError(t, err)
	require.Len(t, lex, 1)
	assert.Equal(t, "d2", lex[0].Chunk.DocumentID)
}

func TestJobStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestDocument(t, store, "alice", "d1")
	jobs := store.JobStore()

	old := time.Now().Add(-2 * time.Hour)
	first := &domain.IngestionJob{ID: "j1", DocumentID: "d1", OwnerID: "alice", Status: domain.JobFailed,
		Stage: domain.StageEmbedding, CreatedAt: old, UpdatedAt: old}
	second := &domain.IngestionJob{ID: "j2", DocumentID: "d1", OwnerID: "alice", Status: domain.JobProcessing,
		Stage: domain.StageChunking, Progress: 20, CreatedAt: old.Add(time.Minute), UpdatedAt: old.Add(time.Minute)}
	require.NoError(t, jobs.SaveJob(ctx, first))
	require.NoError(t, jobs.SaveJob(ctx, second))

	latest, err := jobs.LatestJob(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, "j2", latest.ID)
	assert.Equal(t, domain.StageChunking, latest.Stage)

	_, err = jobs.LatestJob(ctx, "bob", "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stale, err := jobs.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "j2", stale[0].ID)

	second.Status = domain.JobReady
	second.Progress = 100
	second.UpdatedAt = time.Now()
	require.NoError(t, jobs.SaveJob(ctx, second))

	got, err := jobs.GetJob(ctx, "j2")
	require.NoError(t, err)
	assert.Equal(t, domain.JobReady, got.Status)
	assert.Equal(t, 100, got.Progress)

	_, err = jobs.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFloat32Roundtrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, float32SliceToBytes(nil))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.Zero(t, cosine([]float32{1, 0}, []float32{-1, 0}))
	assert.Zero(t, cosine([]float32{1}, []float32{1, 0}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 0}))
}
