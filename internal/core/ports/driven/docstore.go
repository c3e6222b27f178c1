package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// DocumentStore persists documents.
// Every method is scoped by ownerID; rows of other owners behave as missing.
type DocumentStore interface {
	// CreateDocument stores a newly registered document.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document. Returns domain.ErrNotFound if absent.
	GetDocument(ctx context.Context, ownerID, id string) (*domain.Document, error)

	// ListDocuments returns the owner's documents, newest first.
	ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error)

	// RenameDocument changes the title.
	RenameDocument(ctx context.Context, ownerID, id, title string) error

	// UpdateStatus applies an ingestion status transition.
	UpdateStatus(ctx context.Context, ownerID, id string, update StatusUpdate) error

	// DeleteDocument removes a document with its chunks, embeddings and jobs.
	DeleteDocument(ctx context.Context, ownerID, id string) error
}

// StatusUpdate is a document status transition written by the orchestrator.
type StatusUpdate struct {
	Status      domain.DocumentStatus
	ErrorReason string

	// PageCount is left unchanged when nil.
	PageCount *int

	// ChunkCount is left unchanged when negative.
	ChunkCount int
}

// ChunkBatch pairs chunks with their embeddings by index.
type ChunkBatch struct {
	Chunks  []domain.Chunk
	Vectors [][]float32
}

// ChunkStore persists chunks with their lexical index and embeddings.
// Every method is scoped by ownerID and documentID.
type ChunkStore interface {
	// InsertBatch commits chunks and embeddings in one transaction.
	// Chunks without an ID are assigned one. Returns IDs in ordinal order.
	// On failure nothing from the batch is visible.
	InsertBatch(ctx context.Context, ownerID, documentID string, batch ChunkBatch) ([]string, error)

	// DeleteChunks removes every chunk and embedding of the document.
	DeleteChunks(ctx context.Context, ownerID, documentID string) error

	// ListChunks returns the document's chunks in ordinal order.
	ListChunks(ctx context.Context, ownerID, documentID string) ([]domain.Chunk, error)

	// CountChunks returns the number of chunks and embeddings.
	CountChunks(ctx context.Context, ownerID, documentID string) (chunks, embeddings int, err error)

	// LexicalSearch ranks chunks by BM25 over the analysed query terms.
	// Scores are raw and unbounded. No matching term yields an empty slice.
	LexicalSearch(ctx context.Context, ownerID, documentID string, terms []string, k int) ([]domain.ScoredChunk, error)

	// VectorSearch ranks chunks by cosine similarity, clamped to [0,1].
	VectorSearch(ctx context.Context, ownerID, documentID string, query []float32, k int) ([]domain.ScoredChunk, error)
}

// JobStore persists ingestion job records.
type JobStore interface {
	// SaveJob inserts or replaces a job.
	SaveJob(ctx context.Context, job *domain.IngestionJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, id string) (*domain.IngestionJob, error)

	// LatestJob returns the newest job for a document.
	// Returns domain.ErrNotFound if the document was never ingested.
	LatestJob(ctx context.Context, ownerID, documentID string) (*domain.IngestionJob, error)

	// ListStale returns non-terminal jobs last updated before the cutoff.
	ListStale(ctx context.Context, before time.Time) ([]domain.IngestionJob, error)
}
