// Package memory provides in-process implementations of the persistence
// ports. Vectors live in a chromem-go collection; everything else lives in
// maps guarded by a single lock. Nothing survives a restart.
package memory

import (
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/lexical"
)

const collectionName = "chunks"

// indexedChunk is a stored chunk with its lexical statistics.
type indexedChunk struct {
	chunk     domain.Chunk
	tf        map[string]int
	termCount int
}

// Store holds documents, chunks, embeddings and jobs in memory.
type Store struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]indexedChunk // by document ID, ordinal order
	jobs      map[string]domain.IngestionJob
	jobSeq    map[string]int
	seq       int

	vectors *chromem.Collection
	scorer  lexical.Scorer
}

// NewStore creates an empty in-memory store.
func NewStore() (*Store, error) {
	db := chromem.NewDB()
	// Embeddings are always supplied by the caller, so no embedding func.
	col, err := db.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Store{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]indexedChunk),
		jobs:      make(map[string]domain.IngestionJob),
		jobSeq:    make(map[string]int),
		vectors:   col,
		scorer:    lexical.NewScorer(),
	}, nil
}

// DocumentStore returns the document view of the store.
func (s *Store) DocumentStore() driven.DocumentStore { return &documentStore{s} }

// ChunkStore returns the chunk view of the store.
func (s *Store) ChunkStore() driven.ChunkStore { return &chunkStore{s} }

// JobStore returns the job view of the store.
func (s *Store) JobStore() driven.JobStore { return &jobStore{s} }

// Close is a no-op.
func (s *Store) Close() error { return nil }
