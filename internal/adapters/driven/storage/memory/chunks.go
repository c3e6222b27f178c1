package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/lexical"
)

type chunkStore struct{ s *Store }

var _ driven.ChunkStore = (*chunkStore)(nil)

// noEmbed rejects text embedding; every vector is supplied precomputed.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: memory store embeds nothing itself", domain.ErrInvalidInput)
}

// InsertBatch stores chunks with their vectors. A failed batch leaves nothing behind.
func (c *chunkStore) InsertBatch(ctx context.Context, ownerID, documentID string, batch driven.ChunkBatch) ([]string, error) {
	if len(batch.Chunks) != len(batch.Vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrInvalidInput, len(batch.Chunks), len(batch.Vectors))
	}
	if len(batch.Chunks) == 0 {
		return nil, nil
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.owned(ownerID, documentID); !ok {
		return nil, domain.ErrNotFound
	}

	taken := make(map[int]bool, len(c.s.chunks[documentID]))
	for _, ic := range c.s.chunks[documentID] {
		taken[ic.chunk.Ordinal] = true
	}

	ids := make([]string, len(batch.Chunks))
	entries := make([]indexedChunk, len(batch.Chunks))
	docs := make([]chromem.Document, len(batch.Chunks))
	for i, chunk := range batch.Chunks {
		if taken[chunk.Ordinal] {
			return nil, fmt.Errorf("%w: duplicate ordinal %d", domain.ErrPersistence, chunk.Ordinal)
		}
		taken[chunk.Ordinal] = true
		if len(batch.Vectors[i]) == 0 {
			return nil, fmt.Errorf("%w: chunk %d has no embedding", domain.ErrInvalidInput, chunk.Ordinal)
		}
		if chunk.ID == "" {
			chunk.ID = uuid.New().String()
		}
		chunk.DocumentID = documentID
		if chunk.LexicalKey == "" {
			chunk.LexicalKey = lexical.Key(chunk.Content)
		}
		terms := lexical.Terms(chunk.Content)
		entries[i] = indexedChunk{chunk: chunk, tf: lexical.Frequencies(terms), termCount: len(terms)}
		ids[i] = chunk.ID
		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Embedding: append([]float32(nil), batch.Vectors[i]...),
			Metadata: map[string]string{
				"document_id": documentID,
				"ordinal":     strconv.Itoa(chunk.Ordinal),
			},
		}
	}

	for i, doc := range docs {
		if err := c.s.vectors.AddDocument(ctx, doc); err != nil {
			if len(ids[:i]) > 0 {
				_ = c.s.vectors.Delete(ctx, nil, nil, ids[:i]...)
			}
			return nil, fmt.Errorf("%w: saving embedding %d: %v", domain.ErrPersistence, entries[i].chunk.Ordinal, err)
		}
	}

	list := append(c.s.chunks[documentID], entries...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].chunk.Ordinal < list[j].chunk.Ordinal })
	c.s.chunks[documentID] = list
	return ids, nil
}

func (c *chunkStore) DeleteChunks(ctx context.Context, ownerID, documentID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.owned(ownerID, documentID); !ok {
		return nil
	}
	return c.s.dropChunks(ctx, documentID)
}

// dropChunks removes a document's chunks and vectors. Callers hold the lock.
func (s *Store) dropChunks(ctx context.Context, documentID string) error {
	if len(s.chunks[documentID]) > 0 {
		if err := s.vectors.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
			return fmt.Errorf("%w: deleting embeddings: %v", domain.ErrPersistence, err)
		}
	}
	delete(s.chunks, documentID)
	return nil
}

func (c *chunkStore) ListChunks(_ context.Context, ownerID, documentID string) ([]domain.Chunk, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if _, ok := c.s.owned(ownerID, documentID); !ok {
		return nil, nil
	}
	out := make([]domain.Chunk, len(c.s.chunks[documentID]))
	for i, ic := range c.s.chunks[documentID] {
		out[i] = ic.chunk
	}
	return out, nil
}

// CountChunks reports equal counts because InsertBatch never stores a chunk without its vector.
func (c *chunkStore) CountChunks(_ context.Context, ownerID, documentID string) (int, int, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	if _, ok := c.s.owned(ownerID, documentID); !ok {
		return 0, 0, nil
	}
	n := len(c.s.chunks[documentID])
	return n, n, nil
}

func (c *chunkStore) LexicalSearch(_ context.Context, ownerID, documentID string, terms []string, k int) ([]domain.ScoredChunk, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := []domain.ScoredChunk{}
	if _, ok := c.s.owned(ownerID, documentID); !ok || len(terms) == 0 {
		return out, nil
	}

	entries := c.s.chunks[documentID]
	corpus := lexical.Corpus{N: len(entries), DF: make(map[string]int, len(terms))}
	var total int
	docs := make([]lexical.Doc, 0, len(entries))
	byID := make(map[string]domain.Chunk, len(entries))
	for _, ic := range entries {
		total += ic.termCount
		tf := make(map[string]int)
		for _, t := range terms {
			if n := ic.tf[t]; n > 0 {
				tf[t] = n
				corpus.DF[t]++
			}
		}
		if len(tf) == 0 {
			continue
		}
		docs = append(docs, lexical.Doc{ID: ic.chunk.ID, Length: ic.termCount, TF: tf})
		byID[ic.chunk.ID] = ic.chunk
	}
	if corpus.N > 0 {
		corpus.AvgLength = float64(total) / float64(corpus.N)
	}

	for _, r := range c.s.scorer.Rank(terms, docs, corpus, k) {
		out = append(out, domain.ScoredChunk{Chunk: byID[r.ID], Score: r.Score})
	}
	return out, nil
}

// VectorSearch queries chromem for the whole document, then orders by
// clamped similarity with ordinal as the tie-break.
func (c *chunkStore) VectorSearch(ctx context.Context, ownerID, documentID string, query []float32, k int) ([]domain.ScoredChunk, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := []domain.ScoredChunk{}
	if _, ok := c.s.owned(ownerID, documentID); !ok {
		return out, nil
	}
	entries := c.s.chunks[documentID]
	if len(entries) == 0 || len(query) == 0 {
		return out, nil
	}

	results, err := c.s.vectors.QueryEmbedding(ctx, query, len(entries), map[string]string{"document_id": documentID}, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	byID := make(map[string]domain.Chunk, len(entries))
	for _, ic := range entries {
		byID[ic.chunk.ID] = ic.chunk
	}
	for _, r := range results {
		chunk, ok := byID[r.ID]
		if !ok {
			continue
		}
		score := float64(r.Similarity)
		if math.IsNaN(score) {
			score = 0
		}
		score = math.Max(0, math.Min(1, score))
		out = append(out, domain.ScoredChunk{Chunk: chunk, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.Ordinal < out[j].Chunk.Ordinal
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}
