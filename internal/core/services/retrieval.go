package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/lexical"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// LexicalRetriever ranks a document's chunks by term overlap with the query.
type LexicalRetriever struct {
	chunks driven.ChunkStore
	k      int
}

// NewLexicalRetriever creates a lexical retriever returning at most k chunks.
func NewLexicalRetriever(chunks driven.ChunkStore, k int) *LexicalRetriever {
	if k <= 0 {
		k = domain.DefaultTopK
	}
	return &LexicalRetriever{chunks: chunks, k: k}
}

// Retrieve returns up to k chunks with scores scaled into [0,1] by the best
// match. A query without indexable terms yields an empty slice.
func (r *LexicalRetriever) Retrieve(ctx context.Context, ownerID, documentID, query string) ([]domain.ScoredChunk, error) {
	terms := lexical.QueryTerms(query)
	if len(terms) == 0 {
		logger.Debug("lexical: no indexable terms in query")
		return []domain.ScoredChunk{}, nil
	}

	results, err := r.chunks.LexicalSearch(ctx, ownerID, documentID, terms, r.k)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	logger.Debug("lexical: %d terms, %d hits", len(terms), len(results))
	return normaliseByMax(results), nil
}

func normaliseByMax(results []domain.ScoredChunk) []domain.ScoredChunk {
	var best float64
	for _, r := range results {
		best = max(best, r.Score)
	}
	if best <= 0 {
		return results
	}
	out := make([]domain.ScoredChunk, len(results))
	for i, r := range results {
		out[i] = domain.ScoredChunk{Chunk: r.Chunk, Score: r.Score / best}
	}
	return out
}

// VectorRetriever ranks a document's chunks by embedding similarity.
type VectorRetriever struct {
	chunks   driven.ChunkStore
	embedder driven.EmbeddingService
	k        int
}

// NewVectorRetriever creates a vector retriever returning at most k chunks.
func NewVectorRetriever(chunks driven.ChunkStore, embedder driven.EmbeddingService, k int) *VectorRetriever {
	if k <= 0 {
		k = domain.DefaultTopK
	}
	return &VectorRetriever{chunks: chunks, embedder: embedder, k: k}
}

// Retrieve embeds the query and returns up to k chunks with cosine scores in [0,1].
func (r *VectorRetriever) Retrieve(ctx context.Context, ownerID, documentID, query string) ([]domain.ScoredChunk, error) {
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrEmbeddingService, err)
	}

	results, err := r.chunks.VectorSearch(ctx, ownerID, documentID, vector, r.k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("vector: %d hits", len(results))
	return results, nil
}
