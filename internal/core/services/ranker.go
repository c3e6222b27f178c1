package services

import (
	"sort"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// HybridRanker fuses lexical and vector results with fixed weights and
// then limits how many passages one section may contribute.
type HybridRanker struct {
	lexicalWeight float64
	vectorWeight  float64
	limit         int
}

// NewHybridRanker creates a ranker. Weights are used as given; limit caps
// the diversified list handed to generation.
func NewHybridRanker(lexicalWeight, vectorWeight float64, limit int) *HybridRanker {
	if limit <= 0 {
		limit = domain.DefaultMaxContextChunks
	}
	return &HybridRanker{lexicalWeight: lexicalWeight, vectorWeight: vectorWeight, limit: limit}
}

// Fuse unions both lists by chunk ID. A channel that missed a chunk scores 0.
// The result is sorted by fused score, lower ordinal first on ties.
func (h *HybridRanker) Fuse(lexicalResults, vectorResults []domain.ScoredChunk) []domain.RetrievalCandidate {
	byID := make(map[string]*domain.RetrievalCandidate, len(lexicalResults)+len(vectorResults))
	var order []string

	get := func(c domain.Chunk) *domain.RetrievalCandidate {
		if cand, ok := byID[c.ID]; ok {
			return cand
		}
		cand := &domain.RetrievalCandidate{Chunk: c}
		byID[c.ID] = cand
		order = append(order, c.ID)
		return cand
	}
	for _, r := range lexicalResults {
		get(r.Chunk).LexicalScore = r.Score
	}
	for _, r := range vectorResults {
		get(r.Chunk).VectorScore = r.Score
	}

	out := make([]domain.RetrievalCandidate, 0, len(order))
	for _, id := range order {
		c := byID[id]
		c.FusedScore = h.lexicalWeight*c.LexicalScore + h.vectorWeight*c.VectorScore
		out = append(out, *c)
	}
	sortCandidates(out)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Diversify keeps the best candidate per section label first, then backfills
// from the remaining candidates until the limit is reached. The selection
// keeps fused order and is ranked 1..n again.
func (h *HybridRanker) Diversify(candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if len(candidates) <= 1 {
		return candidates
	}

	picked := make([]bool, len(candidates))
	seen := make(map[string]bool)
	n := 0
	for i, c := range candidates {
		if n == h.limit {
			break
		}
		if seen[c.Chunk.SectionLabel] {
			continue
		}
		seen[c.Chunk.SectionLabel] = true
		picked[i] = true
		n++
	}
	for i := range candidates {
		if n == h.limit {
			break
		}
		if !picked[i] {
			picked[i] = true
			n++
		}
	}

	out := make([]domain.RetrievalCandidate, 0, n)
	for i, c := range candidates {
		if picked[i] {
			c.Rank = len(out) + 1
			out = append(out, c)
		}
	}
	return out
}

// Rank fuses and diversifies in one step.
func (h *HybridRanker) Rank(lexicalResults, vectorResults []domain.ScoredChunk) []domain.RetrievalCandidate {
	return h.Diversify(h.Fuse(lexicalResults, vectorResults))
}

func sortCandidates(c []domain.RetrievalCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].FusedScore != c[j].FusedScore {
			return c[i].FusedScore > c[j].FusedScore
		}
		return c[i].Chunk.Ordinal < c[j].Chunk.Ordinal
	})
}
