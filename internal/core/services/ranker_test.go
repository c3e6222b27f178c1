package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

func scored(ordinal int, section string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{ID: fmt.Sprintf("c%d", ordinal), Ordinal: ordinal, SectionLabel: section},
		Score: score,
	}
}

func TestHybridRanker_Fuse(t *testing.T) {
	r := NewHybridRanker(0.4, 0.6, 10)

	got := r.Fuse(
		[]domain.ScoredChunk{scored(0, "A", 1.0), scored(1, "B", 0.5)},
		[]domain.ScoredChunk{scored(1, "B", 0.9), scored(2, "C", 0.8)},
	)
	require.Len(t, got, 3)

	assert.Equal(t, "c1", got[0].Chunk.ID)
	assert.InDelta(t, 0.4*0.5+0.6*0.9, got[0].FusedScore, 1e-9)
	assert.Equal(t, "c2", got[1].Chunk.ID)
	assert.InDelta(t, 0.48, got[1].FusedScore, 1e-9)
	assert.Zero(t, got[1].LexicalScore)
	assert.Equal(t, "c0", got[2].Chunk.ID)
	assert.InDelta(t, 0.4, got[2].FusedScore, 1e-9)
	assert.Zero(t, got[2].VectorScore)

	for i, c := range got {
		assert.Equal(t, i+1, c.Rank)
	}
}

func TestHybridRanker_TiesBreakByOrdinal(t *testing.T) {
	r := NewHybridRanker(0.5, 0.5, 10)

	got := r.Fuse(
		[]domain.ScoredChunk{scored(7, "A", 0.6), scored(3, "B", 0.6)},
		[]domain.ScoredChunk{scored(5, "C", 0.6)},
	)
	require.Len(t, got, 3)
	assert.Equal(t, []int{3, 5, 7}, []int{got[0].Chunk.Ordinal, got[1].Chunk.Ordinal, got[2].Chunk.Ordinal})
}

func TestHybridRanker_EmptyChannels(t *testing.T) {
	r := NewHybridRanker(0.4, 0.6, 10)
	assert.Empty(t, r.Rank(nil, nil))

	got := r.Rank(nil, []domain.ScoredChunk{scored(0, "A", 0.5)})
	require.Len(t, got, 1)
	assert.InDelta(t, 0.3, got[0].FusedScore, 1e-9)
}

func TestHybridRanker_DiversifyPrefersDistinctSections(t *testing.T) {
	r := NewHybridRanker(0, 1, 3)

	got := r.Rank(nil, []domain.ScoredChunk{
		scored(0, "Intro", 0.9),
		scored(1, "Intro", 0.8),
		scored(2, "Intro", 0.7),
		scored(3, "Grading", 0.6),
		scored(4, "Refunds", 0.5),
	})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c0", "c3", "c4"}, []string{got[0].Chunk.ID, got[1].Chunk.ID, got[2].Chunk.ID})
	// ranks are contiguous after the skipped Intro chunks
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
}

func TestHybridRanker_DiversifyBackfills(t *testing.T) {
	r := NewHybridRanker(0, 1, 4)

	got := r.Rank(nil, []domain.ScoredChunk{
		scored(0, "Intro", 0.9),
		scored(1, "Intro", 0.8),
		scored(2, "Grading", 0.7),
		scored(3, "Intro", 0.6),
		scored(4, "Intro", 0.5),
	})
	require.Len(t, got, 4)
	var ids []string
	for _, c := range got {
		ids = append(ids, c.Chunk.ID)
	}
	assert.Equal(t, []string{"c0", "c1", "c2", "c3"}, ids)
}
