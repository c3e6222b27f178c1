package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

func candidate(id string, ordinal int, content string, fused float64) domain.RetrievalCandidate {
	return domain.RetrievalCandidate{
		Chunk:      domain.Chunk{ID: id, Ordinal: ordinal, Content: content, Page: ordinal + 1, SectionLabel: "S"},
		FusedScore: fused,
	}
}

func TestCitationExtractor_ThresholdAndNumbering(t *testing.T) {
	e := NewCitationExtractor(domain.DefaultRetrievalSettings())

	got := e.Extract("refund", []domain.RetrievalCandidate{
		candidate("a", 4, "refunds are paid monthly", 0.9),
		candidate("b", 1, "the refund window", 0.4),
		candidate("c", 2, "unrelated text", 0.05),
	})
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, "a", got[0].ChunkID)
	assert.Equal(t, 5, got[0].Page)
	assert.InDelta(t, 0.9, got[0].Relevance, 1e-9)
	assert.Equal(t, 2, got[1].Number)
	assert.Equal(t, "b", got[1].ChunkID)
}

func TestCitationExtractor_MaxCitations(t *testing.T) {
	settings := domain.DefaultRetrievalSettings()
	settings.MaxCitations = 2
	e := NewCitationExtractor(settings)

	got := e.Extract("x", []domain.RetrievalCandidate{
		candidate("a", 0, "one", 0.9),
		candidate("b", 1, "two", 0.8),
		candidate("c", 2, "three", 0.7),
	})
	assert.Len(t, got, 2)
}

func TestCitationExtractor_NothingRelevant(t *testing.T) {
	e := NewCitationExtractor(domain.DefaultRetrievalSettings())
	got := e.Extract("x", []domain.RetrievalCandidate{candidate("a", 0, "one", 0.01)})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSnippet_ShortContentIsWhole(t *testing.T) {
	assert.Equal(t, "Short passage.", Snippet("  Short passage.\n", nil, 200))
}

func TestSnippet_CentersOnQueryTerms(t *testing.T) {
	content := strings.Repeat("filler ", 60) + "the refund deadline is fourteen days " + strings.Repeat("padding ", 60)
	got := Snippet(content, map[string]bool{"refund": true, "deadline": true}, 80)

	assert.Contains(t, content, got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 80)
	assert.Contains(t, got, "refund deadline")
}

func TestSnippet_NoMatchReturnsOpening(t *testing.T) {
	content := "Alpha beta gamma delta epsilon zeta eta theta iota kappa"
	got := Snippet(content, map[string]bool{"omega": true}, 20)
	assert.Equal(t, "Alpha beta gamma", got)
}

func TestSnippet_LongWordIsTruncated(t *testing.T) {
	content := strings.Repeat("é", 50) + " tail"
	got := Snippet(content, nil, 10)
	assert.Equal(t, strings.Repeat("é", 10), got)
	assert.True(t, strings.HasPrefix(content, got))
}
