package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpusOf(docs []Doc, terms []string) Corpus {
	c := Corpus{N: len(docs), DF: map[string]int{}}
	total := 0
	for _, d := range docs {
		total += d.Length
		for _, term := range terms {
			if d.TF[term] > 0 {
				c.DF[term]++
			}
		}
	}
	c.AvgLength = float64(total) / float64(len(docs))
	return c
}

func TestScorer_Rank(t *testing.T) {
	terms := []string{"refund", "policy"}
	docs := []Doc{
		{ID: "intro", Length: 40, TF: map[string]int{}},
		{ID: "exact", Length: 40, TF: map[string]int{"refund": 1, "policy": 1}},
		{ID: "partial", Length: 40, TF: map[string]int{"policy": 1}},
	}
	c := corpusOf(docs, terms)

	got := NewScorer().Rank(terms, docs, c, 10)

	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ID)
	assert.Equal(t, "partial", got[1].ID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestScorer_RankNoMatches(t *testing.T) {
	docs := []Doc{{ID: "a", Length: 10, TF: map[string]int{}}}
	got := NewScorer().Rank([]string{"missing"}, docs, corpusOf(docs, []string{"missing"}), 10)
	assert.Empty(t, got)
}

func TestScorer_RankLimitsK(t *testing.T) {
	docs := []Doc{
		{ID: "a", Length: 5, TF: map[string]int{"x": 1}},
		{ID: "b", Length: 5, TF: map[string]int{"x": 1}},
		{ID: "c", Length: 5, TF: map[string]int{"x": 1}},
	}
	got := NewScorer().Rank([]string{"x"}, docs, corpusOf(docs, []string{"x"}), 2)
	require.Len(t, got, 2)
	// equal scores keep input order
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestScorer_ShorterDocScoresHigher(t *testing.T) {
	docs := []Doc{
		{ID: "long", Length: 200, TF: map[string]int{"x": 1}},
		{ID: "short", Length: 10, TF: map[string]int{"x": 1}},
	}
	c := corpusOf(docs, []string{"x"})
	s := NewScorer()
	assert.Greater(t, s.Score([]string{"x"}, docs[1], c), s.Score([]string{"x"}, docs[0], c))
}

func TestScorer_EmptyCorpus(t *testing.T) {
	assert.Zero(t, NewScorer().Score([]string{"x"}, Doc{TF: map[string]int{"x": 1}}, Corpus{}))
}
