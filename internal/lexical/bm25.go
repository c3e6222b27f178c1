package lexical

import (
	"math"
	"sort"
)

// BM25 parameters.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Doc is the index view of one chunk.
type Doc struct {
	ID string

	// Length is the number of index terms in the chunk.
	Length int

	// TF holds term frequencies for the query terms present in the chunk.
	TF map[string]int
}

// Corpus holds collection statistics for one document's chunks.
type Corpus struct {
	// N is the number of chunks.
	N int

	// AvgLength is the mean chunk length in terms.
	AvgLength float64

	// DF is the number of chunks containing each term.
	DF map[string]int
}

// Scorer computes Okapi BM25.
type Scorer struct {
	K1 float64
	B  float64
}

// NewScorer returns a scorer with the default parameters.
func NewScorer() Scorer {
	return Scorer{K1: DefaultK1, B: DefaultB}
}

// IDF returns the non-negative inverse document frequency of a term.
func (s Scorer) IDF(term string, c Corpus) float64 {
	df := float64(c.DF[term])
	n := float64(c.N)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// Score returns the BM25 score of doc for the query terms.
func (s Scorer) Score(terms []string, doc Doc, c Corpus) float64 {
	if c.N == 0 {
		return 0
	}
	avg := c.AvgLength
	if avg <= 0 {
		avg = 1
	}
	var score float64
	for _, term := range terms {
		tf := float64(doc.TF[term])
		if tf == 0 {
			continue
		}
		norm := tf * (s.K1 + 1) / (tf + s.K1*(1-s.B+s.B*float64(doc.Length)/avg))
		score += s.IDF(term, c) * norm
	}
	return score
}

// Result is a scored document ID.
type Result struct {
	ID    string
	Score float64
}

// Rank scores docs and returns the top k with a positive score.
// Ties keep the input order, so callers pass docs sorted by ordinal.
func (s Scorer) Rank(terms []string, docs []Doc, c Corpus, k int) []Result {
	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		if score := s.Score(terms, d, c); score > 0 {
			results = append(results, Result{ID: d.ID, Score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
