package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/lexical"
)

// CitationExtractor turns ranked candidates into citations with verbatim snippets.
type CitationExtractor struct {
	snippetLength int
	minRelevance  float64
	maxCitations  int
}

// NewCitationExtractor creates an extractor from retrieval settings.
func NewCitationExtractor(settings domain.RetrievalSettings) *CitationExtractor {
	e := &CitationExtractor{
		snippetLength: settings.SnippetLength,
		minRelevance:  settings.MinRelevance,
		maxCitations:  settings.MaxCitations,
	}
	if e.snippetLength <= 0 {
		e.snippetLength = domain.DefaultSnippetLength
	}
	if e.maxCitations <= 0 {
		e.maxCitations = domain.DefaultMaxCitations
	}
	return e
}

// Extract returns citations for candidates at or above the relevance
// threshold, in candidate order, numbered from 1.
func (e *CitationExtractor) Extract(query string, candidates []domain.RetrievalCandidate) []domain.Citation {
	wanted := make(map[string]bool)
	for _, t := range lexical.QueryTerms(query) {
		wanted[t] = true
	}

	citations := []domain.Citation{}
	for _, c := range candidates {
		if len(citations) == e.maxCitations {
			break
		}
		if c.FusedScore < e.minRelevance {
			continue
		}
		citations = append(citations, domain.Citation{
			Number:    len(citations) + 1,
			ChunkID:   c.Chunk.ID,
			Ordinal:   c.Chunk.Ordinal,
			Page:      c.Chunk.Page,
			Section:   c.Chunk.SectionLabel,
			Snippet:   Snippet(c.Chunk.Content, wanted, e.snippetLength),
			Relevance: c.FusedScore,
		})
	}
	return citations
}

type wordSpan struct{ start, end int }

// Snippet returns the substring of content of at most limit runes that holds
// the most query-term words. Earlier windows win ties, so a query without
// matches yields the opening of the passage. The result is always verbatim.
func Snippet(content string, terms map[string]bool, limit int) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= limit {
		return content
	}

	words := wordSpans(content)
	hits := make([]bool, len(words))
	for i, w := range words {
		for _, t := range lexical.Tokens(content[w.start:w.end]) {
			if terms[t] {
				hits[i] = true
				break
			}
		}
	}

	bestStart, bestEnd, bestScore := 0, 0, -1
	for i := range words {
		j, score := i, 0
		for j < len(words) && utf8.RuneCountInString(content[words[i].start:words[j].end]) <= limit {
			if hits[j] {
				score++
			}
			j++
		}
		if score > bestScore {
			bestStart, bestEnd, bestScore = i, j, score
		}
	}

	if bestEnd == bestStart {
		// a single word longer than the limit
		return truncateRunes(content[words[bestStart].start:], limit)
	}
	return content[words[bestStart].start:words[bestEnd-1].end]
}

func wordSpans(text string) []wordSpan {
	var spans []wordSpan
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, wordSpan{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, wordSpan{start, len(text)})
	}
	return spans
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
