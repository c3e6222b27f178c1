// Package lexical turns text into normalised terms and scores them with BM25.
//
// The same analyser runs at index time (chunk content) and query time,
// so both sides agree on case folding, accents and tokenisation.
package lexical

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// abbreviations expands common academic and technical short forms at query time.
var abbreviations = map[string]string{
	"ai":    "artificial intelligence",
	"ml":    "machine learning",
	"nn":    "neural network",
	"dl":    "deep learning",
	"nlp":   "natural language processing",
	"cv":    "computer vision",
	"algo":  "algorithm",
	"db":    "database",
	"api":   "application programming interface",
	"os":    "operating system",
	"cpu":   "central processing unit",
	"ui":    "user interface",
	"faq":   "frequently asked questions",
	"stats": "statistics",
}

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be but by for from has have he her his i if in into is it its
		me my no not of on or our she so than that the their them then there these they this to was we were what when
		where which who why will with you your do does did can could would should about how`) {
		stopwords[w] = struct{}{}
	}
}

// Fold case-folds text and strips diacritics.
func Fold(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}
	return cases.Fold().String(stripped)
}

// Tokens splits folded text on anything that is not a letter or digit.
// Stopwords are kept; callers decide whether to drop them.
func Tokens(text string) []string {
	return strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms returns the index terms of text in order, stopwords removed.
func Terms(text string) []string {
	tokens := Tokens(text)
	terms := tokens[:0]
	for _, tok := range tokens {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// Key is the derived lexical-search key of a chunk: its terms joined by spaces.
func Key(text string) string {
	return strings.Join(Terms(text), " ")
}

// QueryTerms analyses a query: terms are folded, abbreviations expanded,
// stopwords dropped and duplicates removed, preserving first occurrence.
func QueryTerms(query string) []string {
	var expanded []string
	for _, tok := range Tokens(query) {
		expanded = append(expanded, tok)
		if long, ok := abbreviations[tok]; ok {
			expanded = append(expanded, strings.Fields(long)...)
		}
	}

	seen := make(map[string]struct{}, len(expanded))
	var terms []string
	for _, tok := range expanded {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// Frequencies counts terms.
func Frequencies(terms []string) map[string]int {
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf
}
