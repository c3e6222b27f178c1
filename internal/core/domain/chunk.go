package domain

import "fmt"

// Section is a structural unit of extracted text.
// Sections are transient: produced by an Extractor, consumed by the Chunker.
type Section struct {
	// Title is the heading text, if the format carries one.
	Title string

	// Page is the 1-based page number, or 0 when unknown.
	Page int

	// Index is the 0-based position of the section in reading order.
	Index int

	// Text is the body text in reading order.
	Text string
}

// Label returns the citation label for the section.
// Headings win over pages, pages over positional fallbacks.
func (s Section) Label() string {
	switch {
	case s.Title != "":
		return s.Title
	case s.Page > 0:
		return fmt.Sprintf("Page %d", s.Page)
	default:
		return fmt.Sprintf("Section %d", s.Index+1)
	}
}

// Chunk is a bounded passage of a document's text.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Ordinal is the 0-based, gap-free position within the document.
	Ordinal int

	// Content is the verbatim passage text.
	Content string

	// TokenCount is the number of tokens in Content.
	TokenCount int

	// SectionLabel is the originating section's label.
	SectionLabel string

	// Page is the originating page, or 0 when unknown.
	Page int

	// LexicalKey is the normalised term string derived from Content.
	LexicalKey string
}

// Embedding is the vector for exactly one chunk.
type Embedding struct {
	// ChunkID is the primary key, shared with the Chunk.
	ChunkID string

	// Vector is the fixed-dimension embedding.
	Vector []float32
}
