// Package plaintext extracts plain text files, splitting on blank-line runs.
// It is also the fallback strategy for any file that is plausibly text.
package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Wildcard marks a fallback extractor that accepts any MIME type.
const Wildcard = "*"

// sniffLen is how much of a file is inspected for binary content.
const sniffLen = 8 << 10

// paragraphBreak splits sections on runs of three or more newlines,
// or on form feeds used as page separators.
var paragraphBreak = regexp.MustCompile(`\n\s*\n\s*\n+|\f`)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the strategy name.
func (e *Extractor) Name() string {
	return "plaintext"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/plain", "text/csv", Wildcard}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 5 // Fallback extractor
}

// Extract returns the text as one or more sections.
func (e *Extractor) Extract(_ context.Context, in *driven.ExtractInput) ([]domain.Section, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}
	if !IsPlausiblyText(in.Data) {
		return nil, fmt.Errorf("%w: binary content", domain.ErrCorruptFile)
	}

	text := strings.ReplaceAll(string(bytes.TrimPrefix(in.Data, []byte("\xef\xbb\xbf"))), "\r\n", "\n")

	var sections []domain.Section
	for _, part := range paragraphBreak.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sections = append(sections, domain.Section{Index: len(sections), Text: part})
	}
	return sections, nil
}

// IsPlausiblyText reports whether data looks like UTF-8 text.
func IsPlausiblyText(data []byte) bool {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	// a multi-byte rune may be cut at the sniff boundary
	for i := 0; i < utf8.UTFMax && len(head) > 0; i++ {
		if utf8.Valid(head) {
			return true
		}
		head = head[:len(head)-1]
	}
	return false
}
