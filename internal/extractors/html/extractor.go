// Package html extracts HTML documents, one section per h1-h3 heading.
package html

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

const (
	// noise is removed before extraction.
	noise = "script, style, noscript, svg, template, head, nav"

	// blocks carry body text.
	blocks = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th, dt, dd, figcaption"

	// containers are blocks whose nested blocks are read through their parent.
	containers = "li, blockquote, td, th, dd"
)

var whitespace = regexp.MustCompile(`[ \t\r\n]+`)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the strategy name.
func (e *Extractor) Name() string {
	return "html"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50 // Format-aware, higher than plaintext
}

// Extract walks block elements in document order and starts a new section at h1-h3.
func (e *Extractor) Extract(_ context.Context, in *driven.ExtractInput) ([]domain.Section, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}
	doc.Find(noise).Remove()

	var (
		sections []domain.Section
		title    string
		parts    []string
	)
	flush := func() {
		if len(parts) > 0 {
			sections = append(sections, domain.Section{Title: title, Index: len(sections), Text: strings.Join(parts, "\n\n")})
		}
		parts = nil
	}

	doc.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(containers).Length() > 0 {
			return
		}
		text := clean(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3":
			flush()
			title = text
		}
		parts = append(parts, text)
	})
	flush()

	// pages without block markup still carry body text
	if len(sections) == 0 {
		if text := clean(doc.Find("body").Text()); text != "" {
			sections = append(sections, domain.Section{Text: text})
		}
	}

	return sections, nil
}

func clean(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
