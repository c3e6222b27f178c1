// Package docx extracts Word documents from word/document.xml.
// Paragraphs styled as headings start new sections.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// MIMEType is the Office Open XML word processing type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the strategy name.
func (e *Extractor) Name() string {
	return "docx"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract reads paragraphs in order and groups them under headings.
func (e *Extractor) Extract(_ context.Context, in *driven.ExtractInput) ([]domain.Section, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive", domain.ErrCorruptFile)
	}

	content, err := readEntry(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}

	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}

	return group(doc.Body.Paragraphs), nil
}

// readEntry returns the content of a named archive entry.
func readEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("%w: missing %s", domain.ErrCorruptFile, name)
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
	Tabs []struct{}    `xml:"tab"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func (p paragraph) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for range r.Tabs {
			sb.WriteByte('\t')
		}
		for _, t := range r.Text {
			sb.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (p paragraph) isHeading() bool {
	style := strings.ToLower(p.Props.Style.Val)
	return strings.HasPrefix(style, "heading") || style == "title"
}

// group turns paragraphs into sections.
func group(paragraphs []paragraph) []domain.Section {
	var (
		sections []domain.Section
		title    string
		lines    []string
	)
	flush := func() {
		if len(lines) > 0 {
			sections = append(sections, domain.Section{Title: title, Index: len(sections), Text: strings.Join(lines, "\n")})
		}
		lines = nil
	}

	for _, p := range paragraphs {
		text := p.text()
		if text == "" {
			continue
		}
		if p.isHeading() {
			flush()
			title = text
		}
		lines = append(lines, text)
	}
	flush()
	return sections
}
