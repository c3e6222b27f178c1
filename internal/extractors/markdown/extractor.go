// Package markdown extracts Markdown documents, one section per heading.
package markdown

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// maxSectionLevel is the deepest heading that starts a new section.
const maxSectionLevel = 3

// Extractor handles Markdown documents.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{md: goldmark.New()}
}

// Name returns the strategy name.
func (e *Extractor) Name() string {
	return "markdown"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50 // Format-aware, higher than plaintext
}

// Extract parses the document and splits it at headings up to level 3.
// Each section's text starts with its heading so heading terms stay searchable.
func (e *Extractor) Extract(_ context.Context, in *driven.ExtractInput) ([]domain.Section, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	src := in.Data
	root := e.md.Parser().Parse(text.NewReader(src))

	b := &builder{}
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			title := inlineText(node, src)
			if node.Level <= maxSectionLevel {
				b.start(title)
			}
			b.add(title)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			b.add(inlineText(node, src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			b.add(blockLines(node, src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	return b.finish(), nil
}

// builder accumulates sections while walking the AST.
type builder struct {
	sections []domain.Section
	title    string
	parts    []string
}

func (b *builder) start(title string) {
	b.flush()
	b.title = title
}

func (b *builder) add(s string) {
	if s = strings.TrimSpace(s); s != "" {
		b.parts = append(b.parts, s)
	}
}

func (b *builder) flush() {
	if len(b.parts) == 0 {
		return
	}
	b.sections = append(b.sections, domain.Section{
		Title: b.title,
		Index: len(b.sections),
		Text:  strings.Join(b.parts, "\n\n"),
	})
	b.parts = nil
}

func (b *builder) finish() []domain.Section {
	b.flush()
	return b.sections
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.CodeSpan:
			sb.WriteString(inlineText(t, src))
		case *ast.AutoLink:
			sb.Write(t.URL(src))
		default:
			sb.WriteString(inlineText(c, src))
		}
	}
	return sb.String()
}

// blockLines returns the raw lines of a code block.
func blockLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}
