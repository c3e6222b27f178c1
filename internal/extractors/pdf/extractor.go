// Package pdf extracts PDF documents, one section per page.
//
// Two strategies are provided: a pure Go reader and the poppler pdftotext
// command. The registry tries the Go reader first and falls back to
// pdftotext when it fails or finds no text.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure both strategies implement the interface.
var (
	_ driven.Extractor = (*Extractor)(nil)
	_ driven.Extractor = (*CLIExtractor)(nil)
)

// MIMEType is the PDF content type.
const MIMEType = "application/pdf"

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// Extractor reads PDFs with a pure Go parser.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the strategy name.
func (e *Extractor) Name() string {
	return "pdf"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 60
}

// Extract returns one section per page with text. Pages keep their 1-based number.
func (e *Extractor) Extract(ctx context.Context, in *driven.ExtractInput) (sections []domain.Section, err error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			sections = nil
			err = fmt.Errorf("%w: %v", domain.ErrCorruptFile, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}

	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			sections = append(sections, domain.Section{Page: i, Index: len(sections), Text: text})
		}
	}

	return sections, nil
}

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	return cmd.Output()
}

// CLIExtractor reads PDFs with pdftotext.
type CLIExtractor struct {
	runner CommandRunner
}

// NewCLI creates a pdftotext extractor using os/exec.
func NewCLI() *CLIExtractor {
	return &CLIExtractor{runner: execRunner{}}
}

// NewCLIWithRunner creates a pdftotext extractor with a custom runner.
func NewCLIWithRunner(runner CommandRunner) *CLIExtractor {
	return &CLIExtractor{runner: runner}
}

// Name returns the strategy name.
func (e *CLIExtractor) Name() string {
	return "pdftotext"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *CLIExtractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (e *CLIExtractor) Priority() int {
	return 55
}

// Extract runs pdftotext and splits its output on form feeds, one per page.
func (e *CLIExtractor) Extract(ctx context.Context, in *driven.ExtractInput) ([]domain.Section, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	out, err := e.runner.Run(ctx, in.Data, "pdftotext", "-layout", "-enc", "UTF-8", "-", "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: pdftotext: %v", domain.ErrCorruptFile, err)
	}

	var sections []domain.Section
	for i, page := range strings.Split(string(out), "\f") {
		if text := strings.TrimSpace(page); text != "" {
			sections = append(sections, domain.Section{Page: i + 1, Index: len(sections), Text: text})
		}
	}
	return sections, nil
}
