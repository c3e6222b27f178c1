// Package xlsx extracts spreadsheets, one section per non-empty sheet.
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// MIMEType is the Office Open XML spreadsheet type.
const MIMEType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Extractor handles XLSX workbooks.
type Extractor struct{}

// New creates a new XLSX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the strategy name.
func (e *Extractor) Name() string {
	return "xlsx"
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract renders each sheet as tab-separated rows titled with the sheet name.
func (e *Extractor) Extract(ctx context.Context, in *driven.ExtractInput) ([]domain.Section, error) {
	if in == nil {
		return nil, domain.ErrInvalidInput
	}

	f, err := excelize.OpenReader(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptFile, err)
	}
	defer f.Close()

	var sections []domain.Section
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", domain.ErrCorruptFile, sheet, err)
		}

		var lines []string
		for _, row := range rows {
			if line := strings.TrimSpace(strings.Join(row, "\t")); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sections = append(sections, domain.Section{
			Title: sheet,
			Index: len(sections),
			Text:  strings.Join(lines, "\n"),
		})
	}
	return sections, nil
}
