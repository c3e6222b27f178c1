package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	tuistyles "github.com/custodia-labs/studyrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// styles renders command output with the TUI palette. Colours are dropped
// when the writer is not a terminal.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Quote   lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	theme := tuistyles.DefaultTheme()
	r := lipgloss.NewRenderer(w)
	return &styles{
		Title:   r.NewStyle().Foreground(theme.Primary).Bold(true),
		Label:   r.NewStyle().Foreground(theme.Secondary),
		Muted:   r.NewStyle().Foreground(theme.Muted),
		Success: r.NewStyle().Foreground(theme.Success),
		Warning: r.NewStyle().Foreground(theme.Warning),
		Error:   r.NewStyle().Foreground(theme.Error),
		Quote: r.NewStyle().
			Foreground(theme.Muted).
			PaddingLeft(2).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(theme.Muted),
	}
}

// Status renders a document status in its colour.
func (s *styles) Status(status domain.DocumentStatus) string {
	switch status {
	case domain.StatusReady:
		return s.Success.Render(status.String())
	case domain.StatusError:
		return s.Error.Render(status.String())
	case domain.StatusProcessing:
		return s.Warning.Render(status.String())
	default:
		return s.Muted.Render(status.String())
	}
}
