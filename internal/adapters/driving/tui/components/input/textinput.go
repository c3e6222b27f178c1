// Package input provides text input components for the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/styles"
)

// MaxQuestionLength bounds what a user can type.
const MaxQuestionLength = 1000

// QuestionInput wraps a bubbles textinput for asking about a document.
type QuestionInput struct {
	textinput textinput.Model
	styles    *styles.Styles
}

// NewQuestionInput creates a focused question input.
func NewQuestionInput(s *styles.Styles) *QuestionInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "Ask a question about this document..."
	ti.Focus()
	ti.CharLimit = MaxQuestionLength
	ti.Width = 60

	return &QuestionInput{textinput: ti, styles: s}
}

// Init starts the cursor blink.
func (q *QuestionInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (q *QuestionInput) Update(msg tea.Msg) (*QuestionInput, tea.Cmd) {
	var cmd tea.Cmd
	q.textinput, cmd = q.textinput.Update(msg)
	return q, cmd
}

// View renders the input.
func (q *QuestionInput) View() string {
	label := q.styles.Title.Render("Ask: ")
	field := q.styles.InputField.Render(q.textinput.View())
	//nolint:misspell // lipgloss.Center is the library constant
	return lipgloss.JoinHorizontal(lipgloss.Center, label, field)
}

// Value returns the current input value.
func (q *QuestionInput) Value() string {
	return q.textinput.Value()
}

// SetValue sets the input value.
func (q *QuestionInput) SetValue(value string) {
	q.textinput.SetValue(value)
}

// Focus sets focus on the input.
func (q *QuestionInput) Focus() tea.Cmd {
	return q.textinput.Focus()
}

// Blur removes focus from the input.
func (q *QuestionInput) Blur() {
	q.textinput.Blur()
}

// Focused returns whether the input is focused.
func (q *QuestionInput) Focused() bool {
	return q.textinput.Focused()
}

// SetWidth sizes the field to the terminal, leaving room for the label.
func (q *QuestionInput) SetWidth(width int) {
	q.textinput.Width = max(width-12, 20)
}

// Reset clears the input.
func (q *QuestionInput) Reset() {
	q.textinput.Reset()
}
