// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/styles"
)

// State represents the current application state for display.
type State string

const (
	StateReady     State = "ready"
	StateLoading   State = "loading"
	StateSearching State = "searching"
	StateAnswering State = "answering"
	StateError     State = "error"
)

// Bar displays application status and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	bindings []key.Binding
	state    State
	message  string
	width    int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Bar{styles: s, state: StateReady, width: 80}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()

	// Width includes the style's own padding, so lay out within the inner width
	inner := b.width - b.styles.StatusBar.GetHorizontalFrameSize()
	padding := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (b *Bar) renderLeft() string {
	switch b.state {
	case StateLoading:
		return b.styles.Muted.Render("Loading...")
	case StateSearching:
		return b.styles.Muted.Render("Searching the document...")
	case StateAnswering:
		return b.styles.Muted.Render("Writing answer...")
	case StateError:
		if b.message != "" {
			return b.styles.Error.Render(fmt.Sprintf("Error: %s", b.message))
		}
		return b.styles.Error.Render("Error")
	case StateReady:
	}
	if b.message != "" {
		return b.styles.Normal.Render(b.message)
	}
	return b.styles.Muted.Render("Ready")
}

func (b *Bar) renderRight() string {
	hints := make([]string, 0, len(b.bindings))
	for _, binding := range b.bindings {
		h := binding.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state and clears any message.
func (b *Bar) SetState(state State) {
	b.state = state
	b.message = ""
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetError switches to the error state with err's message.
func (b *Bar) SetError(err error) {
	b.state = StateError
	b.message = err.Error()
}

// SetMessage sets a message shown in the ready state.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// Message returns the current message.
func (b *Bar) Message() string {
	return b.message
}

// SetBindings sets the keybinding hints.
func (b *Bar) SetBindings(bindings []key.Binding) {
	b.bindings = bindings
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}
