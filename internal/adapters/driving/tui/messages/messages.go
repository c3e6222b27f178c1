// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewDocuments lists the owner's documents.
	ViewDocuments ViewType = iota
	// ViewAsk asks questions about one document.
	ViewAsk
	// ViewHelp is the keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewDocuments:
		return "documents"
	case ViewAsk:
		return "ask"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// DocumentsLoaded carries the owner's documents.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentSelected opens the ask view for a document.
type DocumentSelected struct {
	Document domain.Document
}

// DocumentDeleted signals a delete finished.
type DocumentDeleted struct {
	DocumentID string
	Err        error
}

// AnswerStarted carries the event stream of a new question.
// Seq identifies the question so events of an abandoned one are dropped.
type AnswerStarted struct {
	Seq    int
	Events <-chan domain.AnswerEvent
	Err    error
}

// AnswerEvent is one streamed answer event. Closed is set when the
// channel ended without a terminal event.
type AnswerEvent struct {
	Seq    int
	Event  domain.AnswerEvent
	Closed bool
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
