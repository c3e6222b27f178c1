// Package ask provides the question and answer view for one document.
package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

// View asks questions about a single ready document and streams answers.
type View struct {
	ctx          context.Context
	styles       *styles.Styles
	keys         *keymap.KeyMap
	queryService driving.QueryService
	owner        string

	input    *input.QuestionInput
	document *domain.Document

	seq       int
	cancel    context.CancelFunc
	events    <-chan domain.AnswerEvent
	status    string
	question  string
	answer    string
	citations []domain.Citation
	grounded  bool
	done      bool
	err       error
	width     int
}

// NewView creates the ask view.
func NewView(
	ctx context.Context, s *styles.Styles, km *keymap.KeyMap,
	queryService driving.QueryService, owner string,
) *View {
	return &View{
		ctx:          ctx,
		styles:       s,
		keys:         km,
		queryService: queryService,
		owner:        owner,
		input:        input.NewQuestionInput(s),
		width:        80,
	}
}

// SetDocument switches to doc and clears the previous conversation.
func (v *View) SetDocument(doc domain.Document) tea.Cmd {
	v.stop()
	v.document = &doc
	v.clearAnswer()
	v.question = ""
	v.input.Reset()
	return tea.Batch(v.input.Focus(), v.input.Init())
}

func (v *View) clearAnswer() {
	v.status = ""
	v.answer = ""
	v.citations = nil
	v.grounded = false
	v.done = false
	v.err = nil
}

// stop cancels an in-flight answer. Its remaining events are dropped by seq.
func (v *View) stop() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.events = nil
	v.seq++
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Back):
			if v.Streaming() {
				v.stop()
				v.status = ""
				v.done = true
				return v, nil
			}
			return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewDocuments} }
		case key.Matches(msg, v.keys.Ask):
			return v, v.submit()
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd

	case messages.AnswerStarted:
		if msg.Seq != v.seq {
			return v, nil
		}
		if msg.Err != nil {
			v.finish(msg.Err)
			return v, nil
		}
		v.events = msg.Events
		return v, waitForEvent(msg.Seq, msg.Events)

	case messages.AnswerEvent:
		if msg.Seq != v.seq {
			return v, nil
		}
		return v, v.handleEvent(msg)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) submit() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if question == "" || v.document == nil || v.Streaming() {
		return nil
	}

	v.stop()
	v.clearAnswer()
	v.question = question
	v.status = domain.StatusSearching
	v.input.Reset()

	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel
	seq := v.seq
	svc := v.queryService
	q := domain.Query{DocumentID: v.document.ID, OwnerID: v.owner, Question: question}

	return func() tea.Msg {
		events, err := svc.Stream(ctx, q)
		return messages.AnswerStarted{Seq: seq, Events: events, Err: err}
	}
}

func (v *View) handleEvent(msg messages.AnswerEvent) tea.Cmd {
	if msg.Closed {
		v.finish(nil)
		return nil
	}

	ev := msg.Event
	switch ev.Type {
	case domain.EventStatus:
		v.status = ev.Status
	case domain.EventFragment:
		v.answer += ev.Text
	case domain.EventCitations:
		v.citations = ev.Citations
	case domain.EventDone:
		v.grounded = ev.Grounded
		v.finish(nil)
		return nil
	case domain.EventError:
		err := ev.Err
		if err == nil {
			err = errors.New(ev.Error)
		}
		v.finish(err)
		return nil
	}
	return waitForEvent(msg.Seq, v.events)
}

func (v *View) finish(err error) {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.status = ""
	v.done = true
	v.err = err
	v.events = nil
}

// waitForEvent reads the next event of question seq.
func waitForEvent(seq int, events <-chan domain.AnswerEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return messages.AnswerEvent{Seq: seq, Closed: true}
		}
		return messages.AnswerEvent{Seq: seq, Event: ev}
	}
}

// View renders the ask view.
func (v *View) View() string {
	var b strings.Builder

	title := "Ask"
	if v.document != nil {
		title = v.document.Title
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n\n")
	b.WriteString(v.input.View())
	b.WriteString("\n\n")

	if v.question != "" {
		b.WriteString(v.styles.Subtitle.Render("Q: " + v.question))
		b.WriteString("\n\n")
	}
	if v.answer != "" {
		answer := v.answer
		if v.done && !v.grounded && v.err == nil {
			answer = v.styles.Warning.Render(answer)
		}
		b.WriteString(lipgloss.NewStyle().Width(max(v.width-2, 20)).Render(answer))
		b.WriteString("\n")
	}
	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n")
	}
	if v.done && v.grounded && len(v.citations) > 0 {
		b.WriteString("\n")
		b.WriteString(v.renderCitations())
	}
	return b.String()
}

func (v *View) renderCitations() string {
	var b strings.Builder
	b.WriteString(v.styles.Subtitle.Render("Sources"))
	b.WriteString("\n")
	for _, c := range v.citations {
		b.WriteString(fmt.Sprintf("[%d] %s  %s\n",
			c.Number, location(c), v.styles.Muted.Render(fmt.Sprintf("relevance %.2f", c.Relevance))))
		b.WriteString(v.styles.Quote.Width(max(v.width-4, 20)).Render(c.Snippet))
		b.WriteString("\n")
	}
	return b.String()
}

func location(c domain.Citation) string {
	var parts []string
	if c.Page > 0 {
		parts = append(parts, fmt.Sprintf("p. %d", c.Page))
	}
	if c.Section != "" {
		parts = append(parts, c.Section)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, _ int) {
	v.width = width
	v.input.SetWidth(width)
}

// Streaming reports whether an answer is in flight.
func (v *View) Streaming() bool {
	return v.cancel != nil
}

// Status returns the current stream status, empty when idle.
func (v *View) Status() string {
	return v.status
}

// Document returns the document being asked about.
func (v *View) Document() *domain.Document {
	return v.document
}

// Answer returns the answer text received so far.
func (v *View) Answer() string {
	return v.answer
}

// Citations returns the citations of the last answer.
func (v *View) Citations() []domain.Citation {
	return v.citations
}

// Grounded reports whether the last answer was grounded.
func (v *View) Grounded() bool {
	return v.grounded
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
