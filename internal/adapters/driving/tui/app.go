package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
type App struct {
	ports  *Ports
	styles *styles.Styles
	keys   *keymap.KeyMap
	help   help.Model

	documentsView *documents.View
	askView       *ask.View
	statusBar     *status.Bar

	currentView messages.ViewType
	width       int
	height      int
	ready       bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application. ctx bounds every service call.
func NewApp(ctx context.Context, ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	a := &App{
		ports:         ports,
		styles:        s,
		keys:          km,
		help:          help.New(),
		documentsView: documents.NewView(ctx, s, km, ports.Document, ports.Owner),
		askView:       ask.NewView(ctx, s, km, ports.Query, ports.Owner),
		statusBar:     status.NewBar(s),
		currentView:   messages.ViewDocuments,
	}
	a.statusBar.SetBindings(km.DocumentsHelp())
	return a, nil
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.statusBar.SetState(status.StateLoading)
	return tea.Batch(
		tea.SetWindowTitle("studyrag"),
		a.documentsView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		switch a.currentView {
		case messages.ViewHelp:
			if key.Matches(msg, a.keys.Back, a.keys.Help) {
				a.switchTo(messages.ViewDocuments)
			}
			return a, nil
		case messages.ViewDocuments:
			if !a.documentsView.ConfirmingDelete() {
				switch {
				case key.Matches(msg, a.keys.Quit):
					return a, tea.Quit
				case key.Matches(msg, a.keys.Help):
					a.switchTo(messages.ViewHelp)
					return a, nil
				}
			}
			a.documentsView, cmd = a.documentsView.Update(msg)
			if a.documentsView.Loading() {
				a.statusBar.SetState(status.StateLoading)
			}
			return a, cmd
		case messages.ViewAsk:
			a.askView, cmd = a.askView.Update(msg)
			a.syncAskStatus()
			return a, cmd
		}
		return a, nil

	case messages.ViewChanged:
		a.switchTo(msg.View)
		if msg.View == messages.ViewDocuments {
			a.statusBar.SetState(status.StateLoading)
			return a, a.documentsView.Init()
		}
		return a, nil

	case messages.DocumentsLoaded:
		a.documentsView, cmd = a.documentsView.Update(msg)
		a.statusBar.SetState(status.StateReady)
		if msg.Err != nil {
			a.statusBar.SetError(msg.Err)
		} else {
			a.statusBar.SetMessage(fmt.Sprintf("%d documents", len(msg.Documents)))
		}
		return a, cmd

	case messages.DocumentDeleted:
		a.documentsView, cmd = a.documentsView.Update(msg)
		if msg.Err != nil {
			a.statusBar.SetError(msg.Err)
		} else {
			a.statusBar.SetState(status.StateLoading)
		}
		return a, cmd

	case messages.DocumentSelected:
		a.switchTo(messages.ViewAsk)
		return a, a.askView.SetDocument(msg.Document)

	case messages.AnswerStarted, messages.AnswerEvent:
		a.askView, cmd = a.askView.Update(msg)
		a.syncAskStatus()
		return a, cmd

	case messages.ErrorOccurred:
		a.statusBar.SetError(msg.Err)
		a.documentsView, cmd = a.documentsView.Update(msg)
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	if a.currentView == messages.ViewAsk {
		a.askView, cmd = a.askView.Update(msg)
	}
	return a, cmd
}

func (a *App) switchTo(view messages.ViewType) {
	a.currentView = view
	a.statusBar.SetState(status.StateReady)
	switch view {
	case messages.ViewAsk:
		a.statusBar.SetBindings(a.keys.AskHelp())
	case messages.ViewDocuments:
		a.statusBar.SetBindings(a.keys.DocumentsHelp())
	case messages.ViewHelp:
		a.statusBar.SetBindings([]key.Binding{a.keys.Back})
	}
}

func (a *App) syncAskStatus() {
	switch {
	case a.askView.Status() == domain.StatusSearching:
		a.statusBar.SetState(status.StateSearching)
	case a.askView.Streaming():
		a.statusBar.SetState(status.StateAnswering)
	case a.askView.Err() != nil:
		a.statusBar.SetError(a.askView.Err())
	default:
		a.statusBar.SetState(status.StateReady)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewAsk:
		body = a.askView.View()
	case messages.ViewHelp:
		body = a.styles.Title.Render("Help") + "\n\n" + a.help.FullHelpView(a.keys.FullHelp())
	default:
		body = a.documentsView.View()
	}

	// Pin the status bar to the bottom row.
	gap := a.height - strings.Count(body, "\n") - 2
	if gap < 1 {
		gap = 1
	}
	return body + strings.Repeat("\n", gap) + a.statusBar.View()
}

// Run starts the TUI application and blocks until it exits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Ready returns whether the app has received its first size.
func (a *App) Ready() bool {
	return a.ready
}

// StatusBar exposes the status bar for inspection.
func (a *App) StatusBar() *status.Bar {
	return a.statusBar
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.help.Width = width
	a.statusBar.SetWidth(width)
	a.documentsView.SetDimensions(width, height)
	a.askView.SetDimensions(width, height)
}
