// Package documents provides the documents list view component for the TUI.
package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

// View is the documents list view.
type View struct {
	ctx             context.Context
	styles          *styles.Styles
	keys            *keymap.KeyMap
	documentService driving.DocumentService
	owner           string

	documents     []domain.Document
	selected      int
	scrollOffset  int
	width         int
	height        int
	loading       bool
	confirmDelete bool
	err           error
}

// NewView creates a new documents view for owner.
func NewView(
	ctx context.Context, s *styles.Styles, km *keymap.KeyMap,
	documentService driving.DocumentService, owner string,
) *View {
	return &View{
		ctx:             ctx,
		styles:          s,
		keys:            km,
		documentService: documentService,
		owner:           owner,
		width:           80,
		height:          24,
	}
}

// Init loads the document list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadDocuments()
}

func (v *View) loadDocuments() tea.Cmd {
	svc, ctx, owner := v.documentService, v.ctx, v.owner
	return func() tea.Msg {
		docs, err := svc.List(ctx, owner)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

func (v *View) deleteDocument(id string) tea.Cmd {
	svc, ctx, owner := v.documentService, v.ctx, v.owner
	return func() tea.Msg {
		return messages.DocumentDeleted{DocumentID: id, Err: svc.Delete(ctx, owner, id)}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.confirmDelete {
			return v.handleConfirmKey(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.documents = msg.Documents
			v.selected = min(v.selected, max(len(v.documents)-1, 0))
			v.adjustScroll()
		}
		return v, nil

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		return v, v.loadDocuments()

	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case key.Matches(msg, v.keys.Down):
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
	case key.Matches(msg, v.keys.Select):
		doc := v.SelectedDocument()
		if doc == nil {
			return v, nil
		}
		if !doc.IsReady() {
			v.err = fmt.Errorf("%q is %s, only ready documents can be queried", doc.Title, doc.Status)
			return v, nil
		}
		v.err = nil
		selected := *doc
		return v, func() tea.Msg { return messages.DocumentSelected{Document: selected} }
	case key.Matches(msg, v.keys.Reload):
		v.loading = true
		v.err = nil
		return v, v.loadDocuments()
	case key.Matches(msg, v.keys.Delete):
		if v.SelectedDocument() != nil {
			v.confirmDelete = true
		}
	}
	return v, nil
}

func (v *View) handleConfirmKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	v.confirmDelete = false
	doc := v.SelectedDocument()
	if doc == nil || !key.Matches(msg, v.keys.Confirm) {
		return v, nil
	}
	return v, v.deleteDocument(doc.ID)
}

func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

// visibleItemCount reserves lines for the title, help and status bar.
func (v *View) visibleItemCount() int {
	return max(v.height-8, 1)
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.documents))))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
		b.WriteString("\n")
		return b.String()
	case len(v.documents) == 0 && v.err == nil:
		b.WriteString(v.styles.Muted.Render("No documents yet. Add one with: studyrag ingest <file>"))
		b.WriteString("\n")
		return b.String()
	}

	visible := v.visibleItemCount()
	for i := v.scrollOffset; i < len(v.documents) && i < v.scrollOffset+visible; i++ {
		b.WriteString(v.renderDocument(i, &v.documents[i]))
		b.WriteString("\n")
	}
	if len(v.documents) > visible {
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
			v.scrollOffset+1, min(v.scrollOffset+visible, len(v.documents)), len(v.documents))))
		b.WriteString("\n")
	}

	if v.confirmDelete {
		if doc := v.SelectedDocument(); doc != nil {
			b.WriteString("\n")
			b.WriteString(v.styles.Warning.Render(fmt.Sprintf("Delete %q and its index? [y/N]", doc.Title)))
			b.WriteString("\n")
		}
	}
	if v.err != nil {
		b.WriteString("\n")
		b.WriteString(v.styles.Error.Render(v.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *View) renderDocument(index int, doc *domain.Document) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	maxTitleLen := max(v.width-30, 10)
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	detail := fmt.Sprintf("%d chunks", doc.ChunkCount)
	if doc.Status == domain.StatusError && doc.ErrorReason != "" {
		detail = doc.ErrorReason
	}

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-*s  %-10s  %s", indicator, maxTitleLen, title, doc.Status, detail))
	}
	return v.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTitleLen, title)) +
		v.styles.Status(doc.Status) +
		strings.Repeat(" ", max(12-len(doc.Status), 2)) +
		v.styles.Muted.Render(detail)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.adjustScroll()
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.Document {
	return v.documents
}

// SelectedIndex returns the currently selected document index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.Document {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// ConfirmingDelete reports whether a delete awaits confirmation.
func (v *View) ConfirmingDelete() bool {
	return v.confirmDelete
}

// Loading reports whether a list request is in flight.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
