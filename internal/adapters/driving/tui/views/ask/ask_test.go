package ask

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	StreamFunc func(ctx context.Context, q domain.Query) (<-chan domain.AnswerEvent, error)
}

func (m *MockQueryService) Answer(context.Context, domain.Query) (*domain.AnswerResult, error) {
	return nil, errors.New("not implemented")
}

func (m *MockQueryService) Stream(ctx context.Context, q domain.Query) (<-chan domain.AnswerEvent, error) {
	return m.StreamFunc(ctx, q)
}

func (m *MockQueryService) Retrieve(context.Context, domain.Query) ([]domain.RetrievalCandidate, error) {
	return nil, nil
}

func eventStream(events ...domain.AnswerEvent) <-chan domain.AnswerEvent {
	ch := make(chan domain.AnswerEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func newTestView(svc *MockQueryService) *View {
	v := NewView(context.Background(), styles.DefaultStyles(), keymap.DefaultKeyMap(), svc, "alice")
	v.SetDocument(domain.Document{ID: "doc-1", Title: "Biology Notes", Status: domain.StatusReady})
	return v
}

// drive runs commands until the view stops asking for more.
func drive(v *View, cmd tea.Cmd) *View {
	for cmd != nil {
		v, cmd = v.Update(cmd())
	}
	return v
}

func ask(v *View, question string) tea.Cmd {
	v.input.SetValue(question)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestView_GroundedAnswer(t *testing.T) {
	var got domain.Query
	svc := &MockQueryService{
		StreamFunc: func(_ context.Context, q domain.Query) (<-chan domain.AnswerEvent, error) {
			got = q
			return eventStream(
				domain.AnswerEvent{Type: domain.EventStatus, Status: domain.StatusSearching},
				domain.AnswerEvent{Type: domain.EventStatus, Status: domain.StatusGenerating},
				domain.AnswerEvent{Type: domain.EventFragment, Text: "Mitochondria make "},
				domain.AnswerEvent{Type: domain.EventFragment, Text: "ATP [Citation 1]."},
				domain.AnswerEvent{Type: domain.EventCitations, Citations: []domain.Citation{
					{Number: 1, Page: 4, Section: "Cells", Snippet: "The mitochondrion produces ATP.", Relevance: 0.82},
				}},
				domain.AnswerEvent{Type: domain.EventDone, TraceID: "t-1", Grounded: true},
			), nil
		},
	}
	v := newTestView(svc)

	cmd := ask(v, "  What makes ATP?  ")
	require.NotNil(t, cmd)
	assert.True(t, v.Streaming())
	assert.Equal(t, domain.StatusSearching, v.Status())
	assert.Empty(t, v.input.Value())

	v = drive(v, cmd)

	assert.Equal(t, domain.Query{DocumentID: "doc-1", OwnerID: "alice", Question: "What makes ATP?"}, got)
	assert.False(t, v.Streaming())
	assert.Empty(t, v.Status())
	assert.Equal(t, "Mitochondria make ATP [Citation 1].", v.Answer())
	assert.True(t, v.Grounded())
	require.Len(t, v.Citations(), 1)
	assert.NoError(t, v.Err())

	out := v.View()
	assert.Contains(t, out, "Q: What makes ATP?")
	assert.Contains(t, out, "p. 4, Cells")
	assert.Contains(t, out, "relevance 0.82")
	assert.Contains(t, out, "The mitochondrion produces ATP.")
}

func TestView_NotGroundedHidesSources(t *testing.T) {
	svc := &MockQueryService{
		StreamFunc: func(context.Context, domain.Query) (<-chan domain.AnswerEvent, error) {
			return eventStream(
				domain.AnswerEvent{Type: domain.EventFragment, Text: domain.InsufficientGroundingAnswer},
				domain.AnswerEvent{Type: domain.EventCitations, Citations: []domain.Citation{}},
				domain.AnswerEvent{Type: domain.EventDone},
			), nil
		},
	}
	v := newTestView(svc)

	v = drive(v, ask(v, "Who won the 1998 World Cup?"))

	assert.False(t, v.Grounded())
	assert.Equal(t, domain.InsufficientGroundingAnswer, v.Answer())
	assert.NotContains(t, v.View(), "Sources")
}

func TestView_ErrorEvent(t *testing.T) {
	svc := &MockQueryService{
		StreamFunc: func(context.Context, domain.Query) (<-chan domain.AnswerEvent, error) {
			return eventStream(
				domain.AnswerEvent{Type: domain.EventFragment, Text: "Partial"},
				domain.AnswerEvent{Type: domain.EventError, Error: "answer generation failed"},
			), nil
		},
	}
	v := newTestView(svc)

	v = drive(v, ask(v, "Explain osmosis"))

	require.Error(t, v.Err())
	assert.Equal(t, "answer generation failed", v.Err().Error())
	assert.False(t, v.Streaming())
	assert.Contains(t, v.View(), "Error: answer generation failed")
}

func TestView_StreamRejected(t *testing.T) {
	svc := &MockQueryService{
		StreamFunc: func(context.Context, domain.Query) (<-chan domain.AnswerEvent, error) {
			return nil, domain.ErrDocumentNotReady
		},
	}
	v := newTestView(svc)

	v = drive(v, ask(v, "Anything?"))

	assert.ErrorIs(t, v.Err(), domain.ErrDocumentNotReady)
	assert.False(t, v.Streaming())
}

func TestView_ChannelClosedWithoutDone(t *testing.T) {
	svc := &MockQueryService{
		StreamFunc: func(context.Context, domain.Query) (<-chan domain.AnswerEvent, error) {
			return eventStream(domain.AnswerEvent{Type: domain.EventFragment, Text: "Half"}), nil
		},
	}
	v := newTestView(svc)

	v = drive(v, ask(v, "Explain"))

	assert.False(t, v.Streaming())
	assert.Equal(t, "Half", v.Answer())
}

func TestView_EmptyQuestionIgnored(t *testing.T) {
	svc := &MockQueryService{
		StreamFunc: func(context.Context, domain.Query) (<-chan domain.AnswerEvent, error) {
			t.Fatal("stream must not be called")
			return nil, nil
		},
	}
	v := newTestView(svc)

	assert.Nil(t, ask(v, "   "))
	assert.False(t, v.Streaming())
}

func TestView_EscCancelsStream(t *testing.T) {
	var streamCtx context.Context
	pending := make(chan domain.AnswerEvent)
	svc := &MockQueryService{
		StreamFunc: func(ctx context.Context, _ domain.Query) (<-chan domain.AnswerEvent, error) {
			streamCtx = ctx
			return pending, nil
		},
	}
	v := newTestView(svc)

	cmd := ask(v, "Long question")
	started := cmd().(messages.AnswerStarted)
	v, _ = v.Update(started)
	require.True(t, v.Streaming())

	v, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd, "esc while streaming stays in the view")
	assert.False(t, v.Streaming())
	require.NotNil(t, streamCtx)
	assert.ErrorIs(t, streamCtx.Err(), context.Canceled)

	// Events of the abandoned question are dropped.
	v, _ = v.Update(messages.AnswerEvent{Seq: started.Seq, Event: domain.AnswerEvent{Type: domain.EventFragment, Text: "late"}})
	assert.Empty(t, v.Answer())
}

func TestView_EscWhenIdleGoesBack(t *testing.T) {
	v := newTestView(&MockQueryService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	assert.Equal(t, messages.ViewChanged{View: messages.ViewDocuments}, cmd())
}

func TestView_SetDocumentClearsConversation(t *testing.T) {
	svc := &MockQueryService{
		StreamFunc: func(context.Context, domain.Query) (<-chan domain.AnswerEvent, error) {
			return eventStream(
				domain.AnswerEvent{Type: domain.EventFragment, Text: "Answer"},
				domain.AnswerEvent{Type: domain.EventDone, Grounded: true},
			), nil
		},
	}
	v := newTestView(svc)
	v = drive(v, ask(v, "First"))
	require.NotEmpty(t, v.Answer())

	v.SetDocument(domain.Document{ID: "doc-2", Title: "Chemistry", Status: domain.StatusReady})

	assert.Empty(t, v.Answer())
	assert.Equal(t, "doc-2", v.Document().ID)
	assert.NotContains(t, v.View(), "First")
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "-", location(domain.Citation{}))
	assert.Equal(t, "p. 2", location(domain.Citation{Page: 2}))
	assert.Equal(t, "Intro", location(domain.Citation{Section: "Intro"}))
}
