package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/studyrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

type mockDocumentService struct {
	mu        sync.Mutex
	documents []domain.Document
	document  *domain.Document
	err       error

	registered []driving.RegisterRequest
	owner      string
	renamed    [2]string
	deleted    string
}

func (m *mockDocumentService) Register(_ context.Context, req driving.RegisterRequest) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.registered = append(m.registered, req)
	return &domain.Document{
		ID:             "doc-new",
		OwnerID:        req.OwnerID,
		Title:          req.Title,
		StorageLocator: req.StorageLocator,
		MIMEType:       req.MIMEType,
		Status:         domain.StatusUploaded,
	}, nil
}

func (m *mockDocumentService) List(_ context.Context, ownerID string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner = ownerID
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, ownerID, _ string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner = ownerID
	return m.document, m.err
}

func (m *mockDocumentService) Rename(_ context.Context, _, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renamed = [2]string{id, title}
	return m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = id
	return m.err
}

// mockIngestionService replays statuses in order, repeating the last one.
type mockIngestionService struct {
	mu       sync.Mutex
	statuses []*domain.IngestionStatus
	err      error
	trigger  domain.IngestionTrigger
	polls    int
}

func (m *mockIngestionService) Ingest(_ context.Context, t domain.IngestionTrigger) (*domain.IngestionHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.trigger = t
	return &domain.IngestionHandle{Status: domain.HandleStarted, DocumentID: t.DocumentID, JobID: "job-1"}, nil
}

func (m *mockIngestionService) Status(_ context.Context, _, _ string) (*domain.IngestionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return nil, domain.ErrNotFound
	}
	i := m.polls
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	m.polls++
	return m.statuses[i], nil
}

type mockQueryService struct {
	result     *domain.AnswerResult
	events     []domain.AnswerEvent
	candidates []domain.RetrievalCandidate
	err        error
	last       domain.Query
}

func (m *mockQueryService) Answer(_ context.Context, q domain.Query) (*domain.AnswerResult, error) {
	m.last = q
	return m.result, m.err
}

func (m *mockQueryService) Stream(_ context.Context, q domain.Query) (<-chan domain.AnswerEvent, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan domain.AnswerEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (m *mockQueryService) Retrieve(_ context.Context, q domain.Query) ([]domain.RetrievalCandidate, error) {
	m.last = q
	return m.candidates, m.err
}

type testApp struct {
	app       *App
	docs      *mockDocumentService
	ingestion *mockIngestionService
	query     *mockQueryService
	workers   atomic.Int32
	withAI    bool
}

// setupTestApp installs mock services and a default config owned by alice.
func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{
		docs:      &mockDocumentService{},
		ingestion: &mockIngestionService{},
		query:     &mockQueryService{},
	}
	ta.app = &App{
		Documents: ta.docs,
		Ingestion: ta.ingestion,
		Query:     ta.query,
		Locator:   func(p string) (string, error) { return "/blobs/" + p, nil },
		RunWorkers: func(ctx context.Context) error {
			ta.workers.Add(1)
			<-ctx.Done()
			return ctx.Err()
		},
		LocalQueue: true,
	}

	c := file.DefaultConfig()
	c.Owner = "alice"
	cfg = c
	SetBuilder(func(_ context.Context, _ *file.Config, withAI bool) (*App, error) {
		ta.withAI = withAI
		return ta.app, nil
	})

	t.Cleanup(resetState)
	return ta
}

func resetState() {
	builder = nil
	cfg = nil
	app = nil
	appOnce = sync.Once{}
	appErr = nil
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	if cfg == nil {
		cfg = file.DefaultConfig()
		t.Cleanup(resetState)
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so runs don't leak.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
