package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

type fakeDocuments struct {
	mu         sync.Mutex
	registered []driving.RegisterRequest
	existing   []domain.Document
}

func (f *fakeDocuments) Register(_ context.Context, req driving.RegisterRequest) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	return &domain.Document{ID: fmt.Sprintf("doc-%d", len(f.registered)), StorageLocator: req.StorageLocator}, nil
}

func (f *fakeDocuments) List(context.Context, string) ([]domain.Document, error) {
	return f.existing, nil
}

func (f *fakeDocuments) Get(context.Context, string, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeDocuments) Rename(context.Context, string, string, string) error { return nil }
func (f *fakeDocuments) Delete(context.Context, string, string) error         { return nil }

func (f *fakeDocuments) registrations() []driving.RegisterRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driving.RegisterRequest(nil), f.registered...)
}

type fakeIngestion struct {
	mu       sync.Mutex
	triggers []domain.IngestionTrigger
	err      error
}

func (f *fakeIngestion) Ingest(_ context.Context, t domain.IngestionTrigger) (*domain.IngestionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, t)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IngestionHandle{Status: domain.HandleStarted, DocumentID: t.DocumentID, JobID: "job"}, nil
}

func (f *fakeIngestion) Status(context.Context, string, string) (*domain.IngestionStatus, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeIngestion) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

func newTestWatcher(t *testing.T, cfg Config) (*Watcher, *fakeDocuments, *fakeIngestion) {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	cfg.Owner = "alice"
	if cfg.Settle == 0 {
		cfg.Settle = 20 * time.Millisecond
	}
	docs, ingest := &fakeDocuments{}, &fakeIngestion{}
	w, err := New(cfg, Deps{Documents: docs, Ingestion: ingest})
	require.NoError(t, err)
	return w, docs, ingest
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Owner: "alice"}, Deps{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(Config{Dir: t.TempDir()}, Deps{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(Config{Dir: t.TempDir(), Owner: "alice", Include: []string{"[unclosed"}}, Deps{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMatches(t *testing.T) {
	w, _, _ := newTestWatcher(t, Config{Exclude: []string{"drafts/**"}})

	tests := []struct {
		rel  string
		want bool
	}{
		{"syllabus.pdf", true},
		{"week1/notes.md", true},
		{"deep/er/sheet.xlsx", true},
		{"image.png", false},
		{".hidden.pdf", false},
		{".git/notes.md", false},
		{"drafts/essay.docx", false},
		{"notes.md.swp", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Matches(tt.rel))
		})
	}
}

func TestIngest_RegistersOnceThenReingests(t *testing.T) {
	w, docs, ingest := newTestWatcher(t, Config{})
	path := filepath.Join(w.cfg.Dir, "Week 1 Notes.md")

	require.NoError(t, w.ingest(context.Background(), path))
	require.NoError(t, w.ingest(context.Background(), path))

	regs := docs.registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "Week 1 Notes", regs[0].Title)
	assert.Equal(t, "text/markdown", regs[0].MIMEType)
	assert.Equal(t, "alice", regs[0].OwnerID)
	assert.Equal(t, path, regs[0].StorageLocator)
	assert.Equal(t, 2, ingest.count())
}

func TestIngest_InProgressIsSkipped(t *testing.T) {
	w, _, ingest := newTestWatcher(t, Config{})
	ingest.err = domain.ErrIngestionInProgress
	assert.NoError(t, w.ingest(context.Background(), filepath.Join(w.cfg.Dir, "a.txt")))
}

func TestRun_IngestsDroppedFiles(t *testing.T) {
	w, docs, ingest := newTestWatcher(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(w.cfg.Dir, "lecture.md"), []byte("# Intro\ntext"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(w.cfg.Dir, "photo.png"), []byte{0x89}, 0o644))

	assert.Eventually(t, func() bool { return ingest.count() == 1 }, 3*time.Second, 20*time.Millisecond)
	regs := docs.registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "lecture", regs[0].Title)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_ScanExistingSkipsKnown(t *testing.T) {
	dir := t.TempDir()
	known := filepath.Join(dir, "known.pdf")
	require.NoError(t, os.WriteFile(known, []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("hello"), 0o644))

	w, docs, ingest := newTestWatcher(t, Config{Dir: dir, ScanExisting: true})
	docs.existing = []domain.Document{{ID: "doc-known", StorageLocator: known}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx) //nolint:errcheck

	assert.Eventually(t, func() bool { return ingest.count() == 1 }, 3*time.Second, 20*time.Millisecond)
	regs := docs.registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, "new", regs[0].Title)
}
