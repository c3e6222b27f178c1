package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockBlobStore implements driven.BlobStore for testing.
type mockBlobStore struct {
	files map[string][]byte
}

func (m *mockBlobStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	data, ok := m.files[locator]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// mockEmbedder implements driven.EmbeddingService for testing.
// Vectors encode a few concepts so similarity is predictable.
type mockEmbedder struct {
	mu       sync.Mutex
	calls    int
	failWith func(texts []string) error
	block    bool
}

var concepts = [][]string{
	{"refund", "money", "returned", "reimburse"},
	{"attendance", "absent", "lecture"},
	{"exam", "grade", "assessment"},
}

func conceptVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(concepts)+1)
	for i, words := range concepts {
		for _, w := range words {
			if strings.Contains(lower, w) {
				v[i] = 1
			}
		}
	}
	v[len(concepts)] = 0.1
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	fail := m.failWith
	block := m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail != nil {
		if err := fail(texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = conceptVector(t)
	}
	return out, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbedder) Dimensions() int              { return len(concepts) + 1 }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockLock implements driven.IngestionLock for testing.
type mockLock struct {
	mu   sync.Mutex
	held map[string]string
	err  error
}

func newMockLock() *mockLock { return &mockLock{held: make(map[string]string)} }

func (m *mockLock) Acquire(_ context.Context, id, holder string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.held[id]; ok {
		return false, nil
	}
	m.held[id] = holder
	return true, nil
}

func (m *mockLock) Release(_ context.Context, id, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[id] == holder {
		delete(m.held, id)
	}
	return nil
}

func (m *mockLock) isHeld(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[id]
	return ok
}

func (m *mockLock) holder(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[id]
}

// mockQueue implements driven.JobQueue by collecting jobs.
type mockQueue struct {
	mu   sync.Mutex
	jobs []domain.IngestionJob
	err  error
	full bool
}

func (m *mockQueue) Enqueue(ctx context.Context, job domain.IngestionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", domain.ErrQueueFull, ctx.Err())
	}
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockQueue) Run(ctx context.Context, _ driven.JobHandler) error {
	<-ctx.Done()
	return nil
}

func (m *mockQueue) Close() error { return nil }

func (m *mockQueue) take() []domain.IngestionJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := m.jobs
	m.jobs = nil
	return jobs
}

// mockPrompts implements driven.PromptStore for testing.
type mockPrompts struct{}

func (mockPrompts) Load(name string) (string, error) {
	switch name {
	case driven.PromptAnswerSystem:
		return "Answer only from the excerpts. Otherwise reply: %s", nil
	case driven.PromptAnswerUser:
		return "Document: %s\n\n%s\n\nQuestion: %s", nil
	}
	return "", errors.New("unknown prompt")
}

func (mockPrompts) Reload() {}

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	mu        sync.Mutex
	calls     int
	answer    string
	fragments []string
	err       error
	lastMsgs  []driven.ChatMessage
	stream    *sliceStream
}

func (m *mockLLM) Complete(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMsgs = messages
	return m.answer, m.err
}

func (m *mockLLM) Stream(ctx context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (driven.TextStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastMsgs = messages
	if m.err != nil {
		return nil, m.err
	}
	m.stream = &sliceStream{ctx: ctx, fragments: m.fragments}
	return m.stream, nil
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

// sliceStream yields fixed fragments and fails once ctx is cancelled.
type sliceStream struct {
	mu        sync.Mutex
	ctx       context.Context
	fragments []string
	closed    bool
}

func (s *sliceStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("stream closed")
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if len(s.fragments) == 0 {
		return "", io.EOF
	}
	f := s.fragments[0]
	s.fragments = s.fragments[1:]
	return f, nil
}

func (s *sliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sliceStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mockFailer records jobs handed to FailStale.
type mockFailer struct {
	mu     sync.Mutex
	reaped []string
}

func (m *mockFailer) FailStale(_ context.Context, job domain.IngestionJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reaped = append(m.reaped, job.ID)
}
