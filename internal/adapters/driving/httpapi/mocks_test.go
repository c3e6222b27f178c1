package httpapi

import (
	"context"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

// stubVerifier accepts exactly one token.
type stubVerifier struct {
	token string
	owner string
}

func (v *stubVerifier) Verify(_ context.Context, credential string) (string, error) {
	if credential != v.token {
		return "", domain.ErrUnauthorized
	}
	return v.owner, nil
}

type mockDocuments struct {
	docs     []domain.Document
	err      error
	owner    string
	renamed  string
	register driving.RegisterRequest
}

func (m *mockDocuments) Register(_ context.Context, req driving.RegisterRequest) (*domain.Document, error) {
	m.register = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Document{ID: "doc-new", OwnerID: req.OwnerID, Title: req.Title, Status: domain.StatusUploaded}, nil
}

func (m *mockDocuments) List(_ context.Context, ownerID string) ([]domain.Document, error) {
	m.owner = ownerID
	return m.docs, m.err
}

func (m *mockDocuments) Get(_ context.Context, ownerID, id string) (*domain.Document, error) {
	m.owner = ownerID
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].ID == id {
			d := m.docs[i]
			if m.renamed != "" {
				d.Title = m.renamed
			}
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocuments) Rename(_ context.Context, _, _, title string) error {
	m.renamed = title
	return m.err
}

func (m *mockDocuments) Delete(_ context.Context, _, _ string) error {
	return m.err
}

type mockIngestion struct {
	err     error
	trigger domain.IngestionTrigger
}

func (m *mockIngestion) Ingest(_ context.Context, t domain.IngestionTrigger) (*domain.IngestionHandle, error) {
	m.trigger = t
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestionHandle{Status: domain.HandleStarted, DocumentID: t.DocumentID, JobID: "job-1"}, nil
}

func (m *mockIngestion) Status(_ context.Context, _, documentID string) (*domain.IngestionStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestionStatus{DocumentID: documentID, Status: domain.StatusProcessing, ProgressPercent: 45}, nil
}

type mockQuery struct {
	result *domain.AnswerResult
	events []domain.AnswerEvent
	err    error
	last   domain.Query
}

func (m *mockQuery) Answer(_ context.Context, q domain.Query) (*domain.AnswerResult, error) {
	m.last = q
	return m.result, m.err
}

func (m *mockQuery) Stream(ctx context.Context, q domain.Query) (<-chan domain.AnswerEvent, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan domain.AnswerEvent)
	go func() {
		defer close(out)
		for _, ev := range m.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *mockQuery) Retrieve(_ context.Context, _ domain.Query) ([]domain.RetrievalCandidate, error) {
	return nil, m.err
}
