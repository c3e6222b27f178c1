package mcp

import (
	"context"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.AnswerResult
	err    error
	last   domain.Query
}

func (m *mockQueryService) Answer(_ context.Context, q domain.Query) (*domain.AnswerResult, error) {
	m.last = q
	return m.result, m.err
}

func (m *mockQueryService) Stream(_ context.Context, _ domain.Query) (<-chan domain.AnswerEvent, error) {
	return nil, m.err
}

func (m *mockQueryService) Retrieve(_ context.Context, _ domain.Query) ([]domain.RetrievalCandidate, error) {
	return nil, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	err       error
	owner     string
}

func (m *mockDocumentService) Register(_ context.Context, _ driving.RegisterRequest) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context, ownerID string) ([]domain.Document, error) {
	m.owner = ownerID
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, ownerID, _ string) (*domain.Document, error) {
	m.owner = ownerID
	return m.document, m.err
}

func (m *mockDocumentService) Rename(_ context.Context, _, _, _ string) error {
	return m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _, _ string) error {
	return m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	handle  *domain.IngestionHandle
	status  *domain.IngestionStatus
	err     error
	trigger domain.IngestionTrigger
}

func (m *mockIngestionService) Ingest(_ context.Context, t domain.IngestionTrigger) (*domain.IngestionHandle, error) {
	m.trigger = t
	return m.handle, m.err
}

func (m *mockIngestionService) Status(_ context.Context, _, _ string) (*domain.IngestionStatus, error) {
	return m.status, m.err
}

func newTestPorts() *Ports {
	return &Ports{
		Query:     &mockQueryService{},
		Document:  &mockDocumentService{},
		Ingestion: &mockIngestionService{},
		Owner:     "alice",
	}
}
