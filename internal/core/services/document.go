package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages documents on behalf of their owner.
type DocumentService struct {
	docStore driven.DocumentStore
	lock     driven.IngestionLock
	now      func() time.Time
}

// NewDocumentService creates a new document service.
// The lock is optional; when set, Delete also refuses documents whose
// ingestion marker is held.
func NewDocumentService(docStore driven.DocumentStore, lock driven.IngestionLock) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		lock:     lock,
		now:      time.Now,
	}
}

// Register creates a document in the uploaded state.
func (s *DocumentService) Register(ctx context.Context, req driving.RegisterRequest) (*domain.Document, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrUnauthorized)
	}
	locator := strings.TrimSpace(req.StorageLocator)
	if locator == "" {
		return nil, fmt.Errorf("%w: storage locator is required", domain.ErrInvalidInput)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = filepath.Base(locator)
	}

	now := s.now()
	doc := &domain.Document{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		Title:          title,
		StorageLocator: locator,
		MIMEType:       req.MIMEType,
		Status:         domain.StatusUploaded,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.docStore.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("register document: %w", err)
	}
	logger.Debug("registered document %s", doc.ID)
	return doc, nil
}

// List returns the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.docStore.ListDocuments(ctx, ownerID)
}

// Get retrieves one document.
func (s *DocumentService) Get(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.docStore.GetDocument(ctx, ownerID, id)
}

// Rename changes a document's title.
func (s *DocumentService) Rename(ctx context.Context, ownerID, id, title string) error {
	if ownerID == "" {
		return domain.ErrUnauthorized
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	return s.docStore.RenameDocument(ctx, ownerID, id, title)
}

// Delete removes a document and, by cascade, its chunks, embeddings and jobs.
func (s *DocumentService) Delete(ctx context.Context, ownerID, id string) error {
	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if doc.Status == domain.StatusProcessing {
		return domain.ErrIngestionInProgress
	}

	if s.lock != nil {
		holder := "delete-" + uuid.NewString()
		ok, err := s.lock.Acquire(ctx, id, holder, time.Minute)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		if !ok {
			return domain.ErrIngestionInProgress
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), id, holder); err != nil {
				logger.Warn("releasing lock for document %s: %v", id, err)
			}
		}()
	}

	if err := s.docStore.DeleteDocument(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("deleted document %s", id)
	return nil
}
