package driving

import (
	"context"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// RegisterRequest describes a stored file being registered as a document.
type RegisterRequest struct {
	OwnerID        string
	Title          string
	StorageLocator string
	MIMEType       string
}

// DocumentService manages documents on behalf of their owner.
type DocumentService interface {
	// Register creates a document in the uploaded state.
	Register(ctx context.Context, req RegisterRequest) (*domain.Document, error)

	// List returns the owner's documents.
	List(ctx context.Context, ownerID string) ([]domain.Document, error)

	// Get returns one document.
	Get(ctx context.Context, ownerID, id string) (*domain.Document, error)

	// Rename changes a document's title.
	Rename(ctx context.Context, ownerID, id, title string) error

	// Delete removes a document and everything derived from it.
	// Rejected with domain.ErrIngestionInProgress while processing.
	Delete(ctx context.Context, ownerID, id string) error
}
