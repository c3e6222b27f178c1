package driving

import (
	"context"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// IngestionService starts and reports document ingestion.
type IngestionService interface {
	// Ingest admits a job and returns immediately with its handle.
	// Returns domain.ErrIngestionInProgress if the document already has an active job.
	Ingest(ctx context.Context, trigger domain.IngestionTrigger) (*domain.IngestionHandle, error)

	// Status returns the polling view of the document's ingestion.
	Status(ctx context.Context, ownerID, documentID string) (*domain.IngestionStatus, error)
}
