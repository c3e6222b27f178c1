package driven

import (
	"context"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// Chunker splits sections into overlapping token-bounded chunks.
// Output ordinals start at 0 and are contiguous. Identical input yields identical output.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Chunk splits sections belonging to documentID.
	Chunk(ctx context.Context, documentID string, sections []domain.Section) ([]domain.Chunk, error)
}
