package driving

import (
	"context"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// QueryService answers questions about a single ready document.
type QueryService interface {
	// Answer returns a complete answer with citations.
	// Returns domain.ErrDocumentNotReady or domain.ErrRetrievalTimeout as typed errors.
	// An insufficiently grounded question is a successful result with Grounded false.
	Answer(ctx context.Context, q domain.Query) (*domain.AnswerResult, error)

	// Stream returns events ending with exactly one done or error event.
	// Cancelling ctx stops generation and closes the channel.
	Stream(ctx context.Context, q domain.Query) (<-chan domain.AnswerEvent, error)

	// Retrieve runs hybrid retrieval only and returns the fused candidates.
	Retrieve(ctx context.Context, q domain.Query) ([]domain.RetrievalCandidate, error)
}
