package driven

import "context"

// OwnerVerifier turns a bearer credential into a verified owner identity.
// The core never trusts a caller-supplied owner identity without it.
type OwnerVerifier interface {
	// Verify returns the owner ID, or domain.ErrUnauthorized.
	Verify(ctx context.Context, credential string) (string, error)
}
