package driven

import (
	"context"
	"io"
)

// BlobStore provides the raw bytes behind a storage locator.
type BlobStore interface {
	// Open returns a reader for the locator. The caller closes it.
	// Returns domain.ErrNotFound if nothing is stored there.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}
