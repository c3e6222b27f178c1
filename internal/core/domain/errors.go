package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist
	// or is not visible to the requesting owner.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the owner identity could not be verified.
	ErrUnauthorized = errors.New("unauthorized")

	// Extraction Errors.

	// ErrUnsupportedFormat indicates no extraction strategy handles the MIME type.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptFile indicates the file could not be parsed or yielded no text.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrExtractionTimeout indicates extraction exceeded its deadline.
	ErrExtractionTimeout = errors.New("extraction timed out")

	// Ingestion Errors.

	// ErrEmbeddingService indicates the embedding provider failed after retries.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrPersistence indicates a batch could not be committed.
	ErrPersistence = errors.New("persistence error")

	// ErrIngestionInProgress indicates the document already has an active job.
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrQueueFull indicates the job queue cannot accept more work.
	ErrQueueFull = errors.New("ingestion queue full")

	// Query Errors.

	// ErrDocumentNotReady indicates the document has not finished ingestion.
	ErrDocumentNotReady = errors.New("document not ready")

	// ErrRetrievalTimeout indicates retrieval exceeded its deadline. Retryable.
	ErrRetrievalTimeout = errors.New("retrieval timed out")

	// ErrGenerationFailed indicates the generation model call failed.
	ErrGenerationFailed = errors.New("answer generation failed")

	// ErrLLMUnavailable indicates no generation model is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates no embedding model is configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// JobError is a terminal ingestion failure for one pipeline stage.
// Reason is short and safe to show to the document owner.
type JobError struct {
	Stage  IngestionStage
	Reason string
	Err    error
}

// NewJobError wraps err as a failure of stage.
func NewJobError(stage IngestionStage, reason string, err error) *JobError {
	return &JobError{Stage: stage, Reason: reason, Err: err}
}

func (e *JobError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a query-time error may succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetrievalTimeout) || errors.Is(err, ErrEmbeddingService)
}
