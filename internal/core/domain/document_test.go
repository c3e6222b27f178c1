package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentStatus_IsValid(t *testing.T) {
	for _, s := range []DocumentStatus{StatusUploaded, StatusProcessing, StatusReady, StatusError} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, DocumentStatus("deleted").IsValid())
}

func TestDocumentStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusUploaded.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusReady.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobProcessing.IsTerminal())
	assert.True(t, JobReady.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
	assert.Equal(t, string(StatusError), string(JobFailed))
}

func TestDocument_IsReady(t *testing.T) {
	var nilDoc *Document
	assert.False(t, nilDoc.IsReady())
	assert.False(t, (&Document{Status: StatusUploaded}).IsReady())
	assert.True(t, (&Document{Status: StatusReady}).IsReady())
}

func TestSection_Label(t *testing.T) {
	assert.Equal(t, "Refunds", Section{Title: "Refunds", Page: 3}.Label())
	assert.Equal(t, "Page 3", Section{Page: 3}.Label())
	assert.Equal(t, "Section 2", Section{Index: 1}.Label())
}

func TestJobError_UnwrapsCause(t *testing.T) {
	err := NewJobError(StageEmbedding, "embedding provider unavailable", fmt.Errorf("batch 2: %w", ErrEmbeddingService))

	assert.True(t, errors.Is(err, ErrEmbeddingService))
	assert.Contains(t, err.Error(), "embedding")

	var je *JobError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &je))
	assert.Equal(t, StageEmbedding, je.Stage)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("lexical: %w", ErrRetrievalTimeout)))
	assert.False(t, IsRetryable(ErrDocumentNotReady))
}

func TestDefaultRetrievalSettings_WeightsSumToOne(t *testing.T) {
	s := DefaultRetrievalSettings()
	assert.InDelta(t, 1.0, s.LexicalWeight+s.VectorWeight, 1e-9)
	assert.Equal(t, 20, s.LexicalK)
	assert.Equal(t, 20, s.VectorK)
}
