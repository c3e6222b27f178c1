package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

func TestDocumentsCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range documentsCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "get", "rename", "delete"}, names)
}

func TestDocumentsList_Empty(t *testing.T) {
	setupTestApp(t)

	out, err := execute(t, "documents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents yet")
}

func TestDocumentsList_PrintsDocuments(t *testing.T) {
	ta := setupTestApp(t)
	ta.docs.documents = []domain.Document{
		{ID: "doc-1", Title: "Biology Notes", Status: domain.StatusReady, ChunkCount: 12},
		{ID: "doc-2", Title: "Lecture 3", Status: domain.StatusError},
	}

	out, err := execute(t, "docs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "Biology Notes")
	assert.Contains(t, out, "Chunks: 12")
	assert.Contains(t, out, "Total: 2 documents")
	assert.Equal(t, "alice", ta.docs.owner)
	assert.False(t, ta.withAI)
}

func TestDocumentsList_OwnerFlag(t *testing.T) {
	ta := setupTestApp(t)

	_, err := execute(t, "documents", "list", "--owner", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", ta.docs.owner)
}

func TestDocumentsGet(t *testing.T) {
	ta := setupTestApp(t)
	pages := 42
	ta.docs.document = &domain.Document{
		ID:             "doc-1",
		Title:          "Biology Notes",
		StorageLocator: "/notes/bio.pdf",
		MIMEType:       "application/pdf",
		Status:         domain.StatusError,
		PageCount:      &pages,
		ErrorReason:    "embedding failed",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	out, err := execute(t, "documents", "get", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Document: doc-1")
	assert.Contains(t, out, "Pages:    42")
	assert.Contains(t, out, "embedding failed")
	assert.Contains(t, out, "2026-01-02 03:04:05")
}

func TestDocumentsGet_NotFound(t *testing.T) {
	ta := setupTestApp(t)
	ta.docs.err = domain.ErrNotFound

	_, err := execute(t, "documents", "get", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentsGet_RequiresArg(t *testing.T) {
	setupTestApp(t)

	_, err := execute(t, "documents", "get")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestDocumentsRename(t *testing.T) {
	ta := setupTestApp(t)

	out, err := execute(t, "documents", "rename", "doc-1", "Chemistry")
	require.NoError(t, err)
	assert.Contains(t, out, `Renamed doc-1 to "Chemistry"`)
	assert.Equal(t, [2]string{"doc-1", "Chemistry"}, ta.docs.renamed)
}

func TestDocumentsDelete(t *testing.T) {
	ta := setupTestApp(t)

	out, err := execute(t, "documents", "delete", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted doc-1")
	assert.Equal(t, "doc-1", ta.docs.deleted)
}

func TestDocumentsDelete_InProgress(t *testing.T) {
	ta := setupTestApp(t)
	ta.docs.err = domain.ErrIngestionInProgress

	_, err := execute(t, "documents", "delete", "doc-1")
	assert.ErrorIs(t, err, domain.ErrIngestionInProgress)
}
