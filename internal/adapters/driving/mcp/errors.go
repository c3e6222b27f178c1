// Package mcp provides an MCP (Model Context Protocol) server adapter for studyrag.
// It lets AI assistants ask grounded questions about a user's study documents.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// Errors returned by NewServer.
var (
	ErrMissingQueryService    = errors.New("mcp: query service is required")
	ErrMissingDocumentService = errors.New("mcp: document service is required")
	ErrMissingOwner           = errors.New("mcp: owner is required")
)

// toolError turns a core error into the message shown to the assistant.
// Typed failures keep their sentinel so callers can still match them.
func toolError(err error) error {
	switch {
	case errors.Is(err, domain.ErrDocumentNotReady):
		return fmt.Errorf("document is not ready yet, check ingestion_status: %w", err)
	case errors.Is(err, domain.ErrRetrievalTimeout):
		return fmt.Errorf("search timed out, try again: %w", err)
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("no such document: %w", err)
	case errors.Is(err, domain.ErrIngestionInProgress):
		return fmt.Errorf("document is already being ingested: %w", err)
	default:
		return err
	}
}
