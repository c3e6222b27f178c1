package mcp

import (
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	Query     driving.QueryService
	Document  driving.DocumentService
	Ingestion driving.IngestionService // Optional; disables ingest_document when nil.

	// Owner is the identity every call acts as. The MCP transport is local
	// to one user, so the owner comes from configuration.
	Owner string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	if p.Owner == "" {
		return ErrMissingOwner
	}
	return nil
}
