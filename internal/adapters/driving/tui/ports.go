// Package tui provides an interactive terminal interface for browsing
// documents and asking questions about them.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI needs.
type Ports struct {
	// Document lists and deletes the owner's documents.
	Document driving.DocumentService

	// Query streams answers.
	Query driving.QueryService

	// Owner is the identity every request is made for.
	Owner string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Owner == "" {
		return ErrMissingOwner
	}
	return nil
}
