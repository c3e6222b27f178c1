package driven

import (
	"context"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

// ExtractInput is a raw file handed to an extraction strategy.
type ExtractInput struct {
	// Data is the complete file content.
	Data []byte

	// MIMEType is the declared content type.
	MIMEType string

	// FileName is the base name of the storage locator, used for hints only.
	FileName string
}

// Extractor converts a raw file into ordered structural sections.
// Each extractor handles specific MIME types (e.g., PDF, Markdown).
type Extractor interface {
	// Name identifies the strategy in logs.
	Name() string

	// SupportedMIMETypes returns the MIME types this extractor handles.
	// The wildcard "*" marks a fallback strategy.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-aware extractors should return 50-89.
	// Fallback extractors should return 1-9.
	Priority() int

	// Extract returns sections in reading order.
	// Returns domain.ErrCorruptFile if the file cannot be parsed.
	Extract(ctx context.Context, in *ExtractInput) ([]domain.Section, error)
}

// ExtractResult is the output of the registry.
type ExtractResult struct {
	Sections []domain.Section

	// PageCount is nil when the format carries no pages.
	PageCount *int

	// Strategy is the name of the extractor that succeeded.
	Strategy string
}

// ExtractorRegistry tries extractors in priority order.
// The first strategy that returns non-empty text wins.
type ExtractorRegistry interface {
	// Extract runs the matching strategies in order.
	// Fails with domain.ErrUnsupportedFormat, domain.ErrCorruptFile
	// or domain.ErrExtractionTimeout.
	Extract(ctx context.Context, in *ExtractInput) (*ExtractResult, error)

	// Register adds an extractor to the registry.
	Register(extractor Extractor)

	// SupportedMIMETypes returns all MIME types that can be extracted.
	SupportedMIMETypes() []string
}
