package tui

import "errors"

// ErrMissingDocumentService is returned when the document service is not provided.
var ErrMissingDocumentService = errors.New("tui: document service is required")

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("tui: query service is required")

// ErrMissingOwner is returned when no owner is configured.
var ErrMissingOwner = errors.New("tui: owner is required")
