package domain

import "time"

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

// Document lifecycle states.
const (
	// StatusUploaded is the initial state after upload registration.
	StatusUploaded DocumentStatus = "uploaded"

	// StatusProcessing means an ingestion job is running.
	StatusProcessing DocumentStatus = "processing"

	// StatusReady means the document is fully indexed and queryable.
	StatusReady DocumentStatus = "ready"

	// StatusError means the last ingestion failed. Partial chunks may remain.
	StatusError DocumentStatus = "error"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusReady, StatusError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states an ingestion job ends in.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusError
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document is an uploaded file owned by a single owner.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// OwnerID is the verified identity that owns the document.
	OwnerID string

	// Title is the human-readable title.
	Title string

	// StorageLocator tells the blob store where the raw bytes live.
	StorageLocator string

	// MIMEType is the declared content type.
	MIMEType string

	// Status is the lifecycle state.
	Status DocumentStatus

	// PageCount is set after extraction when the format carries pages.
	PageCount *int

	// ChunkCount is the number of chunks committed by the last ingestion.
	ChunkCount int

	// ErrorReason is a short human-readable reason when Status is error.
	ErrorReason string

	// CreatedAt is when the document was registered.
	CreatedAt time.Time

	// UpdatedAt is when the document was last mutated.
	UpdatedAt time.Time
}

// IsReady reports whether the document can be queried.
func (d *Document) IsReady() bool {
	return d != nil && d.Status == StatusReady
}
