package domain

import "time"

// JobStatus is the state of an ingestion job.
type JobStatus string

// Ingestion job states.
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobReady      JobStatus = "ready"
	JobFailed     JobStatus = "error"
)

// IsTerminal returns true once a job can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobReady || s == JobFailed
}

// IngestionStage names a step of the ingestion pipeline.
type IngestionStage string

// Pipeline stages, in execution order.
const (
	StageQueued     IngestionStage = "queued"
	StageExtracting IngestionStage = "extracting"
	StageChunking   IngestionStage = "chunking"
	StageEmbedding  IngestionStage = "embedding"
	StageDone       IngestionStage = "done"
)

// Progress milestones in percent.
const (
	ProgressExtracted     = 10
	ProgressChunked       = 20
	ProgressEmbeddingDone = 95
	ProgressComplete      = 100
)

// IngestionJob is the persisted progress record of one ingestion run.
type IngestionJob struct {
	// ID is the unique job identifier.
	ID string

	// DocumentID is the document being ingested.
	DocumentID string

	// OwnerID is the owner of the document.
	OwnerID string

	// Status is the job state.
	Status JobStatus

	// Stage is the pipeline step currently running.
	Stage IngestionStage

	// Progress is a percentage in [0,100].
	Progress int

	// ChunkCount is the number of chunks committed so far.
	ChunkCount int

	// EmbeddingCount is the number of embeddings committed so far.
	EmbeddingCount int

	// ErrorReason is set when Status is error.
	ErrorReason string

	// CreatedAt is when the job was admitted.
	CreatedAt time.Time

	// UpdatedAt is when the job record last changed.
	UpdatedAt time.Time
}

// IngestionTrigger asks the orchestrator to ingest a stored document.
type IngestionTrigger struct {
	DocumentID     string
	OwnerID        string
	StorageLocator string
	MIMEType       string
}

// IngestionHandle is returned immediately when a job is admitted.
type IngestionHandle struct {
	Status     string `json:"status"`
	DocumentID string `json:"documentId"`
	JobID      string `json:"jobId"`
}

// HandleStarted is the status of a freshly admitted job handle.
const HandleStarted = "started"

// IngestionStatus is the polling view of a document's ingestion.
type IngestionStatus struct {
	DocumentID      string         `json:"documentId"`
	JobID           string         `json:"jobId,omitempty"`
	Status          DocumentStatus `json:"status"`
	ProgressPercent int            `json:"progressPercent"`
	ChunkCount      int            `json:"chunkCount"`
	EmbeddingCount  int            `json:"embeddingCount"`
	ErrorReason     string         `json:"errorReason,omitempty"`
}
