package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// finalWriteTimeout bounds status writes made after the job context expired.
const finalWriteTimeout = 10 * time.Second

// errJobAbandoned stops a job whose record was failed while it ran.
var errJobAbandoned = errors.New("ingestion job was abandoned")

// enqueueWait bounds how long admission waits for a free queue slot.
const enqueueWait = 30 * time.Second

// IngestionDeps are the ports the orchestrator drives.
type IngestionDeps struct {
	Documents  driven.DocumentStore
	Chunks     driven.ChunkStore
	Jobs       driven.JobStore
	Blobs      driven.BlobStore
	Extractors driven.ExtractorRegistry
	Chunker    driven.Chunker
	Embedder   driven.EmbeddingService
	Lock       driven.IngestionLock
	Queue      driven.JobQueue
}

// IngestionService admits ingestion jobs and runs them through
// extraction, chunking and batched embedding.
//
// Admission is synchronous and cheap; Process runs on a queue worker.
type IngestionService struct {
	deps      IngestionDeps
	settings  domain.IngestionSettings
	embedding domain.EmbeddingSettings

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIngestionService creates the orchestrator. Zero settings fall back to defaults.
func NewIngestionService(deps IngestionDeps, settings domain.IngestionSettings, embedding domain.EmbeddingSettings) *IngestionService {
	def := domain.DefaultIngestionSettings()
	if settings.JobTimeout <= 0 {
		settings.JobTimeout = def.JobTimeout
	}
	if settings.MaxFileBytes <= 0 {
		settings.MaxFileBytes = def.MaxFileBytes
	}

	edef := domain.DefaultEmbeddingSettings()
	if embedding.BatchSize <= 0 {
		embedding.BatchSize = edef.BatchSize
	}
	if embedding.MaxRetries < 0 {
		embedding.MaxRetries = 0
	}
	if embedding.BackoffBase <= 0 {
		embedding.BackoffBase = edef.BackoffBase
	}
	if embedding.BatchTimeout <= 0 {
		embedding.BatchTimeout = edef.BatchTimeout
	}
	if embedding.Concurrency <= 0 {
		embedding.Concurrency = 1
	}

	return &IngestionService{
		deps:      deps,
		settings:  settings,
		embedding: embedding,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		sleep:     sleepCtx,
	}
}

// Ingest admits a job for the document and returns its handle immediately.
func (s *IngestionService) Ingest(ctx context.Context, trigger domain.IngestionTrigger) (*domain.IngestionHandle, error) {
	if trigger.OwnerID == "" {
		return nil, domain.ErrUnauthorized
	}
	if trigger.DocumentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	doc, err := s.deps.Documents.GetDocument(ctx, trigger.OwnerID, trigger.DocumentID)
	if err != nil {
		return nil, err
	}
	if trigger.StorageLocator != "" && trigger.StorageLocator != doc.StorageLocator {
		return nil, fmt.Errorf("%w: storage locator does not match document", domain.ErrInvalidInput)
	}
	if doc.Status == domain.StatusProcessing {
		return nil, domain.ErrIngestionInProgress
	}

	jobID := s.newID()
	acquired, err := s.deps.Lock.Acquire(ctx, doc.ID, jobID, s.settings.JobTimeout)
	if err != nil {
		return nil, fmt.Errorf("acquiring ingestion marker: %w", err)
	}
	if !acquired {
		return nil, domain.ErrIngestionInProgress
	}

	now := s.now()
	job := domain.IngestionJob{
		ID:         jobID,
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		Status:     domain.JobQueued,
		Stage:      domain.StageQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.admit(ctx, doc, &job); err != nil {
		s.release(ctx, &job)
		return nil, err
	}

	logger.Info("ingestion admitted: job=%s document=%s", job.ID, doc.ID)
	return &domain.IngestionHandle{
		Status:     domain.HandleStarted,
		DocumentID: doc.ID,
		JobID:      job.ID,
	}, nil
}

// admit records the job, flips the document to processing and enqueues.
// On enqueue failure the document and job are rolled back to a visible state.
func (s *IngestionService) admit(ctx context.Context, doc *domain.Document, job *domain.IngestionJob) error {
	if err := s.deps.Jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	if err := s.deps.Documents.UpdateStatus(ctx, doc.OwnerID, doc.ID, driven.StatusUpdate{
		Status:     domain.StatusProcessing,
		ChunkCount: -1,
	}); err != nil {
		return fmt.Errorf("marking document processing: %w", err)
	}

	qctx, cancel := context.WithTimeout(ctx, enqueueWait)
	defer cancel()
	if err := s.deps.Queue.Enqueue(qctx, *job); err != nil {
		cleanup := context.WithoutCancel(ctx)
		job.Status = domain.JobFailed
		job.ErrorReason = "could not queue ingestion"
		job.UpdatedAt = s.now()
		if serr := s.deps.Jobs.SaveJob(cleanup, job); serr != nil {
			logger.Warn("saving rejected job %s: %v", job.ID, serr)
		}
		if uerr := s.deps.Documents.UpdateStatus(cleanup, doc.OwnerID, doc.ID, driven.StatusUpdate{
			Status:      doc.Status,
			ErrorReason: doc.ErrorReason,
			ChunkCount:  -1,
		}); uerr != nil {
			logger.Warn("restoring document %s status: %v", doc.ID, uerr)
		}
		return fmt.Errorf("enqueue ingestion: %w", err)
	}
	return nil
}

// Status returns the polling view of the document's ingestion.
func (s *IngestionService) Status(ctx context.Context, ownerID, documentID string) (*domain.IngestionStatus, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	doc, err := s.deps.Documents.GetDocument(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	status := &domain.IngestionStatus{
		DocumentID:  doc.ID,
		Status:      doc.Status,
		ErrorReason: doc.ErrorReason,
	}

	chunks, embeddings, err := s.deps.Chunks.CountChunks(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	status.ChunkCount = chunks
	status.EmbeddingCount = embeddings

	job, err := s.deps.Jobs.LatestJob(ctx, ownerID, documentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		status.JobID = job.ID
		status.ProgressPercent = job.Progress
	}
	if doc.Status == domain.StatusReady {
		status.ProgressPercent = domain.ProgressComplete
	}
	return status, nil
}

// Process runs one admitted job to a terminal state. It is the queue handler.
// The returned error is informational: the terminal status is already recorded.
// A job that already reached a terminal state, for instance one the stale
// reaper failed while it waited in the queue, is skipped.
func (s *IngestionService) Process(ctx context.Context, job domain.IngestionJob) (err error) {
	current, err := s.deps.Jobs.GetJob(ctx, job.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("skipping job=%s document=%s: job record is gone", job.ID, job.DocumentID)
		return nil
	case err != nil:
		return fmt.Errorf("loading job %s: %w", job.ID, err)
	case current.Status.IsTerminal():
		logger.Warn("skipping job=%s document=%s: already %s", job.ID, job.DocumentID, current.Status)
		return nil
	}
	defer s.release(ctx, &job)

	ctx, cancel := context.WithTimeout(ctx, s.settings.JobTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "ingestion.process", trace.WithAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("document.id", job.DocumentID),
	))
	defer span.End()

	start := s.now()
	if err = s.run(ctx, &job); err != nil {
		if errors.Is(err, errJobAbandoned) {
			// The reaper already recorded the failure and a newer job may own the document.
			logger.Warn("job=%s document=%s was abandoned, stopping", job.ID, job.DocumentID)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, reasonFor(err))
		s.fail(ctx, &job, err)
		count(ctx, ingestionJobs, attribute.String("status", string(domain.JobFailed)))
		return err
	}
	count(ctx, ingestionJobs, attribute.String("status", string(domain.JobReady)))
	logger.Info("ingestion finished: job=%s document=%s chunks=%d duration=%s",
		job.ID, job.DocumentID, job.ChunkCount, s.now().Sub(start).Round(time.Millisecond))
	return nil
}

func (s *IngestionService) run(ctx context.Context, job *domain.IngestionJob) error {
	job.Status = domain.JobProcessing
	if err := s.advance(ctx, job, domain.StageExtracting, 0); err != nil {
		return err
	}

	doc, err := s.deps.Documents.GetDocument(ctx, job.OwnerID, job.DocumentID)
	if err != nil {
		return domain.NewJobError(domain.StageExtracting, "document no longer exists", err)
	}

	result, err := s.extract(ctx, doc)
	if err != nil {
		return err
	}
	logger.Debug("job %s: extracted %d sections with %s", job.ID, len(result.Sections), result.Strategy)
	if err := s.advance(ctx, job, domain.StageChunking, domain.ProgressExtracted); err != nil {
		return err
	}

	chunks, err := s.deps.Chunker.Chunk(ctx, doc.ID, result.Sections)
	if err != nil {
		return domain.NewJobError(domain.StageChunking, "chunking failed", err)
	}
	if len(chunks) == 0 {
		return domain.NewJobError(domain.StageChunking, "document contains no indexable text", domain.ErrCorruptFile)
	}

	// A new generation replaces whatever an earlier run committed.
	if err := s.deps.Chunks.DeleteChunks(ctx, doc.OwnerID, doc.ID); err != nil {
		return domain.NewJobError(domain.StageChunking, "clearing previous chunks failed", err)
	}
	job.ChunkCount = len(chunks)
	if err := s.advance(ctx, job, domain.StageEmbedding, domain.ProgressChunked); err != nil {
		return err
	}

	if err := s.embedAndStore(ctx, job, chunks); err != nil {
		return err
	}
	if err := s.checkAlive(ctx, job, domain.StageDone); err != nil {
		return err
	}

	if err := s.deps.Documents.UpdateStatus(ctx, doc.OwnerID, doc.ID, driven.StatusUpdate{
		Status:     domain.StatusReady,
		PageCount:  result.PageCount,
		ChunkCount: len(chunks),
	}); err != nil {
		return domain.NewJobError(domain.StageDone, "recording completion failed", err)
	}

	job.Status = domain.JobReady
	return s.advance(ctx, job, domain.StageDone, domain.ProgressComplete)
}

// extract reads the stored file and runs the extractor registry.
func (s *IngestionService) extract(ctx context.Context, doc *domain.Document) (*driven.ExtractResult, error) {
	rc, err := s.deps.Blobs.Open(ctx, doc.StorageLocator)
	if err != nil {
		return nil, domain.NewJobError(domain.StageExtracting, "stored file is unavailable", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.settings.MaxFileBytes+1))
	if err != nil {
		return nil, domain.NewJobError(domain.StageExtracting, "reading stored file failed", err)
	}
	if int64(len(data)) > s.settings.MaxFileBytes {
		return nil, domain.NewJobError(domain.StageExtracting, "file too large", domain.ErrUnsupportedFormat)
	}

	result, err := s.deps.Extractors.Extract(ctx, &driven.ExtractInput{
		Data:     data,
		MIMEType: doc.MIMEType,
		FileName: filepath.Base(doc.StorageLocator),
	})
	if err != nil {
		return nil, domain.NewJobError(domain.StageExtracting, extractionReason(err), err)
	}
	return result, nil
}

type embeddedBatch struct {
	vectors [][]float32
	err     error
}

// embedAndStore embeds batches concurrently up to the provider limit and
// commits them strictly in order. The first failure stops further batches;
// batches already committed stay in place.
func (s *IngestionService) embedAndStore(ctx context.Context, job *domain.IngestionJob, chunks []domain.Chunk) error {
	batches := splitBatches(chunks, s.embedding.BatchSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan embeddedBatch, len(batches))
	for i := range results {
		results[i] = make(chan embeddedBatch, 1)
	}

	sem := make(chan struct{}, s.embedding.Concurrency)
	go func() {
		for i, batch := range batches {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] <- embeddedBatch{err: ctx.Err()}
				continue
			}
			go func(i int, batch []domain.Chunk) {
				defer func() { <-sem }()
				vectors, err := s.embedBatch(ctx, job, i, batch)
				results[i] <- embeddedBatch{vectors: vectors, err: err}
			}(i, batch)
		}
	}()

	for i, batch := range batches {
		res := <-results[i]
		if res.err != nil {
			return domain.NewJobError(domain.StageEmbedding,
				fmt.Sprintf("embedding batch %d of %d failed", i+1, len(batches)), res.err)
		}

		if _, err := s.deps.Chunks.InsertBatch(ctx, job.OwnerID, job.DocumentID, driven.ChunkBatch{
			Chunks:  batch,
			Vectors: res.vectors,
		}); err != nil {
			return domain.NewJobError(domain.StageEmbedding,
				fmt.Sprintf("saving batch %d of %d failed", i+1, len(batches)), err)
		}

		job.EmbeddingCount += len(batch)
		progress := domain.ProgressChunked +
			(domain.ProgressEmbeddingDone-domain.ProgressChunked)*(i+1)/len(batches)
		if err := s.advance(ctx, job, domain.StageEmbedding, progress); err != nil {
			return err
		}
	}
	return nil
}

// embedBatch calls the embedder with a per-attempt timeout, retrying
// transient failures with exponential backoff.
func (s *IngestionService) embedBatch(ctx context.Context, job *domain.IngestionJob, index int, batch []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	for attempt := 0; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, s.embedding.BatchTimeout)
		vectors, err := s.deps.Embedder.EmbedBatch(actx, texts)
		cancel()

		if err == nil && len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbeddingService, len(vectors), len(texts))
		}
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= s.embedding.MaxRetries || !transientEmbeddingError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingService, err)
		}

		delay := s.embedding.BackoffBase << attempt
		logger.Warn("job %s: embedding batch %d attempt %d failed, retrying in %s: %v",
			job.ID, index+1, attempt+1, delay, err)
		count(ctx, embeddingRetries)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// advance persists the job's stage and progress. It returns errJobAbandoned
// once the stored record was failed behind the job's back.
func (s *IngestionService) advance(ctx context.Context, job *domain.IngestionJob, stage domain.IngestionStage, progress int) error {
	if err := s.checkAlive(ctx, job, stage); err != nil {
		return err
	}

	job.Stage = stage
	job.Progress = progress
	job.UpdatedAt = s.now()
	if err := s.deps.Jobs.SaveJob(ctx, job); err != nil {
		return domain.NewJobError(stage, "recording progress failed", err)
	}
	return nil
}

// fail records the terminal error state. Committed batches are left in place.
func (s *IngestionService) fail(ctx context.Context, job *domain.IngestionJob, cause error) {
	reason := reasonFor(cause)
	stage := job.Stage
	var jobErr *domain.JobError
	if errors.As(cause, &jobErr) && jobErr.Stage != "" {
		stage = jobErr.Stage
	}
	logger.Warn("ingestion failed: job=%s document=%s stage=%s: %v", job.ID, job.DocumentID, stage, cause)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	if err := s.deps.Documents.UpdateStatus(ctx, job.OwnerID, job.DocumentID, driven.StatusUpdate{
		Status:      domain.StatusError,
		ErrorReason: reason,
		ChunkCount:  job.EmbeddingCount,
	}); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error("recording failure for document %s: %v", job.DocumentID, err)
	}

	job.Status = domain.JobFailed
	job.Stage = stage
	job.ErrorReason = reason
	job.UpdatedAt = s.now()
	if err := s.deps.Jobs.SaveJob(ctx, job); err != nil {
		logger.Error("recording failure for job %s: %v", job.ID, err)
	}
}

// checkAlive returns errJobAbandoned when the stored job was failed or removed.
func (s *IngestionService) checkAlive(ctx context.Context, job *domain.IngestionJob, stage domain.IngestionStage) error {
	stored, err := s.deps.Jobs.GetJob(ctx, job.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errJobAbandoned
	case err != nil:
		return domain.NewJobError(stage, "recording progress failed", err)
	case stored.Status == domain.JobFailed:
		return errJobAbandoned
	}
	return nil
}

// FailStale moves a job that stopped making progress to the error state.
// If the job is still queued or running, its worker stops at the next step.
func (s *IngestionService) FailStale(ctx context.Context, job domain.IngestionJob) {
	s.fail(ctx, &job, domain.NewJobError(job.Stage, "ingestion stalled and was abandoned", nil))
	s.release(ctx, &job)
}

// release drops the document's in-flight marker if job still holds it.
func (s *IngestionService) release(ctx context.Context, job *domain.IngestionJob) {
	if err := s.deps.Lock.Release(context.WithoutCancel(ctx), job.DocumentID, job.ID); err != nil {
		logger.Warn("releasing ingestion marker for document %s: %v", job.DocumentID, err)
	}
}

// reasonFor turns an ingestion error into a short user-facing reason.
func reasonFor(err error) string {
	var jobErr *domain.JobError
	switch {
	case errors.As(err, &jobErr):
		return jobErr.Reason
	case errors.Is(err, context.DeadlineExceeded):
		return "ingestion timed out"
	case errors.Is(err, context.Canceled):
		return "ingestion cancelled"
	default:
		return "ingestion failed"
	}
}

func extractionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrExtractionTimeout):
		return "extraction timed out"
	case errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrCorruptFile):
		return err.Error()
	default:
		return "extraction failed"
	}
}

// transientEmbeddingError reports whether a retry could succeed.
func transientEmbeddingError(err error) bool {
	return !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrUnauthorized)
}

func splitBatches(chunks []domain.Chunk, size int) [][]domain.Chunk {
	var out [][]domain.Chunk
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		out = append(out, chunks[start:end])
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
