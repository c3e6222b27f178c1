package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/extractors"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// pollInterval is how often ingest polls job status.
var pollInterval = 250 * time.Millisecond

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Add a file and index it",
	Long: `Registers a file as a document and runs ingestion: text extraction,
chunking and embedding. Ingesting a file that is already registered indexes it
again from scratch.

With the local queue the command waits for ingestion to finish. With the asynq
queue, --detach returns as soon as the job is queued.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show ingestion progress for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var (
	ingestTitle  string
	ingestMIME   string
	ingestDetach bool
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "document title (default: file name)")
	ingestCmd.Flags().StringVar(&ingestMIME, "mime-type", "", "content type (default: detected)")
	ingestCmd.Flags().BoolVar(&ingestDetach, "detach", false, "return once the job is queued")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd, true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory; use studyrag watch for folders", path)
	}

	locator, err := a.Locator(path)
	if err != nil {
		return fmt.Errorf("locating %s: %w", path, err)
	}

	doc, err := findOrRegister(ctx, a.Documents, path, locator)
	if err != nil {
		return err
	}

	var workersDone chan error
	if a.LocalQueue && a.RunWorkers != nil {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		workersDone = make(chan error, 1)
		go func() { workersDone <- a.RunWorkers(wctx) }()
		defer func() {
			cancel()
			if err := <-workersDone; err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("stopping workers: %v", err)
			}
		}()
	}

	handle, err := a.Ingestion.Ingest(ctx, domain.IngestionTrigger{
		DocumentID:     doc.ID,
		OwnerID:        doc.OwnerID,
		StorageLocator: doc.StorageLocator,
		MIMEType:       doc.MIMEType,
	})
	if err != nil {
		return fmt.Errorf("failed to start ingestion: %w", err)
	}
	logger.Debug("job %s admitted for %s", handle.JobID, handle.DocumentID)

	if ingestDetach && !a.LocalQueue {
		cmd.Printf("Queued %s (job %s)\n", doc.ID, handle.JobID)
		cmd.Printf("Check progress with: studyrag status %s\n", doc.ID)
		return nil
	}

	st, err := waitForIngestion(ctx, a.Ingestion, doc, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if st.Status == domain.StatusError {
		return fmt.Errorf("ingestion failed: %s", st.ErrorReason)
	}

	styled := newStyles(cmd.OutOrStdout())
	cmd.Printf("%s %s (%d chunks)\n", styled.Success.Render("Ready:"), doc.ID, st.ChunkCount)
	cmd.Printf("Ask a question with: studyrag query %s \"...\"\n", doc.ID)
	return nil
}

// findOrRegister reuses the document already registered for locator.
func findOrRegister(ctx context.Context, docs driving.DocumentService, path, locator string) (*domain.Document, error) {
	existing, err := docs.List(ctx, owner())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	for i := range existing {
		if existing[i].StorageLocator == locator {
			return &existing[i], nil
		}
	}

	title := ingestTitle
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	mimeType := ingestMIME
	if mimeType == "" {
		head, err := readHead(path)
		if err != nil {
			return nil, err
		}
		mimeType = extractors.DetectMIMEType("", path, head)
	}

	doc, err := docs.Register(ctx, driving.RegisterRequest{
		OwnerID:        owner(),
		Title:          title,
		StorageLocator: locator,
		MIMEType:       mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}
	return doc, nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// waitForIngestion polls until the document reaches ready or error.
func waitForIngestion(ctx context.Context, svc driving.IngestionService, doc *domain.Document, w io.Writer) (*domain.IngestionStatus, error) {
	rep := newReporter(w, doc.Title)
	defer rep.Finish()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		st, err := svc.Status(ctx, doc.OwnerID, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get status: %w", err)
		}
		rep.Update(st)
		if st.Status.IsTerminal() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd, false)
	if err != nil {
		return err
	}

	st, err := a.Ingestion.Status(cmd.Context(), owner(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	styled := newStyles(cmd.OutOrStdout())
	cmd.Printf("Document:   %s\n", st.DocumentID)
	if st.JobID != "" {
		cmd.Printf("Job:        %s\n", st.JobID)
	}
	cmd.Printf("Status:     %s\n", styled.Status(st.Status))
	cmd.Printf("Progress:   %d%%\n", st.ProgressPercent)
	cmd.Printf("Chunks:     %d\n", st.ChunkCount)
	cmd.Printf("Embeddings: %d\n", st.EmbeddingCount)
	if st.ErrorReason != "" {
		cmd.Printf("Error:      %s\n", styled.Error.Render(st.ErrorReason))
	}
	return nil
}
