package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/studyrag/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the document, ingestion and query API over HTTP, with answer
streaming over WebSocket. Requests carry a bearer token whose subject is the
owner id; issue one with "studyrag token".

With the local queue, ingestion jobs run in this process. With the asynq queue
they run in "studyrag worker" unless --worker is given.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued ingestion jobs",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

var (
	serveAddr      string
	serveWorker    bool
	serveJSONLogs  bool
	workerJSONLogs bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().BoolVar(&serveWorker, "worker", false, "also process jobs from the asynq queue")
	serveCmd.Flags().BoolVar(&serveJSONLogs, "json-logs", false, "log as JSON")
	workerCmd.Flags().BoolVar(&workerJSONLogs, "json-logs", false, "log as JSON")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveJSONLogs {
		logger.SetFormat("json")
	}

	a, err := requireApp(cmd, true)
	if err != nil {
		return err
	}
	if a.Verifier == nil {
		return errors.New("server.jwt_secret must be set to serve the API")
	}
	if a.Query == nil {
		return errors.New("query service not configured")
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := httpapi.New(httpapi.Config{
		Addr:        addr,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, httpapi.Services{
		Documents: a.Documents,
		Ingestion: a.Ingestion,
		Query:     a.Query,
	}, a.Verifier)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	workerErr := make(chan error, 1)
	if (a.LocalQueue || serveWorker) && a.RunWorkers != nil {
		go func() {
			err := a.RunWorkers(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("workers stopped: %v", err)
				cancel()
			}
			workerErr <- err
		}()
	} else {
		workerErr <- nil
	}

	serveErr := srv.Run(ctx)
	cancel()
	if err := <-workerErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("workers: %w", err)
	}
	return serveErr
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if workerJSONLogs {
		logger.SetFormat("json")
	}

	a, err := requireApp(cmd, true)
	if err != nil {
		return err
	}
	if a.LocalQueue {
		return errors.New(`the local queue runs jobs inside "studyrag serve"; set queue.driver = "asynq" to run separate workers`)
	}
	if a.RunWorkers == nil {
		return errors.New("workers not configured")
	}

	logger.Info("worker started")
	if err := a.RunWorkers(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
