package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/watcher"
	"github.com/custodia-labs/studyrag/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files dropped into a folder",
	Long: `Watches a folder and its subfolders. New files are registered and
ingested once they stop changing; rewritten files are ingested again.
Hidden files and folders are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchInclude []string
	watchExclude []string
	watchSettle  time.Duration
	watchScan    bool
)

func init() {
	watchCmd.Flags().StringSliceVar(&watchInclude, "include", nil, "glob patterns to ingest (default: supported formats)")
	watchCmd.Flags().StringSliceVar(&watchExclude, "exclude", nil, "glob patterns to skip")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", time.Second, "wait this long after the last change")
	watchCmd.Flags().BoolVar(&watchScan, "scan", true, "ingest files already in the folder")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd, true)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Config{
		Dir:          args[0],
		Owner:        owner(),
		Include:      watchInclude,
		Exclude:      watchExclude,
		Settle:       watchSettle,
		ScanExisting: watchScan,
	}, watcher.Deps{
		Documents: a.Documents,
		Ingestion: a.Ingestion,
		Locator:   a.Locator,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if a.LocalQueue && a.RunWorkers != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := a.RunWorkers(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("workers stopped: %v", err)
				cancel()
			}
		}()
		defer func() { cancel(); <-done }()
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
