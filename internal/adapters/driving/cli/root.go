// Package cli provides the studyrag command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
	"github.com/custodia-labs/studyrag/internal/core/ports/driving"
	"github.com/custodia-labs/studyrag/internal/logger"
)

// version is set at build time.
var version = "dev"

// App holds the services a command runs against.
type App struct {
	Documents driving.DocumentService
	Ingestion driving.IngestionService

	// Query is nil when built without AI services.
	Query driving.QueryService

	// Verifier checks API tokens; nil when no JWT secret is configured.
	Verifier driven.OwnerVerifier

	// Locator maps a local file path to a storage locator.
	Locator func(path string) (string, error)

	// RunWorkers processes queued ingestion jobs and reaps stale ones
	// until ctx is cancelled.
	RunWorkers func(ctx context.Context) error

	// LocalQueue is true when jobs run in this process.
	LocalQueue bool

	Warnings []string
	Close    func() error
}

// Builder creates the App from configuration. withAI is false for commands
// that only read or manage documents, so they work without API keys.
type Builder func(ctx context.Context, cfg *file.Config, withAI bool) (*App, error)

var (
	builder Builder

	cfg     *file.Config
	app     *App
	appOnce sync.Once
	appErr  error
)

// Global flags.
var (
	verbose    bool
	configPath string
	ownerFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "studyrag",
	Short: "Ask grounded questions about your study documents",
	Long: `studyrag ingests PDFs, Word, Markdown, HTML and spreadsheet files and
answers questions about one document at a time, citing the passages it used.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.studyrag/config.toml)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "owner id for local commands (default: config owner)")
}

// SetBuilder installs the function that wires services.
func SetBuilder(b Builder) {
	builder = b
}

// Execute runs the root command.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	defer closeApp()
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := file.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = c
	return nil
}

// requireApp builds the App once per process.
func requireApp(cmd *cobra.Command, withAI bool) (*App, error) {
	appOnce.Do(func() {
		if builder == nil {
			appErr = errors.New("services not configured")
			return
		}
		app, appErr = builder(cmd.Context(), cfg, withAI)
		if appErr == nil {
			for _, w := range app.Warnings {
				logger.Warn("%s", w)
			}
		}
	})
	return app, appErr
}

func closeApp() {
	if app != nil && app.Close != nil {
		if err := app.Close(); err != nil {
			logger.Warn("closing: %v", err)
		}
	}
}

// owner returns the --owner flag or the configured owner.
func owner() string {
	if ownerFlag != "" {
		return ownerFlag
	}
	if cfg != nil {
		return cfg.Owner
	}
	return ""
}
