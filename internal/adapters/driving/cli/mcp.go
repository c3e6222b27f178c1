package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/studyrag/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can ask
questions about your documents.

By default, the server communicates over stdio using JSON-RPC. Use --port to
serve streamable HTTP instead, for MCP Inspector or remote clients.

Every call acts as the configured owner (or --owner).

Examples:
  # Stdio mode (default)
  studyrag mcp serve

  # HTTP mode
  studyrag mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "studyrag": {
        "command": "/path/to/studyrag",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	a, err := requireApp(cmd, true)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Query:     a.Query,
		Document:  a.Documents,
		Ingestion: a.Ingestion,
		Owner:     owner(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// ingest_document needs in-process workers with the local queue.
	if a.LocalQueue && a.RunWorkers != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := a.RunWorkers(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("workers stopped: %v", err)
			}
		}()
		defer func() { cancel(); <-done }()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	return server.Run(ctx)
}
