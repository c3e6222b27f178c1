// Command studyrag answers grounded questions about uploaded study documents.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetBuilder(build)
	if err := cli.Execute(ctx, version); err != nil {
		stop()
		os.Exit(1)
	}
}
