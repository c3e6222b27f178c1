package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse documents and ask questions interactively",
	Long: `Opens a terminal interface listing your documents. Select a ready
document to ask questions about it and watch answers stream in with their sources.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := requireApp(cmd, true)
	if err != nil {
		return err
	}
	if a.Query == nil {
		return errors.New("query service not configured: set llm.provider and an API key")
	}

	app, err := tui.NewApp(cmd.Context(), &tui.Ports{
		Document: a.Documents,
		Query:    a.Query,
		Owner:    owner(),
	})
	if err != nil {
		return err
	}
	return app.Run(cmd.Context())
}
