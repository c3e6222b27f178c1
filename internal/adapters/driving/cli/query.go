package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/logger"
)

var queryCmd = &cobra.Command{
	Use:   "query [doc-id] [question]",
	Short: "Ask a question about one document",
	Long: `Answers a question using only the given document and lists the passages
the answer was drawn from.

Examples:
  studyrag query 6f1c... "What is the difference between mitosis and meiosis?"
  studyrag query 6f1c... --stream "Summarise chapter 3"
  studyrag query 6f1c... --retrieve "photosynthesis"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

var (
	queryStream   bool
	queryJSON     bool
	queryRetrieve bool
)

func init() {
	queryCmd.Flags().BoolVarP(&queryStream, "stream", "s", false, "print the answer as it is generated")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the result as JSON")
	queryCmd.Flags().BoolVar(&queryRetrieve, "retrieve", false, "show matching passages without generating an answer")
	queryCmd.MarkFlagsMutuallyExclusive("stream", "json")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd, true)
	if err != nil {
		return err
	}
	if a.Query == nil {
		return errors.New("query service not configured")
	}

	q := domain.Query{
		DocumentID: args[0],
		OwnerID:    owner(),
		Question:   strings.Join(args[1:], " "),
	}

	switch {
	case queryRetrieve:
		return runRetrieve(cmd, a, q)
	case queryStream:
		return runQueryStream(cmd, a, q)
	}

	result, err := a.Query.Answer(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	st := newStyles(cmd.OutOrStdout())
	if !result.Grounded {
		cmd.Println(st.Warning.Render(result.Answer))
		return nil
	}
	cmd.Println(result.Answer)
	printCitations(cmd, st, result.Citations)
	logger.Debug("trace %s", result.TraceID)
	return nil
}

func runQueryStream(cmd *cobra.Command, a *App, q domain.Query) error {
	events, err := a.Query.Stream(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	var citations []domain.Citation
	for ev := range events {
		switch ev.Type {
		case domain.EventStatus:
			logger.Debug("%s", ev.Status)
		case domain.EventFragment:
			cmd.Print(ev.Text)
		case domain.EventCitations:
			citations = ev.Citations
		case domain.EventError:
			cmd.Println()
			if ev.Err != nil {
				return fmt.Errorf("query failed: %w", ev.Err)
			}
			return fmt.Errorf("query failed: %s", ev.Error)
		case domain.EventDone:
			cmd.Println()
			if ev.Grounded {
				printCitations(cmd, st, citations)
			}
			logger.Debug("trace %s", ev.TraceID)
			return nil
		}
	}
	// Closed without a terminal event: the context was cancelled.
	cmd.Println()
	return cmd.Context().Err()
}

func runRetrieve(cmd *cobra.Command, a *App, q domain.Query) error {
	candidates, err := a.Query.Retrieve(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	}

	if len(candidates) == 0 {
		cmd.Println("No matching passages.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for _, c := range candidates {
		cmd.Printf("%s %s  fused %.3f  lexical %.3f  vector %.3f\n",
			st.Label.Render(fmt.Sprintf("#%d", c.Rank)),
			location(c.Chunk.Page, c.Chunk.SectionLabel),
			c.FusedScore, c.LexicalScore, c.VectorScore)
		cmd.Println(st.Quote.Render(preview(c.Chunk.Content, 240)))
	}
	return nil
}

func printCitations(cmd *cobra.Command, st *styles, citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	cmd.Printf("\n%s\n", st.Title.Render("Sources"))
	for _, c := range citations {
		cmd.Printf("%s %s  %s\n",
			st.Label.Render(fmt.Sprintf("[%d]", c.Number)),
			location(c.Page, c.Section),
			st.Muted.Render(fmt.Sprintf("relevance %.2f", c.Relevance)))
		cmd.Println(st.Quote.Render(c.Snippet))
	}
}

func location(page int, section string) string {
	var parts []string
	if page > 0 {
		parts = append(parts, fmt.Sprintf("p. %d", page))
	}
	if section != "" {
		parts = append(parts, section)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
