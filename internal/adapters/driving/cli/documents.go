package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

const timeFormat = "2006-01-02 15:04:05"

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage documents",
	Long:    `List, inspect, rename or delete your documents.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsGet,
}

var documentsRenameCmd = &cobra.Command{
	Use:   "rename [doc-id] [title]",
	Short: "Change a document's title",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsRename,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its index",
	Long:  `Removes the document, its chunks and embeddings. Refused while ingestion is running.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsGetCmd)
	documentsCmd.AddCommand(documentsRenameCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	a, err := requireApp(cmd, false)
	if err != nil {
		return err
	}

	docs, err := a.Documents.List(cmd.Context(), owner())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents yet. Add one with: studyrag ingest <file>")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for i := range docs {
		cmd.Printf("  %s  %s\n", st.Label.Render(docs[i].ID), docs[i].Title)
		cmd.Printf("    Status: %s  Chunks: %d\n", st.Status(docs[i].Status), docs[i].ChunkCount)
	}
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentsGet(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd, false)
	if err != nil {
		return err
	}

	doc, err := a.Documents.Get(cmd.Context(), owner(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	printDocument(cmd, doc)
	return nil
}

func printDocument(cmd *cobra.Command, doc *domain.Document) {
	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("%s\n\n", st.Title.Render("Document: "+doc.ID))
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Status:   %s\n", st.Status(doc.Status))
	cmd.Printf("  Type:     %s\n", doc.MIMEType)
	cmd.Printf("  Location: %s\n", doc.StorageLocator)
	if doc.PageCount != nil {
		cmd.Printf("  Pages:    %d\n", *doc.PageCount)
	}
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	if doc.ErrorReason != "" {
		cmd.Printf("  Error:    %s\n", st.Error.Render(doc.ErrorReason))
	}
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format(timeFormat))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format(timeFormat))
}

func runDocumentsRename(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd, false)
	if err != nil {
		return err
	}

	if err := a.Documents.Rename(cmd.Context(), owner(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to rename document: %w", err)
	}
	cmd.Printf("Renamed %s to %q\n", args[0], args[1])
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	a, err := requireApp(cmd, false)
	if err != nil {
		return err
	}

	if err := a.Documents.Delete(cmd.Context(), owner(), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}
