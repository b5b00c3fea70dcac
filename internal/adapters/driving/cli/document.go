package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `List, inspect, read, or remove ingested regulation documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentDetailsCmd = &cobra.Command{
	Use:   "details [doc-id]",
	Short: "Show document metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDetails,
}

var documentPageCmd = &cobra.Command{
	Use:   "page [doc-id] [page]",
	Short: "Print the text of one page",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentPage,
}

var documentRemoveCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove a document from the corpus",
	Long:  `Deletes a document, its chunks and their vectors.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRemove,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentDetailsCmd)
	documentCmd.AddCommand(documentPageCmd)
	documentCmd.AddCommand(documentRemoveCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title: %s\n", docs[i].Title)
		cmd.Printf("    Pages: %d\n", len(docs[i].PageList()))
		if docs[i].SourceURL != "" {
			cmd.Printf("    URL: %s\n", docs[i].SourceURL)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentDetails(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	details, err := documentService.GetDetails(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document details: %w", err)
	}

	cmd.Printf("Document Details: %s\n\n", details.ID)
	cmd.Printf("  Title:       %s\n", details.Title)
	if details.SourceURL != "" {
		cmd.Printf("  URL:         %s\n", details.SourceURL)
	}
	if details.EffectiveDate != "" {
		cmd.Printf("  Effective:   %s\n", details.EffectiveDate)
	}
	if details.MIMEType != "" {
		cmd.Printf("  Type:        %s\n", details.MIMEType)
	}
	cmd.Printf("  Pages:       %d\n", details.Pages)
	cmd.Printf("  Chunks:      %d\n", details.Chunks)
	cmd.Printf("  Characters:  %d\n", details.Characters)
	if details.IngestedAt != "" {
		cmd.Printf("  Ingested:    %s\n", details.IngestedAt)
	}
	return nil
}

func runDocumentPage(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	page, err := strconv.Atoi(args[1])
	if err != nil || page < 1 {
		return fmt.Errorf("invalid page %q", args[1])
	}

	text, err := documentService.GetPage(cmd.Context(), args[0], page)
	if err != nil {
		return fmt.Errorf("failed to get page: %w", err)
	}

	cmd.Println(text)
	return nil
}

func runDocumentRemove(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Document %s removed.\n", args[0])
	return nil
}
