package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/regula/internal/core/domain"
)

var (
	retrieveLimit  int
	retrieveRerank bool
	retrieveJSON   bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Show the passages retrieved for a query",
	Long: `Runs retrieval only: embeds the query and returns the nearest regulation
passages with their scores, without calling any provider.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "n", 0, "maximum number of passages (default from settings)")
	retrieveCmd.Flags().BoolVar(&retrieveRerank, "rerank", false, "apply lexical re-ranking")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	chunks, err := retrievalService.Retrieve(cmd.Context(), args[0], retrieveLimit, retrieveRerank)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		data, err := json.MarshalIndent(chunks, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	return outputRetrieveTable(cmd, chunks)
}

func outputRetrieveTable(cmd *cobra.Command, chunks []domain.RetrievedChunk) error {
	if len(chunks) == 0 {
		cmd.Println("No passages found.")
		return nil
	}

	cmd.Println("Passages:")
	cmd.Println()
	for i := range chunks {
		// Format: [N] Title, página P (Score)
		cmd.Printf("  [%d] %s, %s (%.2f)\n", i+1, chunks[i].DocumentTitle, chunks[i].Locator, chunks[i].Score)
		if chunks[i].Section != "" {
			cmd.Printf("      %s\n", chunks[i].Section)
		}
		cmd.Printf("      %s\n", snippet(chunks[i].Text, 160))
		cmd.Println()
	}
	return nil
}

// snippet collapses whitespace and truncates to limit runes.
func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
