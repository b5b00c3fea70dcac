package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and rebuild the vector index",
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the index stamp and size",
	RunE:  runIndexInfo,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed every stored chunk",
	Long: `Re-embeds every stored chunk with the configured embedding provider and
replaces the index. Required after changing the embedding model, since an
index is only ever queried with the function that built it.`,
	Annotations: map[string]string{annotationFreshIndex: "true"},
	RunE:        runIndexRebuild,
}

func init() {
	indexCmd.AddCommand(indexInfoCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexInfo(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	info, err := ingestService.Info(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	cmd.Println("Index")
	cmd.Println("=====")
	cmd.Printf("  Embedding model: %s\n", info.Stamp.EmbeddingModel)
	cmd.Printf("  Dimensions:      %d\n", info.Stamp.Dimensions)
	cmd.Printf("  Vectors:         %d\n", info.Vectors)
	cmd.Printf("  Documents:       %d\n", info.Documents)
	return nil
}

func runIndexRebuild(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	cmd.Println("Rebuilding index...")
	n, err := ingestService.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	cmd.Printf("Index rebuilt: %d vectors.\n", n)
	return nil
}
