package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/regula/internal/adapters/driven/config/file"
	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/normalisers"
)

var (
	ingestManifest string
	ingestTitle    string
	ingestURL      string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest regulation documents",
	Long: `Extracts text from regulation documents (PDF, HTML or plain text), splits
it into page-aware chunks, embeds them and stores everything locally.

Documents are listed in a sources.yaml manifest or passed as files. Ingesting
a document again replaces its previous version.

Examples:
  regula ingest --manifest corpus/sources.yaml
  regula ingest "Reglamento de Convivencia.pdf" --title "Reglamento de Convivencia"`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestManifest, "manifest", "", "sources.yaml listing the documents to ingest")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (single file only)")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "published URL of the document (single file only)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if ingestManifest == "" && len(args) == 0 {
		return errors.New("nothing to ingest: pass files or --manifest")
	}
	if (ingestTitle != "" || ingestURL != "") && len(args) != 1 {
		return errors.New("--title and --url need exactly one file")
	}

	raws, err := collectDocuments(ingestManifest, args)
	if err != nil {
		return err
	}

	cmd.Printf("Ingesting %d documents...\n", len(raws))
	report := ingestService.IngestAll(cmd.Context(), raws)

	for _, o := range report.Outcomes {
		if o.Err != nil {
			cmd.Printf("  ✗ %s: %v\n", o.DocumentID, o.Err)
			continue
		}
		cmd.Printf("  ✓ %s: %d chunks\n", o.DocumentID, o.Chunks)
	}

	ok := report.Succeeded()
	cmd.Printf("Ingested %d of %d documents.\n", ok, len(report.Outcomes))
	if failed := len(report.Outcomes) - ok; failed > 0 {
		return fmt.Errorf("%d documents failed to ingest", failed)
	}
	return nil
}

// collectDocuments reads the manifest entries followed by the loose files.
// Unreadable sources fail the command before anything is ingested.
func collectDocuments(manifestPath string, paths []string) ([]domain.RawDocument, error) {
	var raws []domain.RawDocument

	if manifestPath != "" {
		manifest, err := file.LoadSourceManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		for _, entry := range manifest.Documents {
			raw, err := manifest.ReadDocument(entry)
			if err != nil {
				return nil, err
			}
			raws = append(raws, withDefaults(raw))
		}
	}

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		raw := domain.RawDocument{
			DocID:     file.DocumentIDFromPath(path),
			Title:     ingestTitle,
			SourceURL: ingestURL,
			URI:       path,
			Content:   content,
		}
		if info, err := os.Stat(path); err == nil {
			raw.RetrievedAt = info.ModTime().UTC()
		}
		raws = append(raws, withDefaults(raw))
	}
	return raws, nil
}

// withDefaults fills the MIME type from the file extension and the title
// from the file name.
func withDefaults(raw domain.RawDocument) domain.RawDocument {
	if raw.MIMEType == "" {
		raw.MIMEType = normalisers.DetectMIMEType(raw.URI)
	}
	if raw.Title == "" {
		base := filepath.Base(raw.URI)
		raw.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return raw
}
