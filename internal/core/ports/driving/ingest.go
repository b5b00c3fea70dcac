package driving

import (
	"context"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// IngestService builds the corpus: documents, chunks and vectors.
type IngestService interface {
	// Ingest normalises, chunks, stores and embeds one document.
	// A document without extractable text fails with *domain.IngestionError.
	Ingest(ctx context.Context, raw *domain.RawDocument) ([]domain.Chunk, error)

	// IngestAll ingests every document; one failure never aborts the rest.
	IngestAll(ctx context.Context, raws []domain.RawDocument) domain.IngestReport

	// Rebuild re-embeds every stored chunk with the configured embedder,
	// replacing the index. Returns the number of vectors written.
	Rebuild(ctx context.Context) (int, error)

	// Info describes the current index.
	Info(ctx context.Context) (*domain.IndexInfo, error)
}
