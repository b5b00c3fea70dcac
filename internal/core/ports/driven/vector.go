package driven

import (
	"context"

	"github.com/custodia-labs/regula/internal/core/domain"
)

// VectorIndex stores chunk embeddings and answers nearest-neighbour queries.
//
// The index owns only vectors and chunk ids. Implementations must allow
// concurrent Search calls alongside a single writer.
type VectorIndex interface {
	// Add inserts or replaces entries. A replaced entry keeps its insertion slot.
	Add(ctx context.Context, entries []domain.IndexEntry) error

	// Delete removes entries by chunk id. Unknown ids are ignored.
	Delete(ctx context.Context, chunkIDs []string) error

	// Search returns up to k hits in descending score order, ties in insertion order.
	// k must be at least 1. An empty index yields an empty result.
	Search(ctx context.Context, query []float32, k int) (domain.RetrievalResult, error)

	// Len returns the number of entries.
	Len() int

	// Stamp identifies the embedding function the index holds vectors for.
	Stamp() domain.IndexStamp

	// Snapshot returns a copy of the entries in insertion order.
	Snapshot() domain.IndexSnapshot
}

// IndexStore persists vector index snapshots.
type IndexStore interface {
	// SaveIndex replaces the persisted index with the snapshot.
	SaveIndex(ctx context.Context, snap domain.IndexSnapshot) error

	// LoadIndex restores the persisted index.
	// A missing index loads as an empty snapshot stamped with expected.
	// A stamp that differs from expected yields *domain.IndexVersionMismatchError.
	LoadIndex(ctx context.Context, expected domain.IndexStamp) (domain.IndexSnapshot, error)
}
