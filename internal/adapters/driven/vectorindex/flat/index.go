// Package flat provides an exact inner-product vector index held in memory.
//
// Vectors are L2-normalised on insert and the query is normalised on search,
// so the score is cosine similarity. The corpus sizes this index serves
// (a few thousand chunks) make a linear scan cheaper than maintaining a graph.
package flat

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a brute-force vector index.
// Search may run concurrently with other searches; writes are exclusive.
type Index struct {
	mu      sync.RWMutex
	stamp   domain.IndexStamp
	ids     []string
	vectors [][]float32
	slots   map[string]int
}

// New creates an empty index for the given embedding stamp.
func New(stamp domain.IndexStamp) (*Index, error) {
	if stamp.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: index dimensions must be positive", domain.ErrInvalidInput)
	}
	return &Index{
		stamp: stamp,
		slots: make(map[string]int),
	}, nil
}

// Restore rebuilds an index from a persisted snapshot, keeping entry order.
func Restore(snap domain.IndexSnapshot) (*Index, error) {
	idx, err := New(snap.Stamp)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(context.Background(), snap.Entries); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add inserts or replaces entries. A replaced entry keeps its slot.
func (idx *Index) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	normalised := make([][]float32, len(entries))
	for i, e := range entries {
		if e.ChunkID == "" {
			return fmt.Errorf("%w: empty chunk id", domain.ErrInvalidInput)
		}
		if len(e.Vector) != idx.stamp.Dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrInvalidInput, e.ChunkID, len(e.Vector), idx.stamp.Dimensions)
		}
		normalised[i] = normalise(e.Vector)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, e := range entries {
		if slot, ok := idx.slots[e.ChunkID]; ok {
			idx.vectors[slot] = normalised[i]
			continue
		}
		idx.slots[e.ChunkID] = len(idx.ids)
		idx.ids = append(idx.ids, e.ChunkID)
		idx.vectors = append(idx.vectors, normalised[i])
	}
	return nil
}

// Delete removes entries by chunk id, compacting the remaining slots in order.
func (idx *Index) Delete(ctx context.Context, chunkIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	drop := make(map[string]bool, len(chunkIDs))
	for _, id := range chunkIDs {
		if _, ok := idx.slots[id]; ok {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return nil
	}

	ids := idx.ids[:0]
	vectors := idx.vectors[:0]
	for i, id := range idx.ids {
		if drop[id] {
			delete(idx.slots, id)
			continue
		}
		idx.slots[id] = len(ids)
		ids = append(ids, id)
		vectors = append(vectors, idx.vectors[i])
	}
	clear(idx.ids[len(ids):])
	clear(idx.vectors[len(vectors):])
	idx.ids = ids
	idx.vectors = vectors
	return nil
}

// Search returns the k best entries by inner product.
// Equal scores keep insertion order.
func (idx *Index) Search(ctx context.Context, query []float32, k int) (domain.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	if len(query) != idx.stamp.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidInput, len(query), idx.stamp.Dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := normalise(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make(domain.RetrievalResult, len(idx.ids))
	for i, v := range idx.vectors {
		hits[i] = domain.ScoredChunk{ChunkID: idx.ids[i], Score: dot(q, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Stamp returns the embedding stamp the index was created with.
func (idx *Index) Stamp() domain.IndexStamp {
	return idx.stamp
}

// Snapshot copies the entries in insertion order.
func (idx *Index) Snapshot() domain.IndexSnapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]domain.IndexEntry, len(idx.ids))
	for i, id := range idx.ids {
		entries[i] = domain.IndexEntry{
			ChunkID: id,
			Vector:  append([]float32(nil), idx.vectors[i]...),
		}
	}
	return domain.IndexSnapshot{Stamp: idx.stamp, Entries: entries}
}

// normalise returns a unit-length copy of v. A zero vector stays zero.
func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
