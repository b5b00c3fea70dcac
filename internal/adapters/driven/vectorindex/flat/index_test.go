package flat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/regula/internal/core/domain"
)

var testStamp = domain.IndexStamp{EmbeddingModel: "hash-v1", Dimensions: 3}

func newIndex(t *testing.T, entries ...domain.IndexEntry) *Index {
	t.Helper()
	idx, err := New(testStamp)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), entries))
	return idx
}

func TestNew_RejectsZeroDimensions(t *testing.T) {
	_, err := New(domain.IndexStamp{EmbeddingModel: "m"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := newIndex(t)
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_InvalidK(t *testing.T) {
	idx := newIndex(t)
	_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	idx := newIndex(t)
	_, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = idx.Add(context.Background(), []domain.IndexEntry{{ChunkID: "a", Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearch_RanksByCosine(t *testing.T) {
	idx := newIndex(t,
		domain.IndexEntry{ChunkID: "x", Vector: []float32{10, 0, 0}},
		domain.IndexEntry{ChunkID: "y", Vector: []float32{0, 1, 0}},
		domain.IndexEntry{ChunkID: "xy", Vector: []float32{1, 1, 0}},
	)

	hits, err := idx.Search(context.Background(), []float32{2, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, []string{"x", "xy"}, hits.IDs())
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := newIndex(t,
		domain.IndexEntry{ChunkID: "c", Vector: []float32{1, 0, 0}},
		domain.IndexEntry{ChunkID: "a", Vector: []float32{1, 0, 0}},
		domain.IndexEntry{ChunkID: "b", Vector: []float32{1, 0, 0}},
	)
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, hits.IDs())
}

func TestAdd_ReplaceKeepsSlot(t *testing.T) {
	idx := newIndex(t,
		domain.IndexEntry{ChunkID: "a", Vector: []float32{1, 0, 0}},
		domain.IndexEntry{ChunkID: "b", Vector: []float32{1, 0, 0}},
	)
	require.NoError(t, idx.Add(context.Background(), []domain.IndexEntry{
		{ChunkID: "a", Vector: []float32{1, 0, 0}},
	}))

	assert.Equal(t, 2, idx.Len())
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, hits.IDs())
}

func TestDelete(t *testing.T) {
	idx := newIndex(t,
		domain.IndexEntry{ChunkID: "a", Vector: []float32{1, 0, 0}},
		domain.IndexEntry{ChunkID: "b", Vector: []float32{0, 1, 0}},
		domain.IndexEntry{ChunkID: "c", Vector: []float32{0, 0, 1}},
	)
	require.NoError(t, idx.Delete(context.Background(), []string{"b", "missing"}))
	assert.Equal(t, 2, idx.Len())

	snap := idx.Snapshot()
	assert.Equal(t, []string{"a", "c"}, []string{snap.Entries[0].ChunkID, snap.Entries[1].ChunkID})

	// Slots were compacted, so replacing c must not touch a.
	require.NoError(t, idx.Add(context.Background(), []domain.IndexEntry{{ChunkID: "c", Vector: []float32{0, 1, 0}}}))
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", hits[0].ChunkID)
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	idx := newIndex(t,
		domain.IndexEntry{ChunkID: "a", Vector: []float32{3, 4, 0}},
		domain.IndexEntry{ChunkID: "b", Vector: []float32{0, 0, 2}},
	)
	query := []float32{0.6, 0.8, 0.1}
	before, err := idx.Search(context.Background(), query, 2)
	require.NoError(t, err)

	restored, err := Restore(idx.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, testStamp, restored.Stamp())

	after, err := restored.Search(context.Background(), query, 2)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSnapshot_IsACopy(t *testing.T) {
	idx := newIndex(t, domain.IndexEntry{ChunkID: "a", Vector: []float32{1, 0, 0}})
	snap := idx.Snapshot()
	snap.Entries[0].Vector[0] = -1

	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestConcurrentSearchAndAdd(t *testing.T) {
	idx := newIndex(t)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = idx.Add(context.Background(), []domain.IndexEntry{
				{ChunkID: fmt.Sprintf("c%d", i), Vector: []float32{float32(i + 1), 1, 0}},
			})
		}()
		go func() {
			defer wg.Done()
			_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, idx.Len())
}
