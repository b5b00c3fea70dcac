package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory implementation of driven.IndexStore.
type IndexStore struct {
	mu    sync.Mutex
	snap  domain.IndexSnapshot
	saved bool
}

// NewIndexStore creates an empty in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{}
}

// SaveIndex keeps a copy of the snapshot.
func (s *IndexStore) SaveIndex(_ context.Context, snap domain.IndexSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = copySnapshot(snap)
	s.saved = true
	return nil
}

// LoadIndex returns the saved snapshot, or an empty one stamped with expected.
func (s *IndexStore) LoadIndex(_ context.Context, expected domain.IndexStamp) (domain.IndexSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return domain.IndexSnapshot{Stamp: expected}, nil
	}
	if s.snap.Stamp != expected {
		return domain.IndexSnapshot{}, &domain.IndexVersionMismatchError{Stored: s.snap.Stamp, Expected: expected}
	}
	return copySnapshot(s.snap), nil
}

func copySnapshot(snap domain.IndexSnapshot) domain.IndexSnapshot {
	out := domain.IndexSnapshot{Stamp: snap.Stamp, Entries: make([]domain.IndexEntry, len(snap.Entries))}
	for i, e := range snap.Entries {
		out.Entries[i] = domain.IndexEntry{ChunkID: e.ChunkID, Vector: append([]float32(nil), e.Vector...)}
	}
	return out
}
