package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/regula/internal/core/domain"
	"github.com/custodia-labs/regula/internal/core/ports/driven"
)

// indexStore implements driven.IndexStore.
// The index is stored whole: SaveIndex replaces every vector.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

// SaveIndex replaces the persisted index with snap, keeping entry order.
func (s *indexStore) SaveIndex(ctx context.Context, snap domain.IndexSnapshot) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_vectors"); err != nil {
		return fmt.Errorf("clearing index vectors: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_meta (id, embedding_model, dimensions, saved_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding_model = excluded.embedding_model,
			dimensions = excluded.dimensions,
			saved_at = excluded.saved_at
	`, snap.Stamp.EmbeddingModel, snap.Stamp.Dimensions, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving index stamp: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO index_vectors (seq, chunk_id, vector) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, e := range snap.Entries {
		if len(e.Vector) != snap.Stamp.Dimensions {
			return fmt.Errorf("%w: vector for %s has %d dimensions, stamp says %d",
				domain.ErrInvalidInput, e.ChunkID, len(e.Vector), snap.Stamp.Dimensions)
		}
		if _, err := stmt.ExecContext(ctx, i, e.ChunkID, float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("saving vector %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// LoadIndex restores the persisted index, refusing one built with a
// different embedding function.
func (s *indexStore) LoadIndex(ctx context.Context, expected domain.IndexStamp) (domain.IndexSnapshot, error) {
	var stored domain.IndexStamp
	err := s.store.db.QueryRowContext(ctx,
		"SELECT embedding_model, dimensions FROM index_meta WHERE id = 1",
	).Scan(&stored.EmbeddingModel, &stored.Dimensions)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IndexSnapshot{Stamp: expected}, nil
	}
	if err != nil {
		return domain.IndexSnapshot{}, fmt.Errorf("reading index stamp: %w", err)
	}
	if stored != expected {
		return domain.IndexSnapshot{}, &domain.IndexVersionMismatchError{Stored: stored, Expected: expected}
	}

	rows, err := s.store.db.QueryContext(ctx, "SELECT chunk_id, vector FROM index_vectors ORDER BY seq")
	if err != nil {
		return domain.IndexSnapshot{}, fmt.Errorf("querying index vectors: %w", err)
	}
	defer rows.Close()

	snap := domain.IndexSnapshot{Stamp: stored}
	for rows.Next() {
		var e domain.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.ChunkID, &blob); err != nil {
			return domain.IndexSnapshot{}, fmt.Errorf("scanning index vector: %w", err)
		}
		e.Vector = bytesToFloat32Slice(blob)
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return domain.IndexSnapshot{}, fmt.Errorf("iterating index vectors: %w", err)
	}
	return snap, nil
}
