package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/snapstore/internal/codec"
	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/record"
)

// SaveCheckpoint stores doc under name.
//
// doc is canonicalized before hashing, so formatting differences do not
// produce new rows. Saving a document already stored under name returns
// the existing checkpoint unchanged.
func (s *Store) SaveCheckpoint(ctx context.Context, name string, doc []byte) (Checkpoint, error) {
	if name == "" {
		return Checkpoint{}, record.NewError(record.ErrCodeInvalidArgument, "store.SaveCheckpoint", "name is required")
	}
	canonical, err := codec.Canonicalize(doc)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("save checkpoint: %w", err)
	}
	parsed, err := codec.Parse(canonical)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("save checkpoint: %w", err)
	}
	hash := codec.Hash(canonical)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("save checkpoint: begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanCheckpoint(tx.QueryRowContext(ctx, `
		SELECT id, name, seq, content_hash, document, mutation_count, cursor
		FROM checkpoints
		WHERE name = ? AND content_hash = ?
	`, name, hash))
	switch {
	case err == nil:
		s.logger.Debug("checkpoint already stored", "name", name, "id", existing.ID, "hash", hash)
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return Checkpoint{}, fmt.Errorf("save checkpoint: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints`).Scan(&seq); err != nil {
		return Checkpoint{}, fmt.Errorf("save checkpoint: next seq: %w", err)
	}

	cp := Checkpoint{
		ID:            s.ids.Generate(),
		Name:          name,
		Seq:           seq,
		Hash:          hash,
		Document:      canonical,
		MutationCount: len(parsed.Log),
		Cursor:        parsed.Cursor,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints
		(id, name, seq, content_hash, document, mutation_count, cursor)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		cp.ID,
		cp.Name,
		cp.Seq,
		cp.Hash,
		string(cp.Document),
		cp.MutationCount,
		cp.Cursor,
	)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("save checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("save checkpoint: commit: %w", err)
	}

	s.logger.Info("checkpoint saved", "name", name, "id", cp.ID, "seq", cp.Seq, "mutations", cp.MutationCount)
	return cp, nil
}

// SaveHistory encodes h and stores it under name.
func (s *Store) SaveHistory(ctx context.Context, name string, h *history.History, types *codec.Types) (Checkpoint, error) {
	doc, err := codec.Encode(h, types)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("save history: %w", err)
	}
	return s.SaveCheckpoint(ctx, name, doc)
}

// DeleteCheckpoint removes the checkpoint with id.
// Returns false when no such checkpoint exists.
func (s *Store) DeleteCheckpoint(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	return n > 0, nil
}
