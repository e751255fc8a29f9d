package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/snapstore/internal/codec"
	"github.com/roach88/snapstore/internal/history"
)

// ErrNotFound is returned when no checkpoint matches a lookup.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is one stored document.
type Checkpoint struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Seq           int64  `json:"seq"`
	Hash          string `json:"content_hash"`
	Document      []byte `json:"-"`
	MutationCount int    `json:"mutation_count"`
	Cursor        int    `json:"cursor"`
}

// GetCheckpoint returns the checkpoint with id, or ErrNotFound.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (Checkpoint, error) {
	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, `
		SELECT id, name, seq, content_hash, document, mutation_count, cursor
		FROM checkpoints
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("get checkpoint %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get checkpoint %q: %w", id, err)
	}
	return cp, nil
}

// LatestCheckpoint returns the most recently saved checkpoint under name,
// or ErrNotFound.
func (s *Store) LatestCheckpoint(ctx context.Context, name string) (Checkpoint, error) {
	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, `
		SELECT id, name, seq, content_hash, document, mutation_count, cursor
		FROM checkpoints
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("latest checkpoint %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("latest checkpoint %q: %w", name, err)
	}
	return cp, nil
}

// ListCheckpoints returns checkpoints without their documents, oldest
// first. An empty name lists every checkpoint.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListCheckpoints(ctx context.Context, name string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, seq, content_hash, '', mutation_count, cursor
		FROM checkpoints
		WHERE ? = '' OR name = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, name, name)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	checkpoints := []Checkpoint{}
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cp.Document = nil
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

// LoadHistory decodes the checkpoint with id into a History.
func (s *Store) LoadHistory(ctx context.Context, id string, types *codec.Types, opts ...history.Option) (*history.History, error) {
	cp, err := s.GetCheckpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := codec.Decode(cp.Document, types, opts...)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %q: %w", id, err)
	}
	return h, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (Checkpoint, error) {
	var (
		cp  Checkpoint
		doc string
	)
	if err := row.Scan(&cp.ID, &cp.Name, &cp.Seq, &cp.Hash, &doc, &cp.MutationCount, &cp.Cursor); err != nil {
		return Checkpoint{}, err
	}
	cp.Document = []byte(doc)
	return cp, nil
}
