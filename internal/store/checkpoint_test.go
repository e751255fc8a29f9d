package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snapstore/internal/codec"
	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestStore opens a store in a temp dir with deterministic ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(NewFixedGenerator("cp-1", "cp-2", "cp-3", "cp-4")),
		WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTypes() *codec.Types {
	return codec.NewTypes().
		MustRegister("note", func() record.Entity { return &testutil.Note{} }).
		MustRegister("counter", func() record.Entity { return &testutil.Counter{} })
}

func encodeNotes(t *testing.T, titles ...string) []byte {
	t.Helper()
	h := history.New(history.WithLogger(quietLogger()))
	for _, title := range titles {
		require.NoError(t, h.Commit(testutil.NewNote(title)))
	}
	data, err := codec.Encode(h, testTypes())
	require.NoError(t, err)
	return data
}

func TestSaveCheckpoint_StoresDocument(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := encodeNotes(t, "a", "b")

	cp, err := s.SaveCheckpoint(ctx, "main", doc)
	require.NoError(t, err)
	assert.Equal(t, "cp-1", cp.ID)
	assert.Equal(t, int64(1), cp.Seq)
	assert.Equal(t, codec.Hash(doc), cp.Hash)
	assert.Equal(t, 2, cp.MutationCount)
	assert.Equal(t, 2, cp.Cursor)

	got, err := s.GetCheckpoint(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp, got)
}

func TestSaveCheckpoint_IdempotentPerName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := encodeNotes(t, "a")

	first, err := s.SaveCheckpoint(ctx, "main", doc)
	require.NoError(t, err)

	// Same content, different formatting.
	indented := append([]byte(" \n"), doc...)
	second, err := s.SaveCheckpoint(ctx, "main", indented)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := s.SaveCheckpoint(ctx, "branch", doc)
	require.NoError(t, err)
	assert.Equal(t, "cp-2", other.ID)
	assert.Equal(t, int64(2), other.Seq)

	all, err := s.ListCheckpoints(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSaveCheckpoint_RejectsInvalidInput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveCheckpoint(ctx, "", encodeNotes(t, "a"))
	assert.True(t, record.IsInvalidArgument(err))

	_, err = s.SaveCheckpoint(ctx, "main", []byte(`not json`))
	assert.Error(t, err)

	_, err = s.SaveCheckpoint(ctx, "main", []byte(`{"format":1,"surprise":true}`))
	assert.True(t, record.IsInvalidArgument(err))

	all, err := s.ListCheckpoints(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLatestCheckpoint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LatestCheckpoint(ctx, "main")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.SaveCheckpoint(ctx, "main", encodeNotes(t, "a"))
	require.NoError(t, err)
	_, err = s.SaveCheckpoint(ctx, "other", encodeNotes(t, "x"))
	require.NoError(t, err)
	_, err = s.SaveCheckpoint(ctx, "main", encodeNotes(t, "a", "b"))
	require.NoError(t, err)

	latest, err := s.LatestCheckpoint(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "cp-3", latest.ID)
	assert.Equal(t, 2, latest.MutationCount)
}

func TestListCheckpoints_OrderedAndFiltered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, name := range []string{"main", "other", "main"} {
		_, err := s.SaveCheckpoint(ctx, name, encodeNotes(t, fmt.Sprintf("note-%d", i)))
		require.NoError(t, err)
	}

	mains, err := s.ListCheckpoints(ctx, "main")
	require.NoError(t, err)
	require.Len(t, mains, 2)
	assert.Less(t, mains[0].Seq, mains[1].Seq)
	for _, cp := range mains {
		assert.Equal(t, "main", cp.Name)
		assert.Nil(t, cp.Document)
	}

	all, err := s.ListCheckpoints(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"main", "other", "main"}, []string{all[0].Name, all[1].Name, all[2].Name})
	assert.Less(t, all[0].Seq, all[1].Seq)
	assert.Less(t, all[1].Seq, all[2].Seq)

	none, err := s.ListCheckpoints(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestDeleteCheckpoint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	cp, err := s.SaveCheckpoint(ctx, "main", encodeNotes(t, "a"))
	require.NoError(t, err)

	deleted, err := s.DeleteCheckpoint(ctx, cp.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteCheckpoint(ctx, cp.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.GetCheckpoint(ctx, cp.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveHistory_LoadHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	types := testTypes()

	h := history.New(history.WithLogger(quietLogger()))
	n := testutil.NewNote("v1")
	require.NoError(t, h.Commit(n))
	n.Title = "v2"
	require.NoError(t, h.Commit(n))
	_, err := h.Undo()
	require.NoError(t, err)

	cp, err := s.SaveHistory(ctx, "main", h, types)
	require.NoError(t, err)
	assert.Equal(t, 1, cp.Cursor)

	loaded, err := s.LoadHistory(ctx, cp.ID, types, history.WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, h.Stats(), loaded.Stats())

	ok, err := loaded.Redo()
	require.NoError(t, err)
	assert.True(t, ok)
	rec, found := loaded.Registry().Get(n.ID())
	require.True(t, found)
	assert.Equal(t, "v2", rec.(*testutil.Note).Title)

	_, err = s.LoadHistory(ctx, "missing", types)
	assert.True(t, errors.Is(err, ErrNotFound))
}
