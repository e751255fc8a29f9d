package codec

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/testutil"
)

func testTypes() *Types {
	return NewTypes().
		MustRegister("note", func() record.Entity { return &testutil.Note{} }).
		MustRegister("counter", func() record.Entity { return &testutil.Counter{} })
}

func quiet() history.Option {
	return history.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// buildHistory exercises every record kind: live and out-of-scope
// entities, snapshots, chains, groups and a Deregister.
func buildHistory(t *testing.T) (*history.History, *testutil.Note, *testutil.Counter) {
	t.Helper()
	h := history.New(quiet(), history.WithMaxMutations(20))
	a := testutil.NewNote("draft")
	a.Tags = []string{"x", "<y>"}
	c := testutil.NewCounter("hits", 1)

	require.NoError(t, h.Commit(a))
	require.NoError(t, h.BeginGroup())
	a.Title = "final"
	require.NoError(t, h.Commit(a))
	c.Value = 2
	require.NoError(t, h.Commit(c))
	require.NoError(t, h.EndGroup())
	gone := testutil.NewNote("gone")
	require.NoError(t, h.Commit(gone))
	require.NoError(t, h.Deregister(gone))
	return h, a, c
}

func TestEncode_RoundTripIsByteIdentical(t *testing.T) {
	h, _, _ := buildHistory(t)
	types := testTypes()

	first, err := Encode(h, types)
	require.NoError(t, err)

	decoded, err := Decode(first, types, quiet())
	require.NoError(t, err)

	second, err := Encode(decoded, types)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, Hash(first), Hash(second))
	assert.Equal(t, h.Stats(), decoded.Stats())
	assert.Equal(t, h.MaxMutations(), decoded.MaxMutations())
	assert.Equal(t, h.Clock().Current(), decoded.Clock().Current())
}

func TestDecode_LiveEntitiesCarryState(t *testing.T) {
	h, a, c := buildHistory(t)
	types := testTypes()
	data, err := Encode(h, types)
	require.NoError(t, err)

	decoded, err := Decode(data, types, quiet())
	require.NoError(t, err)

	rec, ok := decoded.Registry().Get(a.ID())
	require.True(t, ok)
	note := rec.(*testutil.Note)
	assert.Equal(t, "final", note.Title)
	assert.Equal(t, []string{"x", "<y>"}, note.Tags)
	assert.Same(t, decoded.VersionInfoByID(a.ID()), decoded.VersionInfo(note))

	rec, ok = decoded.Registry().Get(c.ID())
	require.True(t, ok)
	assert.Equal(t, 2, rec.(*testutil.Counter).Value)
}

func TestDecode_BehavesLikeOriginal(t *testing.T) {
	h, _, _ := buildHistory(t)
	types := testTypes()
	data, err := Encode(h, types)
	require.NoError(t, err)
	decoded, err := Decode(data, types, quiet())
	require.NoError(t, err)

	for _, step := range []func(*history.History) (bool, error){
		(*history.History).Undo,
		(*history.History).Undo,
		(*history.History).Undo,
		(*history.History).Redo,
	} {
		wantOK, wantErr := step(h)
		gotOK, gotErr := step(decoded)
		require.NoError(t, wantErr)
		require.NoError(t, gotErr)
		assert.Equal(t, wantOK, gotOK)

		want, err := Encode(h, types)
		require.NoError(t, err)
		got, err := Encode(decoded, types)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got))
	}
	assert.NoError(t, decoded.Verify())
}

func TestEncode_OutOfScopeEntityNotWritten(t *testing.T) {
	h := history.New(quiet())
	n := testutil.NewNote("n")
	require.NoError(t, h.Commit(n))
	id := n.ID()
	require.NoError(t, h.Deregister(n))

	doc, err := Snapshot(h, testTypes())
	require.NoError(t, err)
	assert.Equal(t, []int{id}, doc.Reserved)
	for _, rd := range doc.Records {
		assert.NotEqual(t, id, rd.ID)
	}

	kinds := map[string]int{}
	for _, rd := range doc.Records {
		kinds[rd.Kind]++
	}
	assert.Equal(t, map[string]int{KindChain: 1, KindSnapshot: 2, KindCommit: 1, KindDeregister: 1}, kinds)
}

func TestEncode_UnregisteredTypeFails(t *testing.T) {
	h := history.New(quiet())
	require.NoError(t, h.Commit(testutil.NewCounter("c", 1)))

	types := NewTypes().MustRegister("note", func() record.Entity { return &testutil.Note{} })
	_, err := Encode(h, types)
	assert.True(t, record.IsInvalidArgument(err))
}

func TestDecode_RejectsBadDocuments(t *testing.T) {
	h, _, _ := buildHistory(t)
	types := testTypes()
	data, err := Encode(h, types)
	require.NoError(t, err)

	mutate := func(edit func(m map[string]any)) []byte {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		edit(m)
		out, err := json.Marshal(m)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte(`{`)},
		{"unknown field", mutate(func(m map[string]any) { m["extra"] = 1 })},
		{"wrong format", mutate(func(m map[string]any) { m["format"] = 99 })},
		{"cursor out of range", mutate(func(m map[string]any) { m["cursor"] = 99 })},
		{"reserved and occupied", mutate(func(m map[string]any) {
			first := m["records"].([]any)[0].(map[string]any)
			m["reserved"] = []any{first["id"]}
		})},
		{"log points at entity", mutate(func(m map[string]any) {
			first := m["records"].([]any)[0].(map[string]any)
			m["log"] = []any{first["id"]}
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, types, quiet())
			require.Error(t, err)
		})
	}

	_, err = Decode(data, NewTypes(), quiet())
	assert.True(t, record.IsInvalidArgument(err), "unknown entity type")
}

func TestHash_DependsOnContent(t *testing.T) {
	a := Hash([]byte(`{"a":1}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Hash([]byte(`{"a":1}`)))
	assert.NotEqual(t, a, Hash([]byte(`{"a":2}`)))
}

func TestTypes_Register(t *testing.T) {
	types := NewTypes()
	require.NoError(t, types.Register("note", func() record.Entity { return &testutil.Note{} }))

	assert.True(t, record.IsInvalidArgument(
		types.Register("note", func() record.Entity { return &testutil.Counter{} })), "duplicate name")
	assert.True(t, record.IsInvalidArgument(
		types.Register("memo", func() record.Entity { return &testutil.Note{} })), "duplicate type")
	assert.True(t, record.IsInvalidArgument(types.Register("", nil)))

	name, ok := types.NameOf(testutil.NewNote("x"))
	assert.True(t, ok)
	assert.Equal(t, "note", name)
	_, ok = types.NameOf(testutil.NewCounter("c", 0))
	assert.False(t, ok)

	e, ok := types.New("note")
	require.True(t, ok)
	assert.IsType(t, &testutil.Note{}, e)
	assert.Equal(t, []string{"note"}, types.Names())
}
