package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snapstore/internal/record"
)

type doc struct {
	record.Base
	Text string
}

func (d *doc) Clone() record.Entity {
	c := *d
	return &c
}

func (d *doc) CopyFrom(src record.Entity) {
	d.Text = src.(*doc).Text
}

func snap(text string) *doc {
	return &doc{Base: record.NewBase(), Text: text}
}

// chainOf builds a chain at head holding the given snapshot texts.
func chainOf(texts ...string) *Info {
	v := New(7, nil)
	for _, s := range texts {
		v.CommitVersion(snap(s))
	}
	return v
}

func TestInfo_CommitVersionMovesCursorToHead(t *testing.T) {
	v := chainOf("a", "b")
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, 2, v.CurrentVersion)
	assert.True(t, v.AtHead())
}

func TestInfo_UndoCopiesInPlaceAndSetsHeadID(t *testing.T) {
	v := chainOf("a", "b")
	live := &doc{Base: record.NewBase(), Text: "edited"}

	v.Undo(live)
	assert.Equal(t, 1, v.CurrentVersion)
	assert.Equal(t, "b", live.Text)
	assert.Equal(t, 7, live.ID())

	v.Undo(live)
	assert.Equal(t, 0, v.CurrentVersion)
	assert.Equal(t, "a", live.Text)

	live.Text = "untouched"
	v.Undo(live)
	assert.Equal(t, -1, v.CurrentVersion)
	assert.Equal(t, "untouched", live.Text, "stepping to -1 leaves the target alone")

	v.Undo(live)
	assert.Equal(t, -1, v.CurrentVersion, "cursor does not go below -1")
}

func TestInfo_RedoFromOutOfScope(t *testing.T) {
	v := chainOf("a", "b")
	v.CurrentVersion = -1
	live := &doc{Base: record.NewBase()}

	v.Redo(live)
	assert.Equal(t, "a", live.Text)
	assert.Equal(t, 1, v.CurrentVersion)

	v.Redo(live)
	assert.Equal(t, "b", live.Text)
	assert.Equal(t, 2, v.CurrentVersion)

	live.Text = "dirty"
	v.Redo(live)
	assert.Equal(t, "dirty", live.Text, "nothing to replay at head")
	assert.Equal(t, 2, v.CurrentVersion)
}

func TestInfo_UndoRedoRoundTrip(t *testing.T) {
	v := chainOf("a", "b", "c")
	live := &doc{Base: record.NewBase(), Text: "c"}

	v.Undo(live)
	v.Undo(live)
	require.Equal(t, "b", live.Text)
	v.Redo(live)
	assert.Equal(t, "b", live.Text)
	v.Redo(live)
	assert.Equal(t, "c", live.Text)
	assert.True(t, v.AtHead())
}

func TestInfo_RevertClampsWithoutMovingCursor(t *testing.T) {
	tests := []struct {
		name   string
		cursor int
		want   string
	}{
		{"at head reloads newest", 3, "c"},
		{"mid chain", 1, "b"},
		{"out of scope reloads oldest", -1, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := chainOf("a", "b", "c")
			v.CurrentVersion = tt.cursor
			live := &doc{Base: record.NewBase(), Text: "dirty"}

			require.True(t, v.Revert(live))
			assert.Equal(t, tt.want, live.Text)
			assert.Equal(t, tt.cursor, v.CurrentVersion)
		})
	}

	assert.False(t, New(1, nil).Revert(snap("x")), "empty chain")
}

func TestInfo_RemoveVersionAdjustsCursor(t *testing.T) {
	v := chainOf("a", "b", "c")
	b := v.Versions[1]

	v.CurrentVersion = 1
	assert.Equal(t, 1, v.RemoveVersion(b))
	assert.Equal(t, 0, v.CurrentVersion, "removed index equal to cursor")
	assert.Equal(t, 2, v.Len())

	c := v.Versions[1]
	assert.Equal(t, 1, v.RemoveVersion(c))
	assert.Equal(t, 0, v.CurrentVersion, "removed index after cursor")

	assert.Equal(t, -1, v.RemoveVersion(c), "already removed")

	a := v.Versions[0]
	assert.Equal(t, 0, v.RemoveVersion(a))
	assert.Equal(t, -1, v.CurrentVersion)
	assert.Equal(t, 0, v.Len())
}

func TestInfo_HeadAccessors(t *testing.T) {
	live := snap("x")
	v := New(3, live)
	assert.Same(t, live, v.Head())
	assert.Equal(t, record.NoID, v.ID(), "chain itself starts unregistered")

	other := snap("y")
	v.SetHead(other)
	assert.Same(t, other, v.Head())
}
