package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snapstore/internal/record"
)

type item struct {
	record.Base
	name string
}

func newItem(name string) *item {
	return &item{Base: record.NewBase(), name: name}
}

func TestRegistry_AddAssignsSequentialIDs(t *testing.T) {
	r := New()

	for want := 0; want < 3; want++ {
		it := newItem("x")
		id, err := r.Add(it)
		require.NoError(t, err)
		assert.Equal(t, want, id)
		assert.Equal(t, want, it.ID())
	}
	assert.Equal(t, 3, r.SlotCount())
	assert.Equal(t, 3, r.EntitiesInScope())
	assert.Equal(t, 3, r.NextID())
}

func TestRegistry_AddRejectsNilAndDoubleRegistration(t *testing.T) {
	r := New()

	_, err := r.Add(nil)
	assert.True(t, record.IsInvalidArgument(err))

	var typedNil *item
	_, err = r.Add(typedNil)
	assert.True(t, record.IsInvalidArgument(err))

	it := newItem("a")
	_, err = r.Add(it)
	require.NoError(t, err)

	_, err = r.Add(it)
	assert.True(t, record.IsInvalidArgument(err), "same object twice")
	assert.Equal(t, 1, r.SlotCount())
}

func TestRegistry_CapacityExceededThenReuseFreedID(t *testing.T) {
	r := New(WithMaxSlots(3))

	items := make([]*item, 3)
	for i := range items {
		items[i] = newItem("x")
		_, err := r.Add(items[i])
		require.NoError(t, err)
	}

	_, err := r.Add(newItem("overflow"))
	require.Error(t, err)
	assert.True(t, record.IsCapacityExceeded(err))

	require.True(t, r.Remove(1))
	assert.Equal(t, record.NoID, items[1].ID(), "removed record is detached")

	id, err := r.Add(newItem("reuse"))
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestRegistry_ReservedSlotsAreSkippedAndCounted(t *testing.T) {
	r := New(WithMaxSlots(4))

	a := newItem("a")
	_, err := r.Add(a)
	require.NoError(t, err)

	detached, err := r.ClearSlot(0)
	require.NoError(t, err)
	assert.Same(t, a, detached)
	assert.Equal(t, record.NoID, a.ID())
	assert.True(t, r.IsReserved(0))
	assert.Equal(t, 1, r.SlotCount())
	assert.Equal(t, 0, r.EntitiesInScope())

	_, ok := r.Get(0)
	assert.False(t, ok, "reserved slot reads as empty")

	require.NoError(t, r.Reserve(2))
	r.SetNextID(0)

	id, err := r.Add(newItem("b"))
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = r.Add(newItem("c"))
	require.NoError(t, err)
	assert.Equal(t, 3, id, "skips reserved id 2")

	_, err = r.Add(newItem("d"))
	assert.True(t, record.IsCapacityExceeded(err), "reserved slots count toward capacity")
}

func TestRegistry_ReserveOccupiedFails(t *testing.T) {
	r := New()
	_, err := r.Add(newItem("a"))
	require.NoError(t, err)

	assert.True(t, record.IsInvalidArgument(r.Reserve(0)))
	assert.NoError(t, r.Reserve(5))
	assert.NoError(t, r.Reserve(5), "idempotent")
	assert.True(t, record.IsInvalidArgument(r.Reserve(-1)))
}

func TestRegistry_SetSlotDetachesPriorOccupant(t *testing.T) {
	r := New()
	a := newItem("a")
	_, err := r.Add(a)
	require.NoError(t, err)

	b := newItem("b")
	require.NoError(t, r.SetSlot(0, b))

	assert.Equal(t, record.NoID, a.ID())
	assert.Equal(t, 0, b.ID())
	assert.True(t, r.Contains(b))
	assert.False(t, r.Contains(a))
	assert.Equal(t, 1, r.EntitiesInScope())

	require.NoError(t, r.SetSlot(0, b), "reassigning the occupant is a no-op")
	assert.Equal(t, 1, r.EntitiesInScope())
}

func TestRegistry_SetSlotFillsReservedSlot(t *testing.T) {
	r := New()
	a := newItem("a")
	_, err := r.Add(a)
	require.NoError(t, err)
	_, err = r.ClearSlot(0)
	require.NoError(t, err)

	require.NoError(t, r.SetSlot(0, a))
	assert.True(t, r.Contains(a))
	assert.Equal(t, 1, r.SlotCount())
	assert.Equal(t, 1, r.EntitiesInScope())
}

func TestRegistry_SetSlotRejectsRecordRegisteredElsewhere(t *testing.T) {
	r := New()
	a := newItem("a")
	_, err := r.Add(a)
	require.NoError(t, err)

	err = r.SetSlot(7, a)
	assert.True(t, record.IsInvalidArgument(err))
	assert.Equal(t, 0, a.ID())
}

func TestRegistry_ContainsIsIdentity(t *testing.T) {
	r := New()
	a := newItem("a")
	_, err := r.Add(a)
	require.NoError(t, err)

	impostor := newItem("a")
	impostor.SetID(0)

	assert.True(t, r.Contains(a))
	assert.False(t, r.Contains(impostor))
	assert.False(t, r.Contains(nil))
	assert.False(t, r.Contains(newItem("unregistered")))
}

func TestRegistry_NextIDWrapsAndSkipsTaken(t *testing.T) {
	r := New(WithMaxSlots(5))
	for i := 0; i < 2; i++ {
		_, err := r.Add(newItem("x"))
		require.NoError(t, err)
	}

	r.SetNextID(9) // wraps to 4
	assert.Equal(t, 4, r.NextID())

	id, err := r.Add(newItem("y"))
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	id, err = r.Add(newItem("z"))
	require.NoError(t, err)
	assert.Equal(t, 2, id, "wraps past 4 and skips occupied 0 and 1")

	r.SetNextID(-1)
	assert.Equal(t, 4, r.NextID())
}

func TestRegistry_AllYieldsOccupiedInOrder(t *testing.T) {
	r := New()
	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		_, err := r.Add(newItem(n))
		require.NoError(t, err)
	}
	_, err := r.ClearSlot(1)
	require.NoError(t, err)

	var ids []int
	var got []string
	for id, rec := range r.All() {
		ids = append(ids, id)
		got = append(got, rec.(*item).name)
	}
	assert.Equal(t, []int{0, 2, 3}, ids)
	assert.Equal(t, []string{"a", "c", "d"}, got)
	assert.Equal(t, []int{1}, r.ReservedIDs())
}

func TestRegistry_SetMaxSlots(t *testing.T) {
	r := New()
	for i := 0; i < 3; i++ {
		_, err := r.Add(newItem("x"))
		require.NoError(t, err)
	}

	assert.True(t, record.IsInvalidArgument(r.SetMaxSlots(0)))
	assert.True(t, record.IsInvalidArgument(r.SetMaxSlots(2)), "id 2 would be orphaned")
	require.NoError(t, r.SetMaxSlots(3))
	assert.Equal(t, 3, r.MaxSlots())

	_, err := r.Add(newItem("x"))
	assert.True(t, record.IsCapacityExceeded(err))
}

func TestRegistry_RemoveReservedAndAbsent(t *testing.T) {
	r := New()
	require.NoError(t, r.Reserve(3))
	assert.True(t, r.Remove(3))
	assert.Equal(t, 0, r.SlotCount())
	assert.False(t, r.Remove(3))
}
