// Package registry implements the bounded, id-indexed slot table that owns
// identity allocation for every record in a store.
//
// A slot is absent, reserved-empty, or occupied. Reserved-empty slots read as
// "no record" but count toward SlotCount and park their id so the allocator
// cannot hand it out while history still tracks the record that left scope.
//
// Thread-safety: none. A Registry belongs to exactly one writer.
package registry

import (
	"iter"
	"maps"
	"reflect"
	"slices"

	"github.com/roach88/snapstore/internal/record"
)

// DefaultMaxSlots is the slot bound used when no option overrides it.
const DefaultMaxSlots = 1 << 20

// Registry maps ids to records.
//
// INVARIANTS:
//   - an occupied slot's record has ID() equal to the slot key
//   - the allocator never returns an id that is occupied or reserved
//   - inScope equals the number of occupied slots
type Registry struct {
	// slots holds occupied (non-nil) and reserved-empty (nil) slots.
	// Absent ids have no key.
	slots    map[int]record.Record
	maxSlots int
	nextID   int
	inScope  int
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxSlots bounds the number of slots (occupied plus reserved).
// Values <= 0 keep DefaultMaxSlots.
func WithMaxSlots(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxSlots = n
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		slots:    make(map[int]record.Record),
		maxSlots: DefaultMaxSlots,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers rec under the next free id and returns that id.
//
// The scan starts at the rolling NextID cursor and wraps around once.
// Fails with InvalidArgument for nil or already-registered records and
// CapacityExceeded when no slot is free.
func (r *Registry) Add(rec record.Record) (int, error) {
	if isNil(rec) {
		return record.NoID, record.NewError(record.ErrCodeInvalidArgument, "registry.Add", "record is nil")
	}
	if rec.ID() != record.NoID {
		return record.NoID, record.NewIDError(record.ErrCodeInvalidArgument, "registry.Add", rec.ID(),
			"record is already registered")
	}

	id, err := r.allocate()
	if err != nil {
		return record.NoID, err
	}

	r.slots[id] = rec
	rec.SetID(id)
	r.inScope++
	r.nextID = r.wrap(id + 1)
	return id, nil
}

// allocate finds the first id at or after nextID that no slot holds.
func (r *Registry) allocate() (int, error) {
	if len(r.slots) >= r.maxSlots {
		return record.NoID, record.NewError(record.ErrCodeCapacityExceeded, "registry.Add",
			"all %d slots are in use", r.maxSlots)
	}
	for i := 0; i < r.maxSlots; i++ {
		id := r.wrap(r.nextID + i)
		if _, taken := r.slots[id]; !taken {
			return id, nil
		}
	}
	// Only reachable when ids outside [0, maxSlots) were force-assigned.
	return record.NoID, record.NewError(record.ErrCodeCapacityExceeded, "registry.Add",
		"no free slot after full scan of %d slots", r.maxSlots)
}

// Remove frees the slot at id for reuse, detaching any occupant.
// Returns false if the slot was absent.
func (r *Registry) Remove(id int) bool {
	rec, ok := r.slots[id]
	if !ok {
		return false
	}
	if rec != nil {
		rec.SetID(record.NoID)
		r.inScope--
	}
	delete(r.slots, id)
	return true
}

// Reserve marks an absent slot as reserved-empty.
// Reserving an already reserved slot is a no-op; reserving an occupied one
// is InvalidArgument (use ClearSlot).
func (r *Registry) Reserve(id int) error {
	if err := r.checkRange("registry.Reserve", id); err != nil {
		return err
	}
	rec, ok := r.slots[id]
	if ok && rec != nil {
		return record.NewIDError(record.ErrCodeInvalidArgument, "registry.Reserve", id, "slot is occupied")
	}
	if !ok && len(r.slots) >= r.maxSlots {
		return record.NewIDError(record.ErrCodeCapacityExceeded, "registry.Reserve", id,
			"all %d slots are in use", r.maxSlots)
	}
	r.slots[id] = nil
	return nil
}

// ClearSlot detaches the occupant of id (its id becomes NoID) and leaves the
// slot reserved-empty. Returns the detached record, or nil.
func (r *Registry) ClearSlot(id int) (record.Record, error) {
	if err := r.checkRange("registry.ClearSlot", id); err != nil {
		return nil, err
	}
	rec, ok := r.slots[id]
	if !ok && len(r.slots) >= r.maxSlots {
		return nil, record.NewIDError(record.ErrCodeCapacityExceeded, "registry.ClearSlot", id,
			"all %d slots are in use", r.maxSlots)
	}
	if rec != nil {
		rec.SetID(record.NoID)
		r.inScope--
	}
	r.slots[id] = nil
	return rec, nil
}

// SetSlot force-assigns rec to id, detaching any prior occupant.
// rec must be unregistered or already registered under id.
func (r *Registry) SetSlot(id int, rec record.Record) error {
	if isNil(rec) {
		return record.NewIDError(record.ErrCodeInvalidArgument, "registry.SetSlot", id, "record is nil")
	}
	if err := r.checkRange("registry.SetSlot", id); err != nil {
		return err
	}
	if cur := rec.ID(); cur != record.NoID && cur != id {
		return record.NewIDError(record.ErrCodeInvalidArgument, "registry.SetSlot", id,
			"record is registered under id %d", cur)
	}

	prior, ok := r.slots[id]
	if !ok && len(r.slots) >= r.maxSlots {
		return record.NewIDError(record.ErrCodeCapacityExceeded, "registry.SetSlot", id,
			"all %d slots are in use", r.maxSlots)
	}
	if prior == rec {
		return nil
	}
	if prior != nil {
		prior.SetID(record.NoID)
		r.inScope--
	}
	r.slots[id] = rec
	rec.SetID(id)
	r.inScope++
	return nil
}

// Get returns the record occupying id. Reserved and absent slots return false.
func (r *Registry) Get(id int) (record.Record, bool) {
	rec := r.slots[id]
	return rec, rec != nil
}

// Contains reports whether rec is the exact object occupying its id's slot.
func (r *Registry) Contains(rec record.Record) bool {
	if isNil(rec) {
		return false
	}
	id := rec.ID()
	if id == record.NoID {
		return false
	}
	return r.slots[id] == rec
}

// IsReserved reports whether id is a reserved-empty slot.
func (r *Registry) IsReserved(id int) bool {
	rec, ok := r.slots[id]
	return ok && rec == nil
}

// All yields every occupied slot in ascending id order.
func (r *Registry) All() iter.Seq2[int, record.Record] {
	return func(yield func(int, record.Record) bool) {
		for _, id := range slices.Sorted(maps.Keys(r.slots)) {
			rec := r.slots[id]
			if rec == nil {
				continue
			}
			if !yield(id, rec) {
				return
			}
		}
	}
}

// ReservedIDs returns the reserved-empty ids in ascending order.
func (r *Registry) ReservedIDs() []int {
	var ids []int
	for id, rec := range r.slots {
		if rec == nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// SlotCount returns the number of occupied plus reserved slots.
func (r *Registry) SlotCount() int { return len(r.slots) }

// EntitiesInScope returns the number of occupied slots.
func (r *Registry) EntitiesInScope() int { return r.inScope }

// MaxSlots returns the slot bound.
func (r *Registry) MaxSlots() int { return r.maxSlots }

// SetMaxSlots changes the slot bound. Lowering it below an id in use is
// InvalidArgument.
func (r *Registry) SetMaxSlots(n int) error {
	if n <= 0 {
		return record.NewError(record.ErrCodeInvalidArgument, "registry.SetMaxSlots", "bound must be positive, got %d", n)
	}
	for id := range r.slots {
		if id >= n {
			return record.NewIDError(record.ErrCodeInvalidArgument, "registry.SetMaxSlots", id,
				"slot lies outside new bound %d", n)
		}
	}
	r.maxSlots = n
	r.nextID = r.wrap(r.nextID)
	return nil
}

// NextID returns the id the allocator will try first.
func (r *Registry) NextID() int { return r.nextID }

// SetNextID moves the allocation cursor. The value wraps into
// [0, MaxSlots) and allocation still skips occupied and reserved slots.
func (r *Registry) SetNextID(id int) {
	r.nextID = r.wrap(id)
}

func (r *Registry) wrap(id int) int {
	return ((id % r.maxSlots) + r.maxSlots) % r.maxSlots
}

func (r *Registry) checkRange(op string, id int) error {
	if id < 0 || id >= r.maxSlots {
		return record.NewIDError(record.ErrCodeInvalidArgument, op, id,
			"id outside [0, %d)", r.maxSlots)
	}
	return nil
}

// isNil catches both untyped nil and typed nil pointers.
func isNil(rec record.Record) bool {
	if rec == nil {
		return true
	}
	v := reflect.ValueOf(rec)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
