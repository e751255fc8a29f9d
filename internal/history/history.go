package history

import (
	"log/slog"
	"maps"
	"reflect"
	"slices"

	"github.com/roach88/snapstore/internal/mutation"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/registry"
	"github.com/roach88/snapstore/internal/version"
)

// History is the single-writer mutation log over a registry.
//
// INVARIANTS:
//   - chains and heads index the same set of version.Info records
//   - every Commit/Deregister snapshot belongs to the chain of its EntityID
//   - -1 <= cursor <= len(log)
//   - openGroups equals the number of unmatched BeginGroup entries
type History struct {
	reg *registry.Registry

	// chains indexes version chains by head id.
	chains map[int]*version.Info

	// heads indexes version chains by entity identity, so an entity that
	// is out of scope (Id = -1) still finds its chain.
	heads map[record.Entity]*version.Info

	log        []mutation.Entry
	cursor     int
	openGroups int

	maxMutations     int
	deleteOutOfScope bool

	clock  *Clock
	logger *slog.Logger
}

// New creates an empty History.
func New(opts ...Option) *History {
	h := &History{
		chains: make(map[int]*version.Info),
		heads:  make(map[record.Entity]*version.Info),
		clock:  NewClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.reg == nil {
		h.reg = registry.New()
	}
	return h
}

// Commit is the typed form of (*History).Commit: it returns e so calls can
// be chained.
func Commit[T record.Entity](h *History, e T) (T, error) {
	if err := h.Commit(e); err != nil {
		var zero T
		return zero, err
	}
	return e, nil
}

// Registry returns the registry the History writes through.
// Writing to it directly desynchronizes chains and the log.
func (h *History) Registry() *registry.Registry { return h.reg }

// CurrentMutation returns the log cursor.
func (h *History) CurrentMutation() int { return h.cursor }

// MutationCount returns the number of log entries.
func (h *History) MutationCount() int { return len(h.log) }

// OpenGroupCount returns the number of unmatched BeginGroup entries.
func (h *History) OpenGroupCount() int { return h.openGroups }

// MaxMutations returns the log bound; <= 0 means unbounded.
func (h *History) MaxMutations() int { return h.maxMutations }

// SetMaxMutations changes the log bound and applies the cutoff at once.
// Lowering the bound below the log length while a group is open is
// InvalidOperation and leaves the bound unchanged.
func (h *History) SetMaxMutations(n int) error {
	if n > 0 && len(h.log) > n && h.openGroups > 0 {
		return record.NewError(record.ErrCodeInvalidOperation, "history.SetMaxMutations",
			"cannot cut log to %d entries with %d open groups", n, h.openGroups)
	}
	h.maxMutations = n
	return h.cutoff()
}

// DeleteOutOfScopeVersions reports whether compaction deletes emptied chains.
func (h *History) DeleteOutOfScopeVersions() bool { return h.deleteOutOfScope }

// SetDeleteOutOfScopeVersions toggles deletion of emptied chains.
func (h *History) SetDeleteOutOfScopeVersions(enabled bool) { h.deleteOutOfScope = enabled }

// Clock returns the logical clock stamping entries.
func (h *History) Clock() *Clock { return h.clock }

// Mutation returns the entry at index, or nil when index is out of range.
func (h *History) Mutation(index int) mutation.Entry {
	if index < 0 || index >= len(h.log) {
		return nil
	}
	return h.log[index]
}

// Mutations returns a copy of the log.
func (h *History) Mutations() []mutation.Entry {
	return append([]mutation.Entry(nil), h.log...)
}

// VersionInfo returns the chain tracking e, or nil.
// The returned chain is owned by the History and must not be modified.
func (h *History) VersionInfo(e record.Entity) *version.Info {
	if isNil(e) {
		return nil
	}
	return h.heads[e]
}

// VersionInfoByID returns the chain whose head id is id, or nil.
func (h *History) VersionInfoByID(id int) *version.Info {
	return h.chains[id]
}

// Head returns the entity tracked under head id, rehydrating it from the
// oldest retained snapshot if it left scope before a reload. Returns nil
// when id is not tracked.
func (h *History) Head(id int) record.Entity {
	info := h.chains[id]
	if info == nil {
		return nil
	}
	return h.headOf(info)
}

// HeadIDs returns the head ids of every tracked chain in ascending order.
func (h *History) HeadIDs() []int {
	return slices.Sorted(maps.Keys(h.chains))
}

// IsGroupOpen reports whether the entry at index is a BeginGroup with no
// matching EndGroup.
func (h *History) IsGroupOpen(index int) bool {
	if _, ok := h.Mutation(index).(*mutation.BeginGroup); !ok {
		return false
	}
	return h.matchingEnd(index) < 0
}

// Stats summarizes the store.
type Stats struct {
	SlotCount       int `json:"slot_count"`
	EntitiesInScope int `json:"entities_in_scope"`
	Chains          int `json:"chains"`
	MutationCount   int `json:"mutation_count"`
	CurrentMutation int `json:"current_mutation"`
	OpenGroups      int `json:"open_groups"`
}

// Stats returns counters for the registry, chains and log.
func (h *History) Stats() Stats {
	return Stats{
		SlotCount:       h.reg.SlotCount(),
		EntitiesInScope: h.reg.EntitiesInScope(),
		Chains:          len(h.chains),
		MutationCount:   len(h.log),
		CurrentMutation: h.cursor,
		OpenGroups:      h.openGroups,
	}
}

// headOf returns the tracked entity of info, rehydrating a missing head
// from the oldest snapshot. Returns nil for a chain with no snapshots and
// no head.
func (h *History) headOf(info *version.Info) record.Entity {
	if head := info.Head(); head != nil {
		return head
	}
	if info.Len() == 0 {
		return nil
	}
	head := info.Versions[0].Clone()
	head.SetID(record.NoID)
	info.SetHead(head)
	h.heads[head] = info
	h.logger.Debug("rehydrated head from oldest snapshot", "entity_id", info.HeadID)
	return head
}

// attach puts head back into its slot under the chain's head id.
func (h *History) attach(info *version.Info, head record.Entity) error {
	if h.reg.Contains(head) {
		return nil
	}
	head.SetID(record.NoID)
	return h.reg.SetSlot(info.HeadID, head)
}

// detach takes the head of info out of scope: its slot becomes
// reserved-empty and its id -1.
func (h *History) detach(info *version.Info) error {
	if head := info.Head(); head != nil {
		head.SetID(record.NoID)
	}
	if h.reg.IsReserved(info.HeadID) {
		return nil
	}
	_, err := h.reg.ClearSlot(info.HeadID)
	return err
}

// snapshot registers an independent copy of e.
func (h *History) snapshot(e record.Entity) (record.Entity, error) {
	snap := e.Clone()
	snap.SetID(record.NoID)
	if _, err := h.reg.Add(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// appendEntry registers entry and appends it at the head.
func (h *History) appendEntry(entry mutation.Entry) error {
	if _, err := h.reg.Add(entry); err != nil {
		return err
	}
	h.log = append(h.log, entry)
	h.cursor = len(h.log)
	return nil
}

// matchingEnd returns the index of the EndGroup closing the BeginGroup at
// begin, or -1 if it is still open.
func (h *History) matchingEnd(begin int) int {
	depth := 0
	for i := begin; i < len(h.log); i++ {
		depth += mutation.GroupDelta(h.log[i])
		if depth == 0 {
			return i
		}
	}
	return -1
}

// isNil catches both untyped nil and typed nil pointers.
func isNil(e record.Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
