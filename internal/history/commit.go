package history

import (
	"github.com/roach88/snapstore/internal/mutation"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/version"
)

// Commit snapshots e and appends a Commit entry.
//
// If the cursor is not at the head, the entries from the cursor onward are
// discarded first; there is no redo after a new branch. An untracked entity
// is registered if needed and gets a chain seeded with its current state.
// A tracked entity that is out of scope gets its head id back.
func (h *History) Commit(e record.Entity) error {
	const op = "history.Commit"

	if isNil(e) {
		return record.NewError(record.ErrCodeInvalidArgument, op, "entity is nil")
	}
	info := h.heads[e]
	if e.ID() != record.NoID && !h.reg.Contains(e) {
		return record.NewIDError(record.ErrCodeInvalidArgument, op, e.ID(),
			"entity claims an id it does not occupy")
	}
	if err := h.checkAppend(op, 0); err != nil {
		return err
	}
	needed := 2 // snapshot + entry
	if info == nil {
		needed++ // chain
		if !h.reg.Contains(e) {
			needed++
		}
	}
	if err := h.reserveSlots(op, needed); err != nil {
		return err
	}

	if err := h.prune(); err != nil {
		return err
	}

	// Pruning may have dropped the chain (and unregistered e with it).
	info = h.heads[e]
	if info == nil {
		if !h.reg.Contains(e) {
			if _, err := h.reg.Add(e); err != nil {
				return err
			}
		}
		info = version.New(e.ID(), e)
		if _, err := h.reg.Add(info); err != nil {
			return err
		}
		h.chains[info.HeadID] = info
		h.heads[e] = info
	} else if !h.reg.Contains(e) {
		if err := h.attach(info, e); err != nil {
			return err
		}
	}

	snap, err := h.snapshot(e)
	if err != nil {
		return err
	}
	info.CommitVersion(snap)

	if err := h.appendEntry(mutation.NewCommit(info.HeadID, snap, h.clock.Next())); err != nil {
		return err
	}
	return h.cutoff()
}

// Deregister takes e out of scope.
//
// An untracked entity is removed from the registry outright. A tracked one
// is snapshotted, a Deregister entry is appended, and its slot stays
// reserved so Undo can bring it back under the same id.
func (h *History) Deregister(e record.Entity) error {
	const op = "history.Deregister"

	if isNil(e) || !h.reg.Contains(e) {
		return record.NewError(record.ErrCodeInvalidArgument, op, "entity is not in the registry")
	}
	if h.heads[e] == nil {
		h.reg.Remove(e.ID())
		return nil
	}
	if err := h.checkAppend(op, 0); err != nil {
		return err
	}
	if err := h.reserveSlots(op, 2); err != nil {
		return err
	}

	if err := h.prune(); err != nil {
		return err
	}
	if !h.reg.Contains(e) {
		// Pruning deleted the entity together with its chain.
		return nil
	}
	info := h.heads[e]

	snap, err := h.snapshot(e)
	if err != nil {
		return err
	}
	info.CommitVersion(snap)
	entry := mutation.NewDeregister(info.HeadID, snap, h.clock.Next())

	if err := h.detach(info); err != nil {
		return err
	}
	if err := h.appendEntry(entry); err != nil {
		return err
	}
	return h.cutoff()
}

// Revert reloads e from the snapshot nearest its chain cursor without
// moving CurrentMutation.
func (h *History) Revert(e record.Entity) error {
	const op = "history.Revert"

	if isNil(e) || !h.reg.Contains(e) {
		return record.NewError(record.ErrCodeInvalidArgument, op, "entity is not in the registry")
	}
	info := h.heads[e]
	if info == nil {
		return record.NewIDError(record.ErrCodeInvalidArgument, op, e.ID(), "entity has no version info")
	}
	if !info.Revert(e) {
		return record.NewIDError(record.ErrCodeInvalidArgument, op, e.ID(), "entity has no retained versions")
	}
	return nil
}

// BeginGroup opens a bracket; entries up to the matching EndGroup are undone
// and redone as one step.
func (h *History) BeginGroup() error {
	const op = "history.BeginGroup"

	if err := h.checkAppend(op, 1); err != nil {
		return err
	}
	if err := h.reserveSlots(op, 1); err != nil {
		return err
	}
	if err := h.prune(); err != nil {
		return err
	}
	if err := h.appendEntry(mutation.NewBeginGroup(h.clock.Next())); err != nil {
		return err
	}
	h.openGroups++
	return nil
}

// EndGroup closes the innermost open group.
//
// The mutation bound never blocks a close: the entry is appended even past
// MaxMutations and the cutoff runs once the outermost group is closed.
func (h *History) EndGroup() error {
	const op = "history.EndGroup"

	if h.openGroups == 0 {
		return record.NewError(record.ErrCodeInvalidOperation, op, "no open group")
	}
	if err := h.reserveSlots(op, 1); err != nil {
		return err
	}
	if err := h.prune(); err != nil {
		return err
	}
	if err := h.appendEntry(mutation.NewEndGroup(h.clock.Next())); err != nil {
		return err
	}
	h.openGroups--
	return h.cutoff()
}

// checkAppend rejects a Commit, Deregister or BeginGroup whose cutoff would
// have to run while a group is still open. groupDelta is the change in open
// groups the append itself makes.
func (h *History) checkAppend(op string, groupDelta int) error {
	if h.maxMutations <= 0 {
		return nil
	}
	openAfter := h.openGroups + groupDelta
	lenAfter := min(max(h.cursor, 0), len(h.log)) + 1
	if lenAfter > h.maxMutations && openAfter > 0 {
		h.logger.Warn("mutation bound exceeded inside group",
			"op", op, "max_mutations", h.maxMutations, "open_groups", openAfter)
		return record.NewError(record.ErrCodeInvalidOperation, op,
			"log would exceed %d mutations with %d open groups", h.maxMutations, openAfter)
	}
	return nil
}

// reserveSlots fails fast when the registry cannot take needed more
// records, counting the slots a prune would give back.
func (h *History) reserveSlots(op string, needed int) error {
	free := h.reg.MaxSlots() - h.reg.SlotCount()
	for i := max(h.cursor, 0); i < len(h.log); i++ {
		free++
		if mutation.AsMutate(h.log[i]) != nil {
			free++
		}
	}
	if needed > free {
		return record.NewError(record.ErrCodeCapacityExceeded, op,
			"need %d slots, %d available", needed, free)
	}
	return nil
}
