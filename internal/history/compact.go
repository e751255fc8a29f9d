package history

import (
	"slices"

	"github.com/roach88/snapstore/internal/mutation"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/version"
)

// DeleteMutation removes the entry at index from the log without corrupting
// the rest of it.
//
// A Commit or Deregister loses its snapshot; a BeginGroup takes its whole
// closed bracket with it. Deleting an EndGroup directly, or a BeginGroup
// whose group is still open, is InvalidOperation. CurrentMutation shifts
// left by the number of removed entries when it was past index.
func (h *History) DeleteMutation(index int) error {
	const op = "history.DeleteMutation"

	if index < 0 || index >= len(h.log) {
		return record.NewError(record.ErrCodeInvalidArgument, op,
			"index %d outside log of %d entries", index, len(h.log))
	}
	return h.deleteMutation(op, index)
}

func (h *History) deleteMutation(op string, index int) error {
	last := index
	switch h.log[index].(type) {
	case *mutation.EndGroup:
		return record.NewError(record.ErrCodeInvalidOperation, op,
			"delete the matching BeginGroup instead of EndGroup %d", index)
	case *mutation.BeginGroup:
		last = h.matchingEnd(index)
		if last < 0 {
			return record.NewError(record.ErrCodeInvalidOperation, op,
				"group opened at %d is still open", index)
		}
	}
	h.deleteRange(index, last)
	return nil
}

// deleteRange removes entries [from, to] and their effects.
func (h *History) deleteRange(from, to int) {
	for i := from; i <= to; i++ {
		entry := h.log[i]
		h.logger.Debug("deleting mutation", "mutation", i, "entry", mutation.Describe(entry), "cursor", h.cursor)
		h.discard(i, entry)
	}

	count := to - from + 1
	h.log = slices.Delete(h.log, from, to+1)
	if h.cursor > from {
		h.cursor = max(from, h.cursor-count)
	}
	h.cursor = min(h.cursor, len(h.log))
}

// discard unregisters entry and removes its snapshot from the chain.
func (h *History) discard(index int, entry mutation.Entry) {
	m := mutation.AsMutate(entry)
	h.reg.Remove(entry.ID())
	if m == nil {
		return
	}

	info := h.chains[m.EntityID]
	if info == nil {
		if m.Snapshot != nil {
			h.reg.Remove(m.Snapshot.ID())
		}
		return
	}

	cursorBefore := info.CurrentVersion
	removedAt := info.RemoveVersion(m.Snapshot)
	if m.Snapshot != nil {
		h.reg.Remove(m.Snapshot.ID())
	}

	if info.Len() == 0 {
		if h.deleteOutOfScope {
			h.dropChain(info)
		}
		return
	}

	if _, ok := entry.(*mutation.Deregister); ok {
		h.resurrect(index, info, m.Snapshot, removedAt, cursorBefore)
	}
}

// resurrect puts an entity back into scope when the Deregister that took it
// out is deleted while in effect.
//
// The deregistration must be the latest change applied to the chain
// (its snapshot sat just before the chain cursor); otherwise something else,
// such as an Undo past the first commit, took the entity out of scope and it
// stays out.
func (h *History) resurrect(index int, info *version.Info, snap record.Entity, removedAt, cursorBefore int) {
	if index >= h.cursor || info.CurrentVersion < 0 || !h.reg.IsReserved(info.HeadID) {
		return
	}
	if removedAt < 0 || removedAt != cursorBefore-1 {
		return
	}
	head := h.headOf(info)
	if head == nil {
		return
	}
	head.CopyFrom(snap)
	if err := h.attach(info, head); err != nil {
		h.logger.Warn("resurrect failed", "entity_id", info.HeadID, "error", err)
		return
	}
	h.logger.Debug("resurrected entity after deleting its deregister", "entity_id", info.HeadID, "mutation", index)
}

// dropChain deletes an emptied chain together with the entity it tracks.
func (h *History) dropChain(info *version.Info) {
	h.logger.Debug("dropping emptied version chain", "entity_id", info.HeadID)
	if head := info.Head(); head != nil {
		delete(h.heads, head)
		if h.reg.Contains(head) {
			h.reg.Remove(head.ID())
		}
		head.SetID(record.NoID)
	}
	if h.reg.IsReserved(info.HeadID) {
		h.reg.Remove(info.HeadID)
	}
	delete(h.chains, info.HeadID)
	h.reg.Remove(info.ID())
}

// prune discards every entry from the cursor to the head, newest first.
func (h *History) prune() error {
	start := max(h.cursor, 0)
	if start >= len(h.log) {
		h.cursor = len(h.log)
		return nil
	}
	h.logger.Debug("discarding redo entries", "from", start, "count", len(h.log)-start)
	for i := len(h.log) - 1; i >= start; i-- {
		h.discard(i, h.log[i])
	}
	clear(h.log[start:])
	h.log = h.log[:start]
	h.cursor = start
	return nil
}

// cutoff deletes mutation 0 until the log fits MaxMutations. While a group
// is open the log may run over the bound; the cut waits for the outermost
// EndGroup.
func (h *History) cutoff() error {
	const op = "history.cutoff"

	if h.openGroups > 0 {
		if h.maxMutations > 0 && len(h.log) > h.maxMutations {
			h.logger.Debug("cutoff deferred until group closes",
				"max_mutations", h.maxMutations, "mutation_count", len(h.log), "open_groups", h.openGroups)
		}
		return nil
	}
	for h.maxMutations > 0 && len(h.log) > h.maxMutations {
		h.logger.Debug("mutation cutoff", "max_mutations", h.maxMutations, "mutation_count", len(h.log))
		if err := h.deleteMutation(op, 0); err != nil {
			return err
		}
	}
	return nil
}
