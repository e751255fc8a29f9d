package history

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/snapstore/internal/mutation"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/registry"
	"github.com/roach88/snapstore/internal/version"
)

// Restore rebuilds a History around reg, which already holds the chains,
// snapshots, live entities and log entries of a previous History.
//
// Chains are discovered by scanning the registry. A head parked on its
// chain while out of scope keeps its identity. Heads that are not known at
// all are rehydrated from the oldest retained snapshot on first use. The clock resumes after the highest stamp
// in log unless WithClock supplies one further ahead.
func Restore(reg *registry.Registry, log []mutation.Entry, cursor int, opts ...Option) (*History, error) {
	const op = "history.Restore"

	if reg == nil {
		return nil, record.NewError(record.ErrCodeInvalidArgument, op, "registry is nil")
	}
	h := New(append(opts, WithRegistry(reg))...)

	for _, rec := range reg.All() {
		info, ok := rec.(*version.Info)
		if !ok {
			continue
		}
		if _, dup := h.chains[info.HeadID]; dup {
			return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, info.HeadID,
				"two version chains share a head id")
		}
		h.chains[info.HeadID] = info
		if occupant, ok := reg.Get(info.HeadID); ok {
			head, ok := occupant.(record.Entity)
			if !ok {
				return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, info.HeadID,
					"head slot holds a %T, not an entity", occupant)
			}
			info.SetHead(head)
			h.heads[head] = info
		} else if head := info.Head(); head != nil {
			if head.ID() != record.NoID {
				return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, info.HeadID,
					"out-of-scope head carries id %d", head.ID())
			}
			h.heads[head] = info
		}
	}

	var lastStamp int64
	for i, entry := range log {
		if entry == nil || !reg.Contains(entry) {
			return nil, record.NewError(record.ErrCodeInvalidArgument, op, "log entry %d is not registered", i)
		}
		if m := mutation.AsMutate(entry); m != nil {
			info := h.chains[m.EntityID]
			if info == nil || info.IndexOf(m.Snapshot) < 0 {
				return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, m.EntityID,
					"log entry %d references a snapshot outside its chain", i)
			}
		}
		h.openGroups += mutation.GroupDelta(entry)
		if h.openGroups < 0 {
			return nil, record.NewError(record.ErrCodeInvalidOperation, op, "log entry %d closes no group", i)
		}
		lastStamp = max(lastStamp, entry.Stamp())
	}
	if cursor < -1 || cursor > len(log) {
		return nil, record.NewError(record.ErrCodeInvalidArgument, op,
			"cursor %d outside [-1, %d]", cursor, len(log))
	}

	h.log = slices.Clone(log)
	h.cursor = cursor
	if h.clock.Current() < lastStamp {
		h.clock = NewClockAt(lastStamp)
	}
	return h, nil
}

// Verify checks the invariants tying the registry, chains and log together
// and returns every violation found, joined.
func (h *History) Verify() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for id, rec := range h.reg.All() {
		if rec.ID() != id {
			fail("slot %d holds record with id %d", id, rec.ID())
		}
	}

	for headID, info := range h.chains {
		if info.HeadID != headID {
			fail("chain indexed under %d has head id %d", headID, info.HeadID)
		}
		if !h.reg.Contains(info) {
			fail("chain of %d is not registered", headID)
		}
		if info.CurrentVersion < -1 || info.CurrentVersion > info.Len() {
			fail("chain of %d has cursor %d outside [-1, %d]", headID, info.CurrentVersion, info.Len())
		}
		for i, v := range info.Versions {
			if !h.reg.Contains(v) {
				fail("chain of %d: version %d is not registered", headID, i)
			}
		}
		head := info.Head()
		switch {
		case head != nil && h.reg.Contains(head):
			if head.ID() != headID {
				fail("head of chain %d carries id %d", headID, head.ID())
			}
		case head != nil:
			if head.ID() != record.NoID {
				fail("out-of-scope head of chain %d carries id %d", headID, head.ID())
			}
			if !h.reg.IsReserved(headID) {
				fail("out-of-scope head of chain %d has no reserved slot", headID)
			}
		default:
			if !h.reg.IsReserved(headID) {
				fail("chain %d has no head and no reserved slot", headID)
			}
		}
		if head != nil && h.heads[head] != info {
			fail("head of chain %d is not indexed by identity", headID)
		}
	}
	for head, info := range h.heads {
		if h.chains[info.HeadID] != info {
			fail("identity index points at stale chain %d", info.HeadID)
		}
		if info.Head() != head {
			fail("identity index for chain %d holds a different head", info.HeadID)
		}
	}

	depth := 0
	for i, entry := range h.log {
		if !h.reg.Contains(entry) {
			fail("log entry %d is not registered", i)
		}
		if m := mutation.AsMutate(entry); m != nil {
			info := h.chains[m.EntityID]
			if info == nil {
				fail("log entry %d references untracked entity %d", i, m.EntityID)
			} else if info.IndexOf(m.Snapshot) < 0 {
				fail("log entry %d references a snapshot outside chain %d", i, m.EntityID)
			}
		}
		depth += mutation.GroupDelta(entry)
		if depth < 0 {
			fail("log entry %d closes no group", i)
			depth = 0
		}
	}
	if depth != h.openGroups {
		fail("log has %d unmatched groups, engine counts %d", depth, h.openGroups)
	}
	if h.cursor < -1 || h.cursor > len(h.log) {
		fail("cursor %d outside [-1, %d]", h.cursor, len(h.log))
	}

	return errors.Join(errs...)
}
