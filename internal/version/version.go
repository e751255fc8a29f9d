// Package version implements the per-entity version chain: an ordered list
// of snapshots plus a cursor. It is pure data plus replay operations; the
// history engine decides when to call them and keeps the registry in sync.
package version

import (
	"slices"

	"github.com/roach88/snapstore/internal/record"
)

// Info is the version chain of one tracked entity, keyed by the entity's
// head id. It is itself a registry record.
//
// CurrentVersion ranges over [-1, len(Versions)]:
//   - len(Versions): the live entity matches the newest snapshot
//   - -1: the entity is out of scope
//   - otherwise: the live entity's fields equal Versions[CurrentVersion]
type Info struct {
	record.Base

	// HeadID is the id of the live entity this chain tracks.
	HeadID int

	// Versions holds snapshots oldest first. Each is a registry record.
	Versions []record.Entity

	// CurrentVersion is the chain cursor.
	CurrentVersion int

	// head is the live entity, parked here while it is out of scope.
	head record.Entity
}

// New creates an empty chain for the entity registered under headID.
func New(headID int, head record.Entity) *Info {
	return &Info{
		Base:   record.NewBase(),
		HeadID: headID,
		head:   head,
	}
}

// Head returns the tracked entity, or nil if it is not known yet
// (a chain rebuilt from a document whose entity was out of scope).
func (v *Info) Head() record.Entity { return v.head }

// SetHead attaches the tracked entity.
func (v *Info) SetHead(e record.Entity) { v.head = e }

// Len returns the number of snapshots.
func (v *Info) Len() int { return len(v.Versions) }

// AtHead reports whether the live entity matches the newest snapshot.
func (v *Info) AtHead() bool { return v.CurrentVersion == len(v.Versions) }

// CommitVersion appends snap and moves the cursor past it.
func (v *Info) CommitVersion(snap record.Entity) {
	v.Versions = append(v.Versions, snap)
	v.CurrentVersion = len(v.Versions)
}

// Undo steps the cursor back one snapshot and copies that snapshot onto
// target. When the cursor reaches -1 target is left untouched; the caller
// is expected to take it out of scope.
func (v *Info) Undo(target record.Entity) {
	if v.CurrentVersion > -1 {
		v.CurrentVersion--
	}
	if v.CurrentVersion >= 0 && v.CurrentVersion < len(v.Versions) {
		v.apply(target, v.Versions[v.CurrentVersion])
	}
}

// Redo copies the snapshot at the cursor onto target (if any) and then
// advances the cursor. A cursor of -1 restarts at the oldest snapshot.
func (v *Info) Redo(target record.Entity) {
	if v.CurrentVersion < 0 {
		v.CurrentVersion = 0
	}
	if v.CurrentVersion < len(v.Versions) {
		v.apply(target, v.Versions[v.CurrentVersion])
	}
	if v.CurrentVersion < len(v.Versions) {
		v.CurrentVersion++
	}
}

// Revert reloads the snapshot nearest the cursor without moving it.
// Returns false when the chain has no snapshots.
func (v *Info) Revert(target record.Entity) bool {
	if len(v.Versions) == 0 {
		return false
	}
	idx := min(max(v.CurrentVersion, 0), len(v.Versions)-1)
	v.apply(target, v.Versions[idx])
	return true
}

// IndexOf returns the position of snap (by identity), or -1.
func (v *Info) IndexOf(snap record.Entity) int {
	for i, s := range v.Versions {
		if s == snap {
			return i
		}
	}
	return -1
}

// RemoveVersion splices snap out of the chain and returns its former index,
// or -1 if the chain does not hold it. The cursor moves left when the
// removed index was at or before it.
func (v *Info) RemoveVersion(snap record.Entity) int {
	idx := v.IndexOf(snap)
	if idx < 0 {
		return -1
	}
	v.Versions = slices.Delete(v.Versions, idx, idx+1)
	if idx <= v.CurrentVersion {
		v.CurrentVersion--
	}
	return idx
}

func (v *Info) apply(target, snap record.Entity) {
	target.CopyFrom(snap)
	target.SetID(v.HeadID)
}
