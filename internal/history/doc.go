// Package history implements the transactional core of the store: the
// mutation log state machine that ties the registry and the per-entity
// version chains together.
//
// ARCHITECTURE:
//
// Single Writer:
// A History is synchronous and single-threaded. Every public operation runs
// to completion before returning and either applies all of its effects or,
// on error, none of them. Callers serialize access externally.
//
// Layers:
//  1. registry.Registry owns ids for every record: live entities, their
//     snapshots, version chains, and log entries.
//  2. version.Info is the snapshot list and cursor of one tracked entity.
//  3. mutation.Entry is one immutable fact in the log.
//  4. History orchestrates Commit, Deregister, Revert, Undo, Redo, groups,
//     and compaction against the layers below.
//
// Log Cursor:
// CurrentMutation ranges over [-1, MutationCount]. MutationCount is the head
// (everything applied), -1 the tail. An entry at index i is in effect when
// i < CurrentMutation. Undo lands on the entry it replayed backward, so the
// live record shows that entry's snapshot; one more Undo past an entity's
// first retained commit takes it out of scope (Id = -1, slot reserved).
//
// Groups:
// BeginGroup/EndGroup bracket entries that Undo and Redo traverse as one
// step. Brackets nest; Undo and Redo are rejected while any group is open.
//
// Compaction:
// DeleteMutation removes an entry and its snapshot; deleting a BeginGroup
// cascades to its matching EndGroup. With MaxMutations > 0, every append is
// followed by a cutoff that deletes mutation 0 until the bound holds.
//
// Entities are tracked by pointer identity. History navigation mutates the
// object the caller holds via Entity.CopyFrom; it never replaces it.
package history
