// Package record defines the identity contract shared by every layer of the
// store: registry occupants, history-tracked entities, and the coded errors
// the layers return.
//
// IDENTITY:
//
// Every occupant of the registry is a Record with a stable integer id.
// NoID (-1) marks a record that is not registered or is temporarily out of
// scope. An occupied slot always holds a record whose ID() equals the slot key.
//
// ENTITIES:
//
// An Entity is a Record that history can snapshot. Clone produces an
// independent deep copy (the snapshot); CopyFrom applies a snapshot onto the
// live object in place. Entities must be pointer types: history navigation
// mutates the exact object the caller holds, and the engine tracks entities
// by pointer identity.
package record
