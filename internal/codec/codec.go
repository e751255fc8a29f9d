// Package codec serializes a History, with its registry, version chains
// and mutation log, to a canonical JSON document and back.
//
// Every record is written once under its registry id; chains and log
// entries refer to other records by id. Entities whose slot is reserved
// are not written: the decoded History rehydrates them from their oldest
// retained snapshot when first needed.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/mutation"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/registry"
	"github.com/roach88/snapstore/internal/version"
)

// FormatVersion is written into every document.
const FormatVersion = 1

// DomainCheckpoint separates checkpoint hashes from any other sha256 use.
const DomainCheckpoint = "snapstore/checkpoint/v1"

// Record kinds.
const (
	KindEntity     = "entity"
	KindSnapshot   = "snapshot"
	KindChain      = "chain"
	KindCommit     = string(mutation.KindCommit)
	KindDeregister = string(mutation.KindDeregister)
	KindBeginGroup = string(mutation.KindBeginGroup)
	KindEndGroup   = string(mutation.KindEndGroup)
)

// Document is the serialized form of a History.
type Document struct {
	Format                   int         `json:"format"`
	MaxSlots                 int         `json:"max_slots"`
	NextID                   int         `json:"next_id"`
	Reserved                 []int       `json:"reserved"`
	Records                  []RecordDoc `json:"records"`
	Log                      []int       `json:"log"`
	Cursor                   int         `json:"cursor"`
	Clock                    int64       `json:"clock"`
	MaxMutations             int         `json:"max_mutations"`
	DeleteOutOfScopeVersions bool        `json:"delete_out_of_scope_versions"`
}

// RecordDoc is one occupied registry slot.
type RecordDoc struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`

	// Type and Payload are set for entities and snapshots.
	Type    string          `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Chain is set for version chains.
	Chain *ChainDoc `json:"chain,omitempty"`

	// Seq is set for log entries; Target only for Commit and Deregister.
	Seq    int64      `json:"seq,omitempty"`
	Target *TargetDoc `json:"target,omitempty"`
}

// ChainDoc describes a version chain.
type ChainDoc struct {
	HeadID         int   `json:"head_id"`
	Versions       []int `json:"versions"`
	CurrentVersion int   `json:"current_version"`
}

// TargetDoc is the payload of a Commit or Deregister entry.
type TargetDoc struct {
	EntityID int `json:"entity_id"`
	Snapshot int `json:"snapshot"`
}

// Snapshot builds the Document describing h.
func Snapshot(h *history.History, types *Types) (*Document, error) {
	const op = "codec.Snapshot"

	reg := h.Registry()
	doc := &Document{
		Format:                   FormatVersion,
		MaxSlots:                 reg.MaxSlots(),
		NextID:                   reg.NextID(),
		Reserved:                 reg.ReservedIDs(),
		Records:                  []RecordDoc{},
		Log:                      make([]int, 0, h.MutationCount()),
		Cursor:                   h.CurrentMutation(),
		Clock:                    h.Clock().Current(),
		MaxMutations:             h.MaxMutations(),
		DeleteOutOfScopeVersions: h.DeleteOutOfScopeVersions(),
	}
	if doc.Reserved == nil {
		doc.Reserved = []int{}
	}

	snapshots := make(map[record.Entity]bool)
	for _, rec := range reg.All() {
		if info, ok := rec.(*version.Info); ok {
			for _, v := range info.Versions {
				snapshots[v] = true
			}
		}
	}

	for id, rec := range reg.All() {
		rd := RecordDoc{ID: id}
		switch r := rec.(type) {
		case *version.Info:
			rd.Kind = KindChain
			rd.Chain = &ChainDoc{
				HeadID:         r.HeadID,
				Versions:       make([]int, len(r.Versions)),
				CurrentVersion: r.CurrentVersion,
			}
			for i, v := range r.Versions {
				rd.Chain.Versions[i] = v.ID()
			}
		case mutation.Entry:
			rd.Kind = string(r.Kind())
			rd.Seq = r.Stamp()
			if m := mutation.AsMutate(r); m != nil {
				rd.Target = &TargetDoc{EntityID: m.EntityID, Snapshot: m.Snapshot.ID()}
			}
		case record.Entity:
			rd.Kind = KindEntity
			if snapshots[r] {
				rd.Kind = KindSnapshot
			}
			name, ok := types.NameOf(r)
			if !ok {
				return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, id,
					"entity type %T is not registered", r)
			}
			payload, err := json.Marshal(r)
			if err != nil {
				return nil, fmt.Errorf("%s: record %d: %w", op, id, err)
			}
			rd.Type = name
			rd.Payload = payload
		default:
			return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, id,
				"record type %T cannot be serialized", rec)
		}
		doc.Records = append(doc.Records, rd)
	}

	for i, entry := range h.Mutations() {
		if !reg.Contains(entry) {
			return nil, record.NewError(record.ErrCodeInvalidArgument, op, "log entry %d is not registered", i)
		}
		doc.Log = append(doc.Log, entry.ID())
	}
	return doc, nil
}

// Encode serializes h to canonical JSON.
func Encode(h *history.History, types *Types) ([]byte, error) {
	doc, err := Snapshot(h, types)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(doc)
}

// Parse reads a Document, rejecting unknown fields.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, record.NewError(record.ErrCodeInvalidArgument, "codec.Parse", "invalid document: %v", err)
	}
	if doc.Format != FormatVersion {
		return nil, record.NewError(record.ErrCodeInvalidArgument, "codec.Parse",
			"unsupported format %d (want %d)", doc.Format, FormatVersion)
	}
	return &doc, nil
}

// Decode rebuilds a History from data. opts are applied after the
// document's own settings, so a caller may override the logger or bounds.
func Decode(data []byte, types *Types, opts ...history.Option) (*history.History, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return Build(doc, types, opts...)
}

// Build rebuilds a History from a parsed Document.
func Build(doc *Document, types *Types, opts ...history.Option) (*history.History, error) {
	const op = "codec.Build"

	reg := registry.New(registry.WithMaxSlots(doc.MaxSlots))
	byID := make(map[int]record.Record, len(doc.Records))
	place := func(id int, rec record.Record) error {
		if _, dup := byID[id]; dup {
			return record.NewIDError(record.ErrCodeInvalidArgument, op, id, "duplicate record id")
		}
		rec.SetID(record.NoID)
		if err := reg.SetSlot(id, rec); err != nil {
			return err
		}
		byID[id] = rec
		return nil
	}
	entity := func(id int) (record.Entity, error) {
		e, ok := byID[id].(record.Entity)
		if !ok {
			return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, id, "not an entity record")
		}
		return e, nil
	}

	// Entities, snapshots and chain shells first; chains and entries refer
	// to them.
	for _, rd := range doc.Records {
		switch rd.Kind {
		case KindEntity, KindSnapshot:
			e, ok := types.New(rd.Type)
			if !ok {
				return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, rd.ID,
					"unknown entity type %q", rd.Type)
			}
			if err := json.Unmarshal(rd.Payload, e); err != nil {
				return nil, fmt.Errorf("%s: record %d: %w", op, rd.ID, err)
			}
			if err := place(rd.ID, e); err != nil {
				return nil, err
			}
		case KindChain:
			if rd.Chain == nil {
				return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, rd.ID, "chain record without chain")
			}
			info := version.New(rd.Chain.HeadID, nil)
			info.CurrentVersion = rd.Chain.CurrentVersion
			if err := place(rd.ID, info); err != nil {
				return nil, err
			}
		}
	}

	for _, rd := range doc.Records {
		switch rd.Kind {
		case KindEntity, KindSnapshot:
		case KindChain:
			info := byID[rd.ID].(*version.Info)
			for _, vid := range rd.Chain.Versions {
				v, err := entity(vid)
				if err != nil {
					return nil, err
				}
				info.Versions = append(info.Versions, v)
			}
		case KindCommit, KindDeregister:
			if rd.Target == nil {
				return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, rd.ID, "%s record without target", rd.Kind)
			}
			snap, err := entity(rd.Target.Snapshot)
			if err != nil {
				return nil, err
			}
			var entry mutation.Entry = mutation.NewCommit(rd.Target.EntityID, snap, rd.Seq)
			if rd.Kind == KindDeregister {
				entry = mutation.NewDeregister(rd.Target.EntityID, snap, rd.Seq)
			}
			if err := place(rd.ID, entry); err != nil {
				return nil, err
			}
		case KindBeginGroup:
			if err := place(rd.ID, mutation.NewBeginGroup(rd.Seq)); err != nil {
				return nil, err
			}
		case KindEndGroup:
			if err := place(rd.ID, mutation.NewEndGroup(rd.Seq)); err != nil {
				return nil, err
			}
		default:
			return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, rd.ID, "unknown record kind %q", rd.Kind)
		}
	}

	for _, id := range doc.Reserved {
		if _, occupied := byID[id]; occupied {
			return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, id, "reserved slot is also occupied")
		}
		if err := reg.Reserve(id); err != nil {
			return nil, err
		}
	}
	reg.SetNextID(doc.NextID)

	log := make([]mutation.Entry, len(doc.Log))
	for i, id := range doc.Log {
		entry, ok := byID[id].(mutation.Entry)
		if !ok {
			return nil, record.NewIDError(record.ErrCodeInvalidArgument, op, id, "log position %d is not a log entry", i)
		}
		log[i] = entry
	}

	base := []history.Option{
		history.WithMaxMutations(doc.MaxMutations),
		history.WithDeleteOutOfScopeVersions(doc.DeleteOutOfScopeVersions),
		history.WithClock(history.NewClockAt(doc.Clock)),
	}
	h, err := history.Restore(reg, log, doc.Cursor, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := h.Verify(); err != nil {
		return nil, record.NewError(record.ErrCodeInvalidArgument, op, "inconsistent document: %v", err)
	}
	return h, nil
}

// Hash returns the domain-separated sha256 of canonical document bytes.
func Hash(data []byte) string {
	sum := sha256.New()
	sum.Write([]byte(DomainCheckpoint))
	sum.Write([]byte{0x00})
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil))
}
