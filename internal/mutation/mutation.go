// Package mutation defines the entries of the mutation log.
//
// The log is a closed set of immutable facts: Commit, Deregister,
// BeginGroup, and EndGroup. Entry is sealed; no other package can add a
// variant. Every entry carries the logical clock stamp it was appended
// under and is itself a registry record.
package mutation

import (
	"fmt"

	"github.com/roach88/snapstore/internal/record"
)

// Kind names an entry variant. The values are stable and used by codecs.
type Kind string

const (
	KindCommit     Kind = "commit"
	KindDeregister Kind = "deregister"
	KindBeginGroup Kind = "begin_group"
	KindEndGroup   Kind = "end_group"
)

// Entry is one fact in the mutation log.
type Entry interface {
	record.Record

	// Kind identifies the variant.
	Kind() Kind

	// Stamp returns the logical clock value the entry was appended under.
	Stamp() int64

	sealed()
}

type header struct {
	record.Base
	Seq int64
}

func (h *header) Stamp() int64 { return h.Seq }
func (*header) sealed()        {}

// Mutate is the payload shared by Commit and Deregister: the head id of the
// affected entity and the snapshot appended to its chain.
type Mutate struct {
	header
	EntityID int
	Snapshot record.Entity
}

// Commit records that a snapshot of EntityID was appended to its chain.
type Commit struct {
	Mutate
}

// Deregister records that EntityID left scope; Snapshot holds its state at
// that moment.
type Deregister struct {
	Mutate
}

// BeginGroup opens a bracket of entries undone and redone as one step.
type BeginGroup struct {
	header
}

// EndGroup closes the innermost open BeginGroup.
type EndGroup struct {
	header
}

func (*Commit) Kind() Kind     { return KindCommit }
func (*Deregister) Kind() Kind { return KindDeregister }
func (*BeginGroup) Kind() Kind { return KindBeginGroup }
func (*EndGroup) Kind() Kind   { return KindEndGroup }

// NewCommit creates an unregistered Commit entry.
func NewCommit(entityID int, snap record.Entity, seq int64) *Commit {
	return &Commit{Mutate{header: newHeader(seq), EntityID: entityID, Snapshot: snap}}
}

// NewDeregister creates an unregistered Deregister entry.
func NewDeregister(entityID int, snap record.Entity, seq int64) *Deregister {
	return &Deregister{Mutate{header: newHeader(seq), EntityID: entityID, Snapshot: snap}}
}

// NewBeginGroup creates an unregistered BeginGroup entry.
func NewBeginGroup(seq int64) *BeginGroup {
	return &BeginGroup{header: newHeader(seq)}
}

// NewEndGroup creates an unregistered EndGroup entry.
func NewEndGroup(seq int64) *EndGroup {
	return &EndGroup{header: newHeader(seq)}
}

func newHeader(seq int64) header {
	return header{Base: record.NewBase(), Seq: seq}
}

// AsMutate returns the payload of a Commit or Deregister, or nil for brackets.
func AsMutate(e Entry) *Mutate {
	switch t := e.(type) {
	case *Commit:
		return &t.Mutate
	case *Deregister:
		return &t.Mutate
	}
	return nil
}

// GroupDelta is +1 for BeginGroup, -1 for EndGroup and 0 otherwise.
func GroupDelta(e Entry) int {
	switch e.(type) {
	case *BeginGroup:
		return 1
	case *EndGroup:
		return -1
	}
	return 0
}

// Describe renders an entry for logs and traces.
func Describe(e Entry) string {
	if m := AsMutate(e); m != nil {
		return fmt.Sprintf("%s(entity=%d, snapshot=%d, seq=%d)", e.Kind(), m.EntityID, snapshotID(m.Snapshot), e.Stamp())
	}
	return fmt.Sprintf("%s(seq=%d)", e.Kind(), e.Stamp())
}

func snapshotID(s record.Entity) int {
	if s == nil {
		return record.NoID
	}
	return s.ID()
}
