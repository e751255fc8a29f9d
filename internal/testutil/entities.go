// Package testutil provides entity types and helpers shared by tests,
// the scenario harness and the stress driver.
package testutil

import (
	"slices"

	"github.com/roach88/snapstore/internal/record"
)

// Note is a small text record used by scenarios and tests.
type Note struct {
	record.Base
	Title string   `json:"title"`
	Body  string   `json:"body,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// NewNote returns an unregistered Note.
func NewNote(title string) *Note {
	return &Note{Base: record.NewBase(), Title: title}
}

// Clone returns a deep copy.
func (n *Note) Clone() record.Entity {
	c := *n
	c.Tags = slices.Clone(n.Tags)
	return &c
}

// CopyFrom copies every field but the id from src.
func (n *Note) CopyFrom(src record.Entity) {
	s := src.(*Note)
	n.Title = s.Title
	n.Body = s.Body
	n.Tags = slices.Clone(s.Tags)
}

// Counter is a second entity type so tests cover more than one concrete type.
type Counter struct {
	record.Base
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// NewCounter returns an unregistered Counter.
func NewCounter(name string, value int) *Counter {
	return &Counter{Base: record.NewBase(), Name: name, Value: value}
}

// Clone returns a copy.
func (c *Counter) Clone() record.Entity {
	cp := *c
	return &cp
}

// CopyFrom copies every field but the id from src.
func (c *Counter) CopyFrom(src record.Entity) {
	s := src.(*Counter)
	c.Name = s.Name
	c.Value = s.Value
}
