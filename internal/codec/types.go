package codec

import (
	"reflect"
	"slices"

	"github.com/roach88/snapstore/internal/record"
)

// Factory returns a fresh, unregistered entity of one concrete type.
type Factory func() record.Entity

// Types maps type names written into documents to entity factories.
// Every entity type stored in a History must be registered before Encode
// or Decode sees it.
type Types struct {
	factories map[string]Factory
	names     map[reflect.Type]string
}

// NewTypes returns an empty type table.
func NewTypes() *Types {
	return &Types{
		factories: make(map[string]Factory),
		names:     make(map[reflect.Type]string),
	}
}

// Register binds name to the concrete type factory produces.
// Reusing a name or a type is InvalidArgument.
func (t *Types) Register(name string, factory Factory) error {
	const op = "codec.Register"

	if name == "" || factory == nil {
		return record.NewError(record.ErrCodeInvalidArgument, op, "name and factory are required")
	}
	if _, dup := t.factories[name]; dup {
		return record.NewError(record.ErrCodeInvalidArgument, op, "type name %q already registered", name)
	}
	sample := factory()
	if sample == nil {
		return record.NewError(record.ErrCodeInvalidArgument, op, "factory for %q returned nil", name)
	}
	rt := reflect.TypeOf(sample)
	if prev, dup := t.names[rt]; dup {
		return record.NewError(record.ErrCodeInvalidArgument, op, "%s already registered as %q", rt, prev)
	}
	t.factories[name] = factory
	t.names[rt] = name
	return nil
}

// MustRegister is like Register but panics on error.
// Use only for static type tables.
func (t *Types) MustRegister(name string, factory Factory) *Types {
	if err := t.Register(name, factory); err != nil {
		panic(err)
	}
	return t
}

// NameOf returns the registered name of e's concrete type.
func (t *Types) NameOf(e record.Entity) (string, bool) {
	name, ok := t.names[reflect.TypeOf(e)]
	return name, ok
}

// New returns a fresh entity of the named type.
func (t *Types) New(name string) (record.Entity, bool) {
	f, ok := t.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names returns the registered type names in sorted order.
func (t *Types) Names() []string {
	names := make([]string, 0, len(t.factories))
	for name := range t.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
