package record

// NoID is the id of a record that is unregistered or out of scope.
const NoID = -1

// Record is anything that can occupy a registry slot.
type Record interface {
	ID() int
	SetID(id int)
}

// Entity is a Record whose state can be captured and replayed by history.
//
// Clone must return a deep copy that shares no mutable state with the
// receiver. CopyFrom must copy every field except the id from src, which is
// always the same concrete type as the receiver.
type Entity interface {
	Record
	Clone() Entity
	CopyFrom(src Entity)
}

// Base carries the id of a record and implements the id half of Record.
// Embed it by value and initialize it with NewBase.
type Base struct {
	Id int `json:"id"`
}

// NewBase returns an unregistered Base.
func NewBase() Base {
	return Base{Id: NoID}
}

// ID returns the registry id, or NoID.
func (b *Base) ID() int { return b.Id }

// SetID sets the registry id.
func (b *Base) SetID(id int) { b.Id = id }

// Registered reports whether the record currently carries an id.
func (b *Base) Registered() bool { return b.Id != NoID }
