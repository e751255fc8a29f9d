package harness

import (
	"github.com/roach88/snapstore/internal/codec"
	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/testutil"
)

// TraceEvent records one executed step and the store counters after it.
type TraceEvent struct {
	Step      int    `json:"step"`
	Op        string `json:"op"`
	Target    string `json:"target,omitempty"`
	OK        *bool  `json:"ok,omitempty"`
	Error     string `json:"error,omitempty"`
	Cursor    int    `json:"cursor"`
	Mutations int    `json:"mutations"`
	Slots     int    `json:"slots"`
	InScope   int    `json:"in_scope"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation held and no invariant broke.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final holds the store counters after the last step.
	Final history.Stats `json:"final"`

	// Hash is the checkpoint hash of the final store.
	Hash string `json:"hash"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Types returns the codec type table for the entity types scenarios and
// stress runs create.
func Types() *codec.Types {
	return codec.NewTypes().
		MustRegister(TypeNote, func() record.Entity { return &testutil.Note{} }).
		MustRegister(TypeCounter, func() record.Entity { return &testutil.Counter{} })
}
