// Package harness runs scripted scenarios and seeded stress runs against a
// History.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: undo_walks_back
//	description: "Undo shows each committed value, then leaves scope"
//	config:
//	  max_mutations: 0
//	steps:
//	  - op: new
//	    target: n
//	    value: foo
//	  - op: commit
//	    target: n
//	  - op: undo
//	    returns: true
//	  - op: expect
//	    target: n
//	    expect: { value: foo, cursor: 0 }
//	  - op: end
//	    error: INVALID_OPERATION
//
// Entities are named locally (target) and are either notes (value is the
// title) or counters (value is an integer). Steps that should fail name
// the expected error code; any other error fails the scenario.
//
// Files are decoded with unknown fields rejected, then validated against
// an embedded CUE schema, then checked for op-specific requirements.
//
// # Deterministic Output
//
// Log stamps come from the History's logical clock and registry ids from
// its allocator, so a scenario produces the same trace on every run. The
// trace is compared against testdata/golden with goldie.
//
// # Invariants
//
// After every step the runner calls History.Verify; a violation fails the
// scenario even when every expectation holds.
//
// # Stress
//
// Stress drives a History with random operations drawn from a seeded PCG
// source. A rejected operation must leave the encoded store byte-identical,
// and periodic reloads must round-trip through the codec unchanged.
package harness
