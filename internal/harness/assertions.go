package harness

import (
	"fmt"
	"strconv"

	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/testutil"
)

// check evaluates an expect step and returns the failed checks.
func (r *runner) check(step Step) []string {
	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}
	e := step.Expect
	target := r.names[step.Target]

	if e.Value != nil {
		if got, want := valueOf(target), fmt.Sprint(e.Value); got != want {
			fail("%s: value is %q, expected %q", step.Target, got, want)
		}
	}
	if e.ID != nil && target.ID() != *e.ID {
		fail("%s: id is %d, expected %d", step.Target, target.ID(), *e.ID)
	}
	if e.InScope != nil && r.h.Registry().Contains(target) != *e.InScope {
		fail("%s: in scope is %t, expected %t", step.Target, !*e.InScope, *e.InScope)
	}
	if e.Versions != nil {
		got := 0
		if info := r.h.VersionInfo(target); info != nil {
			got = info.Len()
		}
		if got != *e.Versions {
			fail("%s: %d versions, expected %d", step.Target, got, *e.Versions)
		}
	}

	stats := r.h.Stats()
	counters := []struct {
		name string
		want *int
		got  int
	}{
		{"cursor", e.Cursor, stats.CurrentMutation},
		{"mutation_count", e.MutationCount, stats.MutationCount},
		{"slot_count", e.SlotCount, stats.SlotCount},
		{"entities_in_scope", e.EntitiesInScope, stats.EntitiesInScope},
		{"open_groups", e.OpenGroups, stats.OpenGroups},
	}
	for _, c := range counters {
		if c.want != nil && *c.want != c.got {
			fail("%s is %d, expected %d", c.name, c.got, *c.want)
		}
	}
	return failures
}

func valueOf(e record.Entity) string {
	switch t := e.(type) {
	case *testutil.Note:
		return t.Title
	case *testutil.Counter:
		return strconv.Itoa(t.Value)
	}
	return ""
}
