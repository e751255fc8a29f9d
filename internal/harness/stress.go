package harness

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/roach88/snapstore/internal/codec"
	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/mutation"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/registry"
	"github.com/roach88/snapstore/internal/testutil"
)

// StressConfig configures a randomized run.
type StressConfig struct {
	// Seed makes the run reproducible.
	Seed uint64

	// Steps is the number of random operations. Default: 1000.
	Steps int

	MaxSlots                 int
	MaxMutations             int
	DeleteOutOfScopeVersions bool

	// ReloadEvery round-trips the store through the codec every n steps.
	// Zero disables reloads.
	ReloadEvery int

	Logger *slog.Logger
}

// StressReport summarizes a randomized run.
type StressReport struct {
	Seed    uint64         `json:"seed"`
	Steps   int            `json:"steps"`
	Ops     map[string]int `json:"ops"`
	Errors  map[string]int `json:"errors"`
	Reloads int            `json:"reloads"`
	Skipped int            `json:"skipped"`
	Final   history.Stats  `json:"final"`
	Hash    string         `json:"hash"`
}

const maxStressGroups = 3

var stressOps = []string{
	OpNew, OpNew, OpSet, OpSet, OpSet,
	OpDeregister, OpRevert,
	OpUndo, OpUndo, OpRedo, OpRedo,
	OpBegin, OpEnd, OpDeleteMutation,
}

type stresser struct {
	cfg    StressConfig
	rng    *rand.Rand
	types  *codec.Types
	h      *history.History
	report *StressReport
}

// Stress drives a History with random operations and checks after every
// step that its invariants hold and that a failed operation changed
// nothing. Every ReloadEvery steps the store is encoded, decoded and
// encoded again; both encodings must match.
//
// When DeleteOutOfScopeVersions is set the run ends by closing open groups
// and deleting every mutation, which must leave no slot in use.
//
// Returns an error describing the first violation.
func Stress(cfg StressConfig) (*StressReport, error) {
	if cfg.Steps <= 0 {
		cfg.Steps = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &stresser{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		types: Types(),
		h: history.New(
			history.WithRegistry(registry.New(registry.WithMaxSlots(cfg.MaxSlots))),
			history.WithMaxMutations(cfg.MaxMutations),
			history.WithDeleteOutOfScopeVersions(cfg.DeleteOutOfScopeVersions),
			history.WithLogger(cfg.Logger),
		),
		report: &StressReport{
			Seed:   cfg.Seed,
			Steps:  cfg.Steps,
			Ops:    make(map[string]int),
			Errors: make(map[string]int),
		},
	}

	for i := 0; i < cfg.Steps; i++ {
		if err := s.step(); err != nil {
			return s.report, fmt.Errorf("seed %d, step %d: %w", cfg.Seed, i, err)
		}
		if cfg.ReloadEvery > 0 && (i+1)%cfg.ReloadEvery == 0 {
			if err := s.reload(); err != nil {
				return s.report, fmt.Errorf("seed %d, step %d: reload: %w", cfg.Seed, i, err)
			}
		}
	}

	if err := s.drain(); err != nil {
		return s.report, fmt.Errorf("seed %d: drain: %w", cfg.Seed, err)
	}

	s.report.Final = s.h.Stats()
	data, err := codec.Encode(s.h, s.types)
	if err != nil {
		return s.report, err
	}
	s.report.Hash = codec.Hash(data)
	cfg.Logger.Info("stress finished", "seed", cfg.Seed, "steps", cfg.Steps, "reloads", s.report.Reloads)
	return s.report, nil
}

func (s *stresser) step() error {
	op := stressOps[s.rng.IntN(len(stressOps))]
	s.report.Ops[op]++

	// Field edits on a live entity happen outside the store, so the
	// before-image is taken after them.
	var call func() error
	switch op {
	case OpNew:
		if !s.roomFor(4, 0) {
			return nil
		}
		e := s.newEntity()
		call = func() error { return s.h.Commit(e) }
	case OpSet:
		e := s.pickHead()
		if e == nil {
			return nil
		}
		need := 2
		if s.h.VersionInfo(e) == nil {
			need = 4
		}
		if !s.roomFor(need, 0) {
			return nil
		}
		s.edit(e)
		call = func() error { return s.h.Commit(e) }
	case OpDeregister:
		e := s.pickHead()
		if e == nil || !s.roomFor(2, 0) {
			return nil
		}
		call = func() error { return s.h.Deregister(e) }
	case OpRevert:
		e := s.pickHead()
		if e == nil {
			return nil
		}
		call = func() error { return s.h.Revert(e) }
	case OpUndo:
		call = func() error { _, err := s.h.Undo(); return err }
	case OpRedo:
		call = func() error { _, err := s.h.Redo(); return err }
	case OpBegin:
		if s.h.OpenGroupCount() >= maxStressGroups || !s.roomFor(1, 1) {
			return nil
		}
		call = s.h.BeginGroup
	case OpEnd:
		call = s.h.EndGroup
	case OpDeleteMutation:
		n := s.h.MutationCount()
		if n == 0 {
			return nil
		}
		index := s.rng.IntN(n)
		call = func() error { return s.h.DeleteMutation(index) }
	}

	before, err := codec.Encode(s.h, s.types)
	if err != nil {
		return err
	}
	stats := s.h.Stats()

	if opErr := call(); opErr != nil {
		code := record.CodeOf(opErr)
		if code == "" {
			return fmt.Errorf("%s: unexpected error: %w", op, opErr)
		}
		s.report.Errors[string(code)]++

		if after := s.h.Stats(); after != stats {
			return fmt.Errorf("%s failed with %v but changed counters from %+v to %+v", op, opErr, stats, after)
		}
		after, err := codec.Encode(s.h, s.types)
		if err != nil {
			return err
		}
		if !bytes.Equal(before, after) {
			return fmt.Errorf("%s failed with %v but changed the store", op, opErr)
		}
	}

	if err := s.h.Verify(); err != nil {
		return fmt.Errorf("after %s: %w", op, err)
	}
	return nil
}

// roomFor reports whether an append needing slots may run. Inside a group
// one free slot is kept for every EndGroup still to come; opens is the
// number of groups the append itself opens.
func (s *stresser) roomFor(slots, opens int) bool {
	ends := s.h.OpenGroupCount() + opens
	if ends == 0 {
		return true
	}
	reg := s.h.Registry()
	if reg.MaxSlots()-reg.SlotCount() >= slots+ends {
		return true
	}
	s.report.Skipped++
	return false
}

// reload replaces the History with its decoded encoding.
func (s *stresser) reload() error {
	data, err := codec.Encode(s.h, s.types)
	if err != nil {
		return err
	}
	decoded, err := codec.Decode(data, s.types, history.WithLogger(s.cfg.Logger))
	if err != nil {
		return err
	}
	again, err := codec.Encode(decoded, s.types)
	if err != nil {
		return err
	}
	if !bytes.Equal(data, again) {
		return fmt.Errorf("decoded store encodes differently")
	}
	s.h = decoded
	s.report.Reloads++
	return nil
}

// drain closes open groups and, when out-of-scope versions are deleted,
// removes every mutation. An EndGroup refused for lack of a slot is retried
// after deleting the newest mutation that can go.
func (s *stresser) drain() error {
	for s.h.OpenGroupCount() > 0 {
		err := s.h.EndGroup()
		if record.IsCapacityExceeded(err) {
			err = s.freeSlot()
		}
		if err != nil {
			return err
		}
	}
	if !s.cfg.DeleteOutOfScopeVersions {
		return s.h.Verify()
	}
	for s.h.MutationCount() > 0 {
		if err := s.h.DeleteMutation(0); err != nil {
			return err
		}
		if err := s.h.Verify(); err != nil {
			return err
		}
	}
	if n := s.h.Registry().SlotCount(); n != 0 {
		return fmt.Errorf("%d slots still in use after deleting every mutation", n)
	}
	return nil
}

// freeSlot deletes the newest mutation that is neither an EndGroup nor an
// open BeginGroup. Every deleted entry gives back at least its own slot.
func (s *stresser) freeSlot() error {
	for i := s.h.MutationCount() - 1; i >= 0; i-- {
		if _, end := s.h.Mutation(i).(*mutation.EndGroup); end || s.h.IsGroupOpen(i) {
			continue
		}
		s.cfg.Logger.Debug("freeing slot for EndGroup", "mutation", i)
		if err := s.h.DeleteMutation(i); err != nil {
			return err
		}
		return s.h.Verify()
	}
	return fmt.Errorf("no mutation can be deleted to free a slot for EndGroup")
}

func (s *stresser) newEntity() record.Entity {
	if s.rng.IntN(2) == 0 {
		return testutil.NewNote(fmt.Sprintf("n%d", s.rng.IntN(100)))
	}
	return testutil.NewCounter("c", s.rng.IntN(100))
}

// pickHead returns a random tracked entity, in scope or not.
func (s *stresser) pickHead() record.Entity {
	ids := s.h.HeadIDs()
	if len(ids) == 0 {
		return nil
	}
	return s.h.Head(ids[s.rng.IntN(len(ids))])
}

func (s *stresser) edit(e record.Entity) {
	switch t := e.(type) {
	case *testutil.Note:
		t.Title = fmt.Sprintf("n%d", s.rng.IntN(100))
	case *testutil.Counter:
		t.Value += s.rng.IntN(10) + 1
	}
}
