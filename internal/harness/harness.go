package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/snapstore/internal/codec"
	"github.com/roach88/snapstore/internal/config"
	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/record"
	"github.com/roach88/snapstore/internal/testutil"
)

// Option configures a run.
type Option func(*runner)

// WithConfig sets the base settings a scenario's config block overrides.
// Default: config.Default().
func WithConfig(cfg config.Config) Option {
	return func(r *runner) {
		r.cfg = cfg
	}
}

// WithLogger sets the logger handed to the History. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type runner struct {
	cfg    config.Config
	logger *slog.Logger
	types  *codec.Types

	h      *history.History
	names  map[string]record.Entity
	result *Result
}

// Run executes a scenario against a fresh History and returns the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	result, _, err := RunHistory(scenario, opts...)
	return result, err
}

// RunHistory is like Run but also returns the History in its final state.
//
// A returned error means the scenario could not run at all (bad entity
// type, encode failure); failed expectations are reported in the Result.
func RunHistory(scenario *Scenario, opts ...Option) (*Result, *history.History, error) {
	r := &runner{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		types:  Types(),
		names:  make(map[string]record.Entity),
		result: NewResult(),
	}
	for _, opt := range opts {
		opt(r)
	}

	cfg := r.cfg
	if sc := scenario.Config; sc != nil {
		if sc.MaxSlots != nil {
			cfg.MaxSlots = *sc.MaxSlots
		}
		if sc.MaxMutations != nil {
			cfg.MaxMutations = *sc.MaxMutations
		}
		if sc.DeleteOutOfScopeVersions != nil {
			cfg.DeleteOutOfScopeVersions = *sc.DeleteOutOfScopeVersions
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	r.h = history.New(append(cfg.HistoryOptions(), history.WithLogger(r.logger))...)

	for i, step := range scenario.Steps {
		if err := r.step(i, step); err != nil {
			return nil, nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		if err := r.h.Verify(); err != nil {
			r.result.AddError(fmt.Sprintf("step %d (%s): invariant violated: %v", i, step.Op, err))
		}
	}

	r.result.Final = r.h.Stats()
	data, err := codec.Encode(r.h, r.types)
	if err != nil {
		return nil, nil, fmt.Errorf("encode final store: %w", err)
	}
	r.result.Hash = codec.Hash(data)

	r.logger.Info("scenario finished", "scenario", scenario.Name, "pass", r.result.Pass, "steps", len(scenario.Steps))
	return r.result, r.h, nil
}

// step executes one step, records its trace event and checks its
// expected outcome.
func (r *runner) step(i int, step Step) error {
	var (
		ok    *bool
		opErr error
	)
	target := r.names[step.Target]

	switch step.Op {
	case OpNew:
		e, err := newEntity(step.Type, step.Value)
		if err != nil {
			return err
		}
		r.names[step.Target] = e
	case OpSet:
		if err := setValue(target, step.Value); err != nil {
			return err
		}
	case OpCommit:
		opErr = r.h.Commit(target)
	case OpDeregister:
		opErr = r.h.Deregister(target)
	case OpRevert:
		opErr = r.h.Revert(target)
	case OpUndo, OpRedo:
		count := max(step.Count, 1)
		var res bool
		if step.Op == OpUndo {
			res, opErr = r.h.UndoN(count)
		} else {
			res, opErr = r.h.RedoN(count)
		}
		if opErr == nil {
			ok = &res
		}
	case OpBegin:
		opErr = r.h.BeginGroup()
	case OpEnd:
		opErr = r.h.EndGroup()
	case OpDeleteMutation:
		opErr = r.h.DeleteMutation(*step.Index)
	case OpReload:
		if err := r.reload(); err != nil {
			return err
		}
	case OpExpect:
		for _, msg := range r.check(step) {
			r.result.AddError(fmt.Sprintf("step %d (expect): %s", i, msg))
		}
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	code := ""
	if opErr != nil {
		var re *record.Error
		if !errors.As(opErr, &re) {
			return opErr
		}
		code = string(re.Code)
	}
	switch {
	case step.Error != "" && code == "":
		r.result.AddError(fmt.Sprintf("step %d (%s): expected %s, got success", i, step.Op, step.Error))
	case step.Error != "" && code != step.Error:
		r.result.AddError(fmt.Sprintf("step %d (%s): expected %s, got %v", i, step.Op, step.Error, opErr))
	case step.Error == "" && opErr != nil:
		r.result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Op, opErr))
	}
	if step.Returns != nil && ok != nil && *step.Returns != *ok {
		r.result.AddError(fmt.Sprintf("step %d (%s): returned %t, expected %t", i, step.Op, *ok, *step.Returns))
	}

	stats := r.h.Stats()
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Step:      i,
		Op:        step.Op,
		Target:    step.Target,
		OK:        ok,
		Error:     code,
		Cursor:    stats.CurrentMutation,
		Mutations: stats.MutationCount,
		Slots:     stats.SlotCount,
		InScope:   stats.EntitiesInScope,
	})
	return nil
}

// reload round-trips the store through the codec and rebinds scenario
// names to the decoded entities by head id.
func (r *runner) reload() error {
	heads := make(map[string]int, len(r.names))
	for name, e := range r.names {
		if info := r.h.VersionInfo(e); info != nil {
			heads[name] = info.HeadID
		}
	}

	data, err := codec.Encode(r.h, r.types)
	if err != nil {
		return err
	}
	decoded, err := codec.Decode(data, r.types, history.WithLogger(r.logger))
	if err != nil {
		return err
	}

	for name, headID := range heads {
		if head := decoded.Head(headID); head != nil {
			r.names[name] = head
		}
	}
	r.h = decoded
	return nil
}

func newEntity(typ string, value any) (record.Entity, error) {
	switch typ {
	case "", TypeNote:
		n := testutil.NewNote("")
		if value != nil {
			n.Title = fmt.Sprint(value)
		}
		return n, nil
	case TypeCounter:
		c := testutil.NewCounter("", 0)
		if err := setValue(c, value); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", typ)
}

func setValue(e record.Entity, value any) error {
	switch t := e.(type) {
	case *testutil.Note:
		t.Title = fmt.Sprint(value)
	case *testutil.Counter:
		if value == nil {
			return nil
		}
		n, ok := value.(int)
		if !ok {
			return fmt.Errorf("counter value must be an integer, got %v", value)
		}
		t.Value = n
	default:
		return fmt.Errorf("unsupported entity type %T", e)
	}
	return nil
}
