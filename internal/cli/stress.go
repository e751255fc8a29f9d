package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/snapstore/internal/harness"
)

// StressOptions holds flags for the stress command.
type StressOptions struct {
	*RootOptions
	Seed        uint64
	Steps       int
	ReloadEvery int

	// Zero (or unset) takes the value from config.
	MaxSlots     int
	MaxMutations int
	DeleteAll    bool
}

// NewStressCommand creates the stress command.
func NewStressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run the randomized stress driver",
		Long: `Drive a store with seeded random operations, checking its invariants
after every step and that failed operations change nothing.

The same seed always replays the same run.

Examples:
  snapstore stress --seed 42 --steps 5000
  snapstore stress --seed 7 --max-slots 128 --max-mutations 16 --delete-out-of-scope`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(opts, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&opts.Steps, "steps", 1000, "number of random operations")
	cmd.Flags().IntVar(&opts.ReloadEvery, "reload-every", 50, "codec round trip interval (0 disables)")
	cmd.Flags().IntVar(&opts.MaxSlots, "max-slots", 0, "slot bound (default from config)")
	cmd.Flags().IntVar(&opts.MaxMutations, "max-mutations", 0, "mutation bound (default from config)")
	cmd.Flags().BoolVar(&opts.DeleteAll, "delete-out-of-scope", false, "delete emptied chains and their entities")

	return cmd
}

func runStress(opts *StressOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	sc := harness.StressConfig{
		Seed:                     opts.Seed,
		Steps:                    opts.Steps,
		MaxSlots:                 cfg.MaxSlots,
		MaxMutations:             cfg.MaxMutations,
		DeleteOutOfScopeVersions: cfg.DeleteOutOfScopeVersions || opts.DeleteAll,
		ReloadEvery:              opts.ReloadEvery,
		Logger:                   opts.logger(cfg, cmd.ErrOrStderr()),
	}
	if opts.MaxSlots > 0 {
		sc.MaxSlots = opts.MaxSlots
	}
	if opts.MaxMutations > 0 {
		sc.MaxMutations = opts.MaxMutations
	}

	out := opts.formatter(cmd)
	out.VerboseLog("stress: seed=%d steps=%d max_slots=%d max_mutations=%d", sc.Seed, sc.Steps, sc.MaxSlots, sc.MaxMutations)

	report, err := harness.Stress(sc)
	if err != nil {
		return out.Failure("E_STRESS_FAILED", err.Error(), report, fmt.Sprintf("✗ %v\n", err))
	}
	return out.Success(report, formatStressReport(report))
}

func formatStressReport(r *harness.StressReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ seed %d: %d steps, %d reloads\n", r.Seed, r.Steps, r.Reloads)
	for _, op := range slices.Sorted(maps.Keys(r.Ops)) {
		fmt.Fprintf(&b, "  %-16s %d\n", op, r.Ops[op])
	}
	for _, code := range slices.Sorted(maps.Keys(r.Errors)) {
		fmt.Fprintf(&b, "  rejected %s: %d\n", code, r.Errors[code])
	}
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "  skipped for group headroom: %d\n", r.Skipped)
	}
	fmt.Fprintf(&b, "  final: slots=%d in_scope=%d mutations=%d cursor=%d\n",
		r.Final.SlotCount, r.Final.EntitiesInScope, r.Final.MutationCount, r.Final.CurrentMutation)
	fmt.Fprintf(&b, "  hash: %s\n", r.Hash)
	return b.String()
}
