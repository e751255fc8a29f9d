package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/snapstore/internal/harness"
	"github.com/roach88/snapstore/internal/history"
	"github.com/roach88/snapstore/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	ID       string
	Name     string
	Latest   bool
}

// CheckpointSummary describes one decoded checkpoint.
type CheckpointSummary struct {
	Checkpoint store.Checkpoint `json:"checkpoint"`
	Stats      history.Stats    `json:"stats"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List checkpoints or summarize one",
		Long: `List the checkpoints in a database, or decode one and summarize it.

Without --id, every checkpoint (optionally filtered by --name) is listed
oldest first. With --id, or --latest and --name, the checkpoint is decoded
into a store and its slot, scope and log counters are printed.

Examples:
  snapstore inspect --db ./snapstore.db
  snapstore inspect --db ./snapstore.db --name nightly
  snapstore inspect --db ./snapstore.db --name nightly --latest
  snapstore inspect --db ./snapstore.db --id 0190f1a2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "checkpoint id to decode")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only list checkpoints with this name")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "decode the newest checkpoint named --name")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	if opts.Latest && opts.Name == "" {
		return NewExitError(ExitCommandError, "--latest requires --name")
	}
	if opts.Latest && opts.ID != "" {
		return NewExitError(ExitCommandError, "--latest and --id are mutually exclusive")
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.DB
	}
	st, err := store.Open(dbPath, store.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	out := opts.formatter(cmd)

	if opts.ID == "" && !opts.Latest {
		cps, err := st.ListCheckpoints(ctx, opts.Name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list checkpoints", err)
		}
		var b strings.Builder
		if len(cps) == 0 {
			b.WriteString("No checkpoints found.\n")
		}
		for _, cp := range cps {
			fmt.Fprintf(&b, "%4d  %s  %-20s mutations=%d cursor=%d\n", cp.Seq, cp.ID, cp.Name, cp.MutationCount, cp.Cursor)
		}
		return out.Success(cps, b.String())
	}

	var cp store.Checkpoint
	if opts.Latest {
		cp, err = st.LatestCheckpoint(ctx, opts.Name)
	} else {
		cp, err = st.GetCheckpoint(ctx, opts.ID)
	}
	if errors.Is(err, store.ErrNotFound) {
		if outErr := out.Error("E_NOT_FOUND", err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "no such checkpoint", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checkpoint", err)
	}

	h, err := st.LoadHistory(ctx, cp.ID, harness.Types(), history.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to decode checkpoint", err)
	}
	summary := CheckpointSummary{Checkpoint: cp, Stats: h.Stats()}

	var b strings.Builder
	fmt.Fprintf(&b, "checkpoint %s (%s, seq %d)\n", cp.ID, cp.Name, cp.Seq)
	fmt.Fprintf(&b, "  hash:              %s\n", cp.Hash)
	fmt.Fprintf(&b, "  slots:             %d\n", summary.Stats.SlotCount)
	fmt.Fprintf(&b, "  entities in scope: %d\n", summary.Stats.EntitiesInScope)
	fmt.Fprintf(&b, "  chains:            %d\n", summary.Stats.Chains)
	fmt.Fprintf(&b, "  mutations:         %d\n", summary.Stats.MutationCount)
	fmt.Fprintf(&b, "  cursor:            %d\n", summary.Stats.CurrentMutation)
	fmt.Fprintf(&b, "  open groups:       %d\n", summary.Stats.OpenGroups)
	return out.Success(summary, b.String())
}
