package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/snapstore/internal/harness"
	"github.com/roach88/snapstore/internal/store"
)

// CheckpointOptions holds flags for the checkpoint command.
type CheckpointOptions struct {
	*RootOptions
	Database string
	Name     string
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckpointOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkpoint <scenario.yaml>",
		Short: "Run a scenario and save the resulting store",
		Long: `Run a scenario and save the encoded store as a checkpoint in a SQLite
database (created if it doesn't exist).

Saving an identical store under the same name twice returns the existing
checkpoint. The checkpoint name defaults to the scenario name.

Examples:
  snapstore checkpoint tail_rule.yaml --db ./snapstore.db
  snapstore checkpoint group_undo.yaml --db ./snapstore.db --name nightly`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoint(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "checkpoint name (default: scenario name)")

	return cmd
}

func runCheckpoint(opts *CheckpointOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	result, h, err := harness.RunHistory(scenario, harness.WithConfig(cfg), harness.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitFailure, "scenario execution failed", err)
	}
	out := opts.formatter(cmd)
	if !result.Pass {
		text := fmt.Sprintf("✗ %s\n", scenario.Name)
		for _, e := range result.Errors {
			text += fmt.Sprintf("  %s\n", e)
		}
		return out.Failure("E_SCENARIO_FAILED", fmt.Sprintf("scenario %s failed; nothing saved", scenario.Name), result, text)
	}

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

	name := opts.Name
	if name == "" {
		name = scenario.Name
	}
	cp, err := st.SaveHistory(cmd.Context(), name, h, harness.Types())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to save checkpoint", err)
	}

	return out.Success(cp, fmt.Sprintf("✓ saved %s as %s (seq %d, hash %s)\n", cp.Name, cp.ID, cp.Seq, cp.Hash))
}
