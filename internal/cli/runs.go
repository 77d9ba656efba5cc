package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	DB string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored replay runs",
		Long: `List stored replay runs in start order, or show one run's checkpoint.

Interrupted runs can be continued with replay --resume <run-id>.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runShowRun(opts, args[0], cmd)
			}
			return runListRuns(opts, cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)

	return cmd
}

func runListRuns(opts *RunsOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return out.Fail(ExitCommandError, "failed to list runs", err, nil)
	}

	if out.JSON() {
		return out.Success(map[string]any{"runs": runs})
	}
	if len(runs) == 0 {
		out.Printf("No runs stored.\n")
		return nil
	}
	for _, r := range runs {
		out.Printf("%-36s  %-11s  %-16s  clock %s\n", r.ID, r.Status, r.Session, formatClock(r))
	}
	return nil
}

func runShowRun(opts *RunsOptions, runID string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	run, err := st.ReadCheckpoint(cmd.Context(), runID)
	if err != nil {
		return out.Fail(notFoundExit(err), fmt.Sprintf("failed to read run %s", runID), err, nil)
	}

	if out.JSON() {
		return out.Success(run)
	}
	out.Printf("Run:     %s\n", run.ID)
	out.Printf("Session: %s\n", run.Session)
	out.Printf("Status:  %s\n", run.Status)
	out.Printf("Clock:   %s\n", formatClock(run))
	for _, id := range sortedStreams(run) {
		out.Printf("  %-24s position %d\n", id, run.Checkpoint.Positions[id])
	}
	return nil
}

func formatClock(r store.Run) string {
	if !r.Checkpoint.Started {
		return "not started"
	}
	return formatTime(r.Checkpoint.Clock)
}

func sortedStreams(r store.Run) []ir.StreamID {
	return slices.Sorted(maps.Keys(r.Checkpoint.Positions))
}
