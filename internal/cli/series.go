package cli

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	DB string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored series",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	infos, err := st.ListSeries(cmd.Context())
	if err != nil {
		return out.Fail(ExitCommandError, "failed to list series", err, nil)
	}

	if out.JSON() {
		return out.Success(map[string]any{"series": infos})
	}
	if len(infos) == 0 {
		out.Printf("No series stored.\n")
		return nil
	}
	for _, info := range infos {
		out.Printf("%-24s %6d samples  width %d  [%s, %s]\n",
			info.ID, info.SampleCount, info.Width, formatTime(info.Start), formatTime(info.End))
	}
	return nil
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	DB    string
	From  float64
	To    float64
	Limit   int
	Channel int
}

// ShowResult is the JSON payload of the show command.
type ShowResult struct {
	ID      ir.StreamID `json:"id"`
	Width   int         `json:"width"`
	Total   int         `json:"total"`
	Samples []ir.Sample `json:"samples,omitempty"`

	// Set instead of Samples when a single channel is requested.
	Channel *int      `json:"channel,omitempty"`
	Times   []float64 `json:"times,omitempty"`
	Values  []float64 `json:"values,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <series-id>",
		Short: "Print the samples of a stored series",
		Long: `Print the samples of a stored series, optionally limited to a
time window.

Examples:
  sensorsync show motor/position --from 1 --to 1.1
  sensorsync show camera/frame --limit 10 --format json
  sensorsync show imu --channel 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, ir.StreamID(args[0]), cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)
	cmd.Flags().Float64Var(&opts.From, "from", 0, "first timestamp to include")
	cmd.Flags().Float64Var(&opts.To, "to", 0, "last timestamp to include")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "print at most this many samples (0 = all)")
	cmd.Flags().IntVar(&opts.Channel, "channel", -1, "print only this channel (0-based)")

	return cmd
}

func runShow(opts *ShowOptions, id ir.StreamID, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)
	if opts.Limit < 0 {
		return out.Fail(ExitCommandError, fmt.Sprintf("invalid --limit %d", opts.Limit), nil, nil)
	}

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	var series *ir.Series
	fromSet, toSet := cmd.Flags().Changed("from"), cmd.Flags().Changed("to")
	if fromSet || toSet {
		lo, hi := -math.MaxFloat64, math.MaxFloat64
		if fromSet {
			lo = opts.From
		}
		if toSet {
			hi = opts.To
		}
		if hi < lo {
			return out.Fail(ExitCommandError, fmt.Sprintf("--to %g is before --from %g", hi, lo), nil, nil)
		}
		series, err = st.ReadSeriesRange(cmd.Context(), id, lo, hi)
	} else {
		series, err = st.ReadSeries(cmd.Context(), id)
	}
	if err != nil {
		return out.Fail(notFoundExit(err), fmt.Sprintf("failed to read %s", id), err, nil)
	}

	if cmd.Flags().Changed("channel") {
		return showChannel(out, opts, series)
	}

	samples := series.Samples()
	if opts.Limit > 0 && len(samples) > opts.Limit {
		samples = samples[:opts.Limit]
	}

	if out.JSON() {
		return out.Success(ShowResult{ID: id, Width: series.Width(), Total: series.Len(), Samples: samples})
	}
	for _, s := range samples {
		out.Printf("%s\t%s\n", formatTime(s.T), formatValue(s.V))
	}
	if len(samples) < series.Len() {
		out.Printf("... %d more\n", series.Len()-len(samples))
	}
	return nil
}

func showChannel(out *OutputFormatter, opts *ShowOptions, series *ir.Series) error {
	c := opts.Channel
	if c < 0 || (series.Len() > 0 && c >= series.Width()) {
		return out.Fail(ExitCommandError,
			fmt.Sprintf("invalid --channel %d: %s has width %d", c, series.ID(), series.Width()), nil, nil)
	}

	times, values := series.Timestamps(), series.Channel(c)
	if opts.Limit > 0 && len(times) > opts.Limit {
		times, values = times[:opts.Limit], values[:opts.Limit]
	}

	if out.JSON() {
		return out.Success(ShowResult{
			ID:      series.ID(),
			Width:   series.Width(),
			Total:   series.Len(),
			Channel: &c,
			Times:   times,
			Values:  values,
		})
	}
	for i, t := range times {
		out.Printf("%s\t%s\n", formatTime(t), strconv.FormatFloat(values[i], 'g', -1, 64))
	}
	if len(times) < series.Len() {
		out.Printf("... %d more\n", series.Len()-len(times))
	}
	return nil
}

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	DB string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <series-id>",
		Short:         "Delete a stored series",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, ir.StreamID(args[0]), cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)

	return cmd
}

func runDelete(opts *DeleteOptions, id ir.StreamID, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	if err := st.DeleteSeries(cmd.Context(), id); err != nil {
		return out.Fail(notFoundExit(err), fmt.Sprintf("failed to delete %s", id), err, nil)
	}

	if out.JSON() {
		return out.Success(map[string]any{"deleted": id})
	}
	out.Printf("✓ deleted %s\n", id)
	return nil
}

// notFoundExit maps a missing series or run to ExitFailure; anything else
// is a command error.
func notFoundExit(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return ExitFailure
	}
	return ExitCommandError
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', 6, 64)
}

func formatValue(v ir.Value) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
