package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorsync/internal/align"
	"github.com/roach88/sensorsync/internal/interp"
	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/session"
)

// AlignOptions holds flags for the align command.
type AlignOptions struct {
	*RootOptions
	DB        string
	Sources   []string
	Reference string
	At        []float64
	Policy    string
	MaxGap    float64
	Out       string
	Limit     int
}

// AlignResult is the JSON payload of the align command.
type AlignResult struct {
	Reference string          `json:"reference,omitempty"`
	Policy    interp.Policy   `json:"policy"`
	MaxGap    float64         `json:"max_gap"`
	Aligned   []AlignedSeries `json:"aligned"`
}

// AlignedSeries is one aligned source.
type AlignedSeries struct {
	Source  ir.StreamID `json:"source"`
	Stored  ir.StreamID `json:"stored,omitempty"`
	Count   int         `json:"count"`
	Samples []ir.Sample `json:"samples,omitempty"`
}

// NewAlignCommand creates the align command.
func NewAlignCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AlignOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "align [session.cue]",
		Short: "Interpolate stored series onto another clock",
		Long: `Evaluate one or more stored series at the timestamps of a reference
series, or at explicit query times.

With a session file, every session stream except the reference is
aligned onto the reference, using the session's policy and max_gap
unless overridden by flags.

--out stores the result: with one source it is the new series id, with
several it is a prefix (<out>/<source>). Without --out the samples are
printed.

Examples:
  sensorsync align --source motor/position --reference camera/frame
  sensorsync align --source motor/position --at 0.1,0.2,0.3 --policy clamp
  sensorsync align session.cue --out aligned`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionPath := ""
			if len(args) == 1 {
				sessionPath = args[0]
			}
			return runAlign(opts, sessionPath, cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)
	cmd.Flags().StringSliceVar(&opts.Sources, "source", nil, "series to interpolate (repeatable)")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "series whose timestamps are the queries")
	cmd.Flags().Float64SliceVar(&opts.At, "at", nil, "explicit query timestamps")
	cmd.Flags().StringVar(&opts.Policy, "policy", "extrapolate_linear", "boundary policy (extrapolate_linear|clamp)")
	cmd.Flags().Float64Var(&opts.MaxGap, "max-gap", 0, "reject queries farther than this outside the source range (0 = unbounded)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "store results under this id (or prefix)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "print at most this many samples per source (0 = all)")

	return cmd
}

// alignPlan is what to align, resolved from flags and an optional session.
type alignPlan struct {
	sources   []ir.StreamID
	reference ir.StreamID
	queries   []float64
	options   []align.Option
}

func runAlign(opts *AlignOptions, sessionPath string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	plan, err := opts.plan(cmd, sessionPath)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid alignment", err, nil)
	}
	aligner := align.New(plan.options...)

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	ctx := cmd.Context()
	queries := plan.queries
	if plan.reference != "" {
		ref, err := st.ReadSeries(ctx, plan.reference)
		if err != nil {
			return out.Fail(notFoundExit(err), fmt.Sprintf("failed to read reference %s", plan.reference), err, nil)
		}
		queries = ref.Timestamps()
	}

	result := AlignResult{
		Reference: string(plan.reference),
		Policy:    aligner.Policy(),
		MaxGap:    aligner.MaxGap(),
	}
	for _, id := range plan.sources {
		source, err := st.ReadSeries(ctx, id)
		if err != nil {
			return out.Fail(notFoundExit(err), fmt.Sprintf("failed to read source %s", id), err, nil)
		}
		aligned, err := aligner.Align(source, queries)
		if err != nil {
			return out.Fail(ExitFailure, fmt.Sprintf("failed to align %s", id), err, nil)
		}
		out.VerboseLog("aligned %s: %d queries", id, aligned.Len())

		entry := AlignedSeries{Source: id, Count: aligned.Len()}
		if opts.Out != "" {
			entry.Stored = outputID(opts.Out, id, len(plan.sources))
			if _, err := st.WriteSeries(ctx, aligned.WithID(entry.Stored)); err != nil {
				return out.Fail(ExitCommandError, fmt.Sprintf("failed to store %s", entry.Stored), err, nil)
			}
		} else {
			entry.Samples = aligned.Samples()
			if opts.Limit > 0 && len(entry.Samples) > opts.Limit {
				entry.Samples = entry.Samples[:opts.Limit]
			}
		}
		result.Aligned = append(result.Aligned, entry)
	}

	if out.JSON() {
		return out.Success(result)
	}
	for _, a := range result.Aligned {
		if a.Stored != "" {
			out.Printf("✓ %s → %s (%d samples)\n", a.Source, a.Stored, a.Count)
			continue
		}
		out.Printf("# %s\n", a.Source)
		for _, s := range a.Samples {
			out.Printf("%s\t%s\n", formatTime(s.T), formatValue(s.V))
		}
	}
	return nil
}

// plan merges the session (if any) with explicit flags; flags win.
func (opts *AlignOptions) plan(cmd *cobra.Command, sessionPath string) (alignPlan, error) {
	var p alignPlan
	policy := opts.Policy
	maxGap := opts.MaxGap

	if sessionPath != "" {
		sess, err := session.Load(sessionPath)
		if err != nil {
			return p, err
		}
		if sess.Reference == "" && opts.Reference == "" && len(opts.At) == 0 {
			return p, fmt.Errorf("session %q has no reference stream", sess.Name)
		}
		for _, s := range sess.Streams {
			if s.ID == sess.Reference {
				p.reference = ir.StreamID(s.Series)
				continue
			}
			p.sources = append(p.sources, ir.StreamID(s.Series))
		}
		if !cmd.Flags().Changed("policy") {
			policy = sess.Policy.String()
		}
		if !cmd.Flags().Changed("max-gap") {
			maxGap = sess.MaxGap
		}
	}

	if len(opts.Sources) > 0 {
		p.sources = p.sources[:0]
		for _, s := range opts.Sources {
			p.sources = append(p.sources, ir.StreamID(s))
		}
	}
	if opts.Reference != "" {
		p.reference = ir.StreamID(opts.Reference)
	}
	if len(opts.At) > 0 {
		if opts.Reference != "" {
			return p, fmt.Errorf("--reference and --at are mutually exclusive")
		}
		p.reference = ""
		p.queries = opts.At
	}

	switch {
	case len(p.sources) == 0:
		return p, fmt.Errorf("no source series (use --source or a session file)")
	case p.reference == "" && len(p.queries) == 0:
		return p, fmt.Errorf("one of --reference or --at is required")
	case maxGap < 0:
		return p, fmt.Errorf("--max-gap must be non-negative, got %g", maxGap)
	}

	parsed, err := interp.ParsePolicy(policy)
	if err != nil {
		return p, err
	}
	p.options = []align.Option{align.WithPolicy(parsed), align.WithMaxGap(maxGap)}
	return p, nil
}

func outputID(out string, source ir.StreamID, n int) ir.StreamID {
	if n == 1 {
		return ir.StreamID(out)
	}
	return ir.StreamID(out + "/" + string(source))
}
