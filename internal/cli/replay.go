package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/metrics"
	"github.com/roach88/sensorsync/internal/session"
	"github.com/roach88/sensorsync/internal/store"
)

// adhocSession names runs started with --stream instead of a session file.
const adhocSession = "adhoc"

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	DB         string
	Streams    []string // "id" or "id=series"
	Step       float64
	Speed      float64
	Start      float64
	Until      float64
	RunID      string
	Resume     string
	MetricsOut string
	Quiet      bool
	Verify     bool

	// RunIDGenerator allows overriding run id generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator

	// Sleeper allows overriding wall-clock pacing (for testing).
	// If nil, defaults to WallSleeper.
	Sleeper engine.Sleeper
}

// ReplayResult is the JSON payload of the replay command.
type ReplayResult struct {
	RunID         string               `json:"run_id"`
	Session       string               `json:"session"`
	Status        store.RunStatus      `json:"status"`
	Summary       engine.Summary       `json:"summary"`
	TraceHash     string               `json:"trace_hash"`
	Verified      *bool                `json:"verified,omitempty"`
	Subscriptions []SubscriptionReport `json:"subscriptions,omitempty"`
	Emissions     []engine.Emission    `json:"emissions,omitempty"`
}

// SubscriptionReport summarizes delivery to one subscription.
type SubscriptionReport struct {
	Name      string `json:"name"`
	Delivery  string `json:"delivery"`
	Delivered int64  `json:"delivered"`
	Dropped   int64  `json:"dropped"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [session.cue]",
		Short: "Replay stored series in timestamp order",
		Long: `Replay stored series as one time-ordered stream of emissions.

Streams come from a session file or from --stream flags. Each tick
advances a virtual clock by --step seconds and releases every sample at
or before it; ties at one timestamp are released in stream order.
--speed paces ticks against the wall clock (1 = real time, 0 = as fast
as possible).

The replay position is stored under a run id when the replay finishes
or is interrupted (Ctrl-C). Pass the same streams with --resume <run-id>
to continue where it stopped.

Exit codes:
  0 - Replay finished (drained, or reached --until)
  1 - Replay failed, was interrupted, or failed --verify
  2 - Command error (bad flags, missing series, etc.)

Examples:
  sensorsync replay session.cue
  sensorsync replay --stream camera/frame --stream motor=motor/position --speed 1
  sensorsync replay session.cue --until 2.5 --run-id demo
  sensorsync replay session.cue --resume demo --metrics-out replay.prom`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionPath := ""
			if len(args) == 1 {
				sessionPath = args[0]
			}
			return runReplay(opts, sessionPath, cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)
	cmd.Flags().StringArrayVar(&opts.Streams, "stream", nil, "stream to replay as id or id=series (repeatable)")
	cmd.Flags().Float64Var(&opts.Step, "step", engine.DefaultStep, "tick size in seconds")
	cmd.Flags().Float64Var(&opts.Speed, "speed", 0, "wall-clock pacing factor (0 = unpaced)")
	cmd.Flags().Float64Var(&opts.Start, "start", 0, "first tick target (default: first sample)")
	cmd.Flags().Float64Var(&opts.Until, "until", 0, "stop after the tick reaching this time")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "id for the stored checkpoint (default: generated)")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "continue the stored run with this id")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus metrics to this file")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "do not print emissions")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "replay a second time and require an identical trace")

	return cmd
}

// replayPlan is the resolved input of one replay.
type replayPlan struct {
	name          string
	streams       []session.Stream
	options       []engine.PlayerOption
	subscriptions []engine.SubscriptionConfig
}

func runReplay(opts *ReplayOptions, sessionPath string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	plan, err := opts.plan(cmd, sessionPath)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid replay", err, nil)
	}
	if opts.Resume != "" && opts.RunID != "" && opts.Resume != opts.RunID {
		return out.Fail(ExitCommandError, "--run-id and --resume name different runs", nil, nil)
	}

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	streams, err := loadStreams(ctx, st, plan.streams)
	if err != nil {
		return out.Fail(notFoundExit(err), "failed to load streams", err, nil)
	}
	replayer, err := engine.NewReplayer(streams...)
	if err != nil {
		return out.Fail(ExitFailure, "failed to start replay", err, nil)
	}

	runID := opts.RunID
	if opts.Resume != "" {
		runID = opts.Resume
		run, err := st.ReadCheckpoint(ctx, opts.Resume)
		if err != nil {
			return out.Fail(notFoundExit(err), fmt.Sprintf("failed to read run %s", opts.Resume), err, nil)
		}
		if err := replayer.Restore(run.Checkpoint); err != nil {
			return out.Fail(ExitFailure, fmt.Sprintf("cannot resume run %s", opts.Resume), err, nil)
		}
		slog.Info("resuming replay", "run_id", runID, "clock", run.Checkpoint.Clock, "status", run.Status)
	}
	if runID == "" {
		gen := opts.RunIDGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		runID = gen.Generate()
	}
	// Verification replays from the same position the first pass started at.
	origin := replayer.Checkpoint()

	recorder := metrics.New()
	playerOpts := append(slices.Clone(plan.options), engine.WithObserver(recorder))
	if opts.Sleeper != nil {
		playerOpts = append(playerOpts, engine.WithSleeper(opts.Sleeper))
	}
	player, err := engine.NewPlayer(replayer, playerOpts...)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid replay settings", err, nil)
	}

	hub := engine.NewHub()
	subs := make([]*engine.Subscription, 0, len(plan.subscriptions))
	for _, cfg := range plan.subscriptions {
		sub, err := hub.Subscribe(cfg)
		if err != nil {
			return out.Fail(ExitCommandError, "invalid subscription", err, nil)
		}
		subs = append(subs, sub)
	}
	delivered := consume(ctx, subs)

	trace := &traceRecorder{}
	sink := engine.SinkFunc(func(e engine.Emission) error {
		trace.record(e)
		if !opts.Quiet {
			out.Printf("%s\t%s[%d]\t%s\n", formatTime(e.Sample.T), e.Stream, e.Index, formatValue(e.Sample.V))
		}
		return hub.Emit(e)
	})

	slog.Debug("replay run", "run_id", runID, "session", plan.name, "streams", len(streams))
	summary, runErr := player.Run(ctx, sink)

	hub.Close()
	counts := delivered()
	recorder.ObserveSubscriptions(subs)

	status := store.RunInterrupted
	if summary.Drained {
		status = store.RunCompleted
	}
	// The run context may be cancelled; the checkpoint must still be written.
	if err := st.WriteCheckpoint(context.WithoutCancel(ctx), runID, plan.name, replayer.Checkpoint(), status); err != nil {
		return out.Fail(ExitCommandError, "failed to store checkpoint", err, nil)
	}

	if opts.MetricsOut != "" {
		if err := recorder.WriteTextfile(opts.MetricsOut); err != nil {
			return out.Fail(ExitCommandError, "failed to write metrics", err, nil)
		}
	}

	hash, err := trace.hash()
	if err != nil {
		return out.Fail(ExitFailure, "failed to hash trace", err, nil)
	}

	result := ReplayResult{
		RunID:     runID,
		Session:   plan.name,
		Status:    status,
		Summary:   summary,
		TraceHash: hash,
	}
	for i, sub := range subs {
		result.Subscriptions = append(result.Subscriptions, SubscriptionReport{
			Name:      sub.Name(),
			Delivery:  sub.Delivery().String(),
			Delivered: counts[i],
			Dropped:   sub.Dropped(),
		})
	}
	if !opts.Quiet {
		result.Emissions = trace.emissions
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			printReplaySummary(out, result)
			return out.Fail(ExitFailure, fmt.Sprintf("replay interrupted; resume with --resume %s", runID), runErr, result)
		}
		return out.Fail(ExitFailure, "replay failed", runErr, result)
	}

	if opts.Verify {
		again, err := replayTrace(streams, origin, plan.options)
		if err != nil {
			return out.Fail(ExitFailure, "verification replay failed", err, nil)
		}
		ok := again == hash
		result.Verified = &ok
		if !ok {
			return out.Fail(ExitFailure, "replay is not deterministic", nil,
				map[string]string{"first": hash, "second": again})
		}
	}

	if out.JSON() {
		return out.Success(result)
	}
	printReplaySummary(out, result)
	return nil
}

// plan merges the session (if any) with explicit flags; flags win.
func (opts *ReplayOptions) plan(cmd *cobra.Command, sessionPath string) (replayPlan, error) {
	p := replayPlan{name: adhocSession}

	if sessionPath != "" {
		sess, err := session.Load(sessionPath)
		if err != nil {
			return p, err
		}
		p.name = sess.Name
		p.streams = sess.Streams
		p.options = sess.PlayerOptions()
		p.subscriptions = sess.Subscriptions
	}

	if len(opts.Streams) > 0 {
		if sessionPath != "" {
			return p, fmt.Errorf("--stream cannot be combined with a session file")
		}
		for _, s := range opts.Streams {
			p.streams = append(p.streams, parseStreamFlag(s))
		}
	}
	if len(p.streams) == 0 {
		return p, fmt.Errorf("no streams (pass a session file or --stream)")
	}

	flags := cmd.Flags()
	if sessionPath == "" || flags.Changed("step") {
		p.options = append(p.options, engine.WithStep(opts.Step))
	}
	if sessionPath == "" || flags.Changed("speed") {
		p.options = append(p.options, engine.WithSpeed(opts.Speed))
	}
	if flags.Changed("start") {
		p.options = append(p.options, engine.WithStart(opts.Start))
	}
	if flags.Changed("until") {
		p.options = append(p.options, engine.WithEnd(opts.Until))
	}
	return p, nil
}

// parseStreamFlag splits "id=series"; a bare id replays the series of the
// same name.
func parseStreamFlag(s string) session.Stream {
	id, series, ok := strings.Cut(s, "=")
	if !ok {
		series = id
	}
	return session.Stream{ID: ir.StreamID(id), Series: series}
}

func loadStreams(ctx context.Context, st *store.Store, streams []session.Stream) ([]engine.Stream, error) {
	out := make([]engine.Stream, len(streams))
	for i, s := range streams {
		series, err := st.ReadSeries(ctx, ir.StreamID(s.Series))
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", s.ID, err)
		}
		out[i] = engine.Stream{ID: s.ID, Series: series}
	}
	return out, nil
}

// consume drains each subscription on its own goroutine until it is closed.
// The returned func waits for the consumers and reports how many messages
// each received.
func consume(ctx context.Context, subs []*engine.Subscription) func() []int64 {
	counts := make([]int64, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, err := sub.Next(context.WithoutCancel(ctx)); err != nil {
					return
				}
				counts[i]++
			}
		}()
	}
	return func() []int64 {
		wg.Wait()
		return counts
	}
}

// traceRecorder keeps emissions in replay order for hashing and output.
type traceRecorder struct {
	emissions []engine.Emission
}

func (t *traceRecorder) record(e engine.Emission) {
	t.emissions = append(t.emissions, e)
}

func (t *traceRecorder) hash() (string, error) {
	streams := make([]ir.StreamID, len(t.emissions))
	index := make([]int, len(t.emissions))
	samples := make([]ir.Sample, len(t.emissions))
	for i, e := range t.emissions {
		streams[i], index[i], samples[i] = e.Stream, e.Index, e.Sample
	}
	return ir.TraceHash(streams, index, samples)
}

// replayTrace runs an unpaced replay of streams from cp and returns its
// trace hash.
func replayTrace(streams []engine.Stream, cp engine.Checkpoint, options []engine.PlayerOption) (string, error) {
	r, err := engine.NewReplayer(streams...)
	if err != nil {
		return "", err
	}
	if cp.Started {
		if err := r.Restore(cp); err != nil {
			return "", err
		}
	}
	opts := append(slices.Clone(options), engine.WithSpeed(0))
	player, err := engine.NewPlayer(r, opts...)
	if err != nil {
		return "", err
	}
	trace := &traceRecorder{}
	if _, err := player.Run(context.Background(), engine.SinkFunc(func(e engine.Emission) error {
		trace.record(e)
		return nil
	})); err != nil {
		return "", err
	}
	return trace.hash()
}

func printReplaySummary(out *OutputFormatter, r ReplayResult) {
	if out.JSON() {
		return
	}
	out.Printf("\nRun %s (%s): %d emission(s) in %d step(s), clock %s\n",
		r.RunID, r.Status, r.Summary.Emitted, r.Summary.Steps, formatTime(r.Summary.Clock))
	for _, s := range r.Subscriptions {
		out.Printf("  subscription %s (%s): %d delivered, %d dropped\n", s.Name, s.Delivery, s.Delivered, s.Dropped)
	}
	if r.Verified != nil && *r.Verified {
		out.Printf("✓ trace verified (%s)\n", r.TraceHash[:12])
	}
}
