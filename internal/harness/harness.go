package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sensorsync/internal/align"
	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/interp"
	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/store"
	"github.com/roach88/sensorsync/internal/testutil"
)

// Harness is the scenario execution engine.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	runIDs   engine.RunIDGenerator
	logger   *slog.Logger
	result   *Result
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store, used for checkpoint
// round trips. Run returns an error only for infrastructure failures; engine
// errors are recorded in the trace and judged by the assertions.
//
// Execution flow:
// 1. Build the streams
// 2. Replay the step targets, checkpointing and resuming if configured
// 3. Align if configured
// 4. Evaluate assertions and flag unexpected errors
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", store.WithCacheTTL(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		store:    st,
		runIDs:   testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		result:   NewResult(),
	}

	ctx := context.Background()
	if err := h.execute(ctx); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) execute(ctx context.Context) error {
	streams, byID, err := h.scenario.streams()
	if err != nil {
		h.result.addFailure(StageStreams, 0, err)
		return nil
	}

	if len(h.scenario.Steps) > 0 {
		if err := h.replay(ctx, streams); err != nil {
			return err
		}
	}
	if h.scenario.Align != nil {
		h.align(byID)
	}
	return nil
}

// replay applies each step target in order. A rejected step is recorded and
// the replay continues, since a failed Step leaves the replayer unchanged.
func (h *Harness) replay(ctx context.Context, streams []engine.Stream) error {
	r, err := engine.NewReplayer(streams...)
	if err != nil {
		h.result.addFailure(StageReplay, 0, err)
		return nil
	}

	for i, target := range h.scenario.Steps {
		step := i + 1
		if h.scenario.ResumeAfter > 0 && i == h.scenario.ResumeAfter {
			resumed, err := h.resume(ctx, r, streams)
			if err != nil {
				if ir.CodeOf(err) == "" {
					return err
				}
				h.result.addFailure(StageResume, step, err)
				return nil
			}
			r = resumed
		}

		emissions, err := r.Step(target)
		if err != nil {
			h.result.addFailure(StageStep, step, err)
			continue
		}
		h.result.addStep(step, target, len(emissions))
		for _, e := range emissions {
			h.result.addEmission(step, e.Stream, e.Index, e.Sample)
		}
		h.logger.Debug("step completed",
			"step", step,
			"target", target,
			"emitted", len(emissions),
			"clock", r.Clock(),
		)
	}
	h.result.Drained = r.State() == engine.Drained
	return nil
}

// resume stores r's checkpoint, reads it back and restores it into a new
// replayer over the same streams.
func (h *Harness) resume(ctx context.Context, r *engine.Replayer, streams []engine.Stream) (*engine.Replayer, error) {
	runID := h.runIDs.Generate()
	if err := h.store.WriteCheckpoint(ctx, runID, h.scenario.Name, r.Checkpoint(), store.RunInterrupted); err != nil {
		return nil, fmt.Errorf("failed to write checkpoint: %w", err)
	}
	run, err := h.store.ReadCheckpoint(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	fresh, err := engine.NewReplayer(streams...)
	if err != nil {
		return nil, err
	}
	if err := fresh.Restore(run.Checkpoint); err != nil {
		return nil, err
	}
	h.logger.Debug("replay resumed", "run_id", runID, "clock", fresh.Clock())
	return fresh, nil
}

func (h *Harness) align(byID map[ir.StreamID]*ir.Series) {
	spec := h.scenario.Align
	policy, _ := interp.ParsePolicy(spec.Policy) // checked by validateScenario
	a := align.New(align.WithPolicy(policy), align.WithMaxGap(spec.MaxGap))

	source := byID[ir.StreamID(spec.Source)]
	var (
		out *ir.Series
		err error
	)
	if spec.Reference != "" {
		out, err = a.AlignTo(source, byID[ir.StreamID(spec.Reference)])
	} else {
		out, err = a.Align(source, spec.Queries)
	}
	if err != nil {
		h.result.addFailure(StageAlign, 0, err)
		return
	}

	h.result.Aligned = out
	for i := 0; i < out.Len(); i++ {
		h.result.addAligned(i, out.At(i))
	}
}
