package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/testutil"
)

type collector struct {
	got []Emission
}

func (c *collector) Emit(e Emission) error {
	c.got = append(c.got, e)
	return nil
}

type countingObserver struct {
	steps     int
	emissions int
	lastClock float64
}

func (o *countingObserver) ObserveStep(clock float64, emitted int) {
	o.steps++
	o.lastClock = clock
}

func (o *countingObserver) ObserveEmission(Emission) {
	o.emissions++
}

func TestPlayer_RunDrainsInOrder(t *testing.T) {
	r := newAB(t)
	p, err := NewPlayer(r, WithStep(0.25))
	require.NoError(t, err)

	sink := &collector{}
	sum, err := p.Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"A@0", "B@0.5", "A@1", "B@1.5", "A@2"}, labels(sink.got))
	assert.Equal(t, 5, sum.Emitted)
	assert.Equal(t, map[ir.StreamID]int{"A": 3, "B": 2}, sum.PerStream)
	assert.True(t, sum.Drained)
	assert.Equal(t, 2.0, sum.Clock)
}

func TestPlayer_UnpacedSkipsIdleTicks(t *testing.T) {
	r, err := NewReplayer(Stream{ID: "sparse", Series: testutil.Times("s", 0, 100)})
	require.NoError(t, err)
	p, err := NewPlayer(r, WithStep(0.005))
	require.NoError(t, err)

	sum, err := p.Run(context.Background(), &collector{})
	require.NoError(t, err)
	assert.True(t, sum.Drained)
	assert.Less(t, sum.Steps, 10, "idle ticks between samples must be skipped")
}

func TestPlayer_PacedSleepsPerTick(t *testing.T) {
	r := newAB(t)
	sleeper := testutil.NewFakeSleeper()
	p, err := NewPlayer(r, WithStep(0.5), WithSpeed(2), WithSleeper(sleeper))
	require.NoError(t, err)

	sum, err := p.Run(context.Background(), &collector{})
	require.NoError(t, err)

	// Ticks at 0, 0.5, 1, 1.5, 2; the last drains so no sleep follows it.
	assert.Equal(t, 5, sum.Steps)
	calls := sleeper.Calls()
	require.Len(t, calls, 4)
	for _, d := range calls {
		assert.Equal(t, 250*time.Millisecond, d)
	}
}

func TestPlayer_EndStopsEarly(t *testing.T) {
	r := newAB(t)
	p, err := NewPlayer(r, WithStep(0.3), WithEnd(1.2))
	require.NoError(t, err)

	sink := &collector{}
	sum, err := p.Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"A@0", "B@0.5", "A@1"}, labels(sink.got))
	assert.False(t, sum.Drained)
	assert.Equal(t, 1.2, sum.Clock)
	assert.Equal(t, Active, r.State())
}

func TestPlayer_StartOption(t *testing.T) {
	r := newAB(t)
	p, err := NewPlayer(r, WithStart(1.0), WithStep(1))
	require.NoError(t, err)

	sink := &collector{}
	_, err = p.Run(context.Background(), sink)
	require.NoError(t, err)
	// The first tick at 1.0 releases everything at or before it.
	assert.Equal(t, []string{"A@0", "B@0.5", "A@1", "B@1.5", "A@2"}, labels(sink.got))
}

func TestPlayer_ResumesFromReplayerClock(t *testing.T) {
	r := newAB(t)
	_, err := r.Step(1.2)
	require.NoError(t, err)

	p, err := NewPlayer(r, WithStart(0), WithStep(0.5))
	require.NoError(t, err)
	sink := &collector{}
	_, err = p.Run(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, []string{"B@1.5", "A@2"}, labels(sink.got))
}

func TestPlayer_CancellationLeavesValidState(t *testing.T) {
	r := newAB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeper := &testutil.FakeSleeper{CancelAfter: 2, Cancel: cancel}
	p, err := NewPlayer(r, WithStep(0.5), WithSpeed(1), WithSleeper(sleeper))
	require.NoError(t, err)

	sum, err := p.Run(ctx, &collector{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sum.Steps)
	assert.Equal(t, 0.5, sum.Clock)

	cp := r.Checkpoint()
	assert.Equal(t, map[ir.StreamID]int{"A": 1, "B": 1}, cp.Positions)

	rest, err := r.Step(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A@1", "B@1.5", "A@2"}, labels(rest))
}

func TestPlayer_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPlayer(newAB(t))
	require.NoError(t, err)
	sum, err := p.Run(ctx, &collector{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sum.Steps)
}

func TestPlayer_SinkError(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	sink := SinkFunc(func(e Emission) error {
		n++
		if n == 2 {
			return boom
		}
		return nil
	})

	p, err := NewPlayer(newAB(t), WithStep(10))
	require.NoError(t, err)
	sum, err := p.Run(context.Background(), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsSinkError(err))
	assert.Equal(t, 1, sum.Emitted)

	var se *SinkError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ir.StreamID("B"), se.Emission.Stream)
	assert.Contains(t, err.Error(), "B[0]@0.5")
}

func TestPlayer_Observer(t *testing.T) {
	obs := &countingObserver{}
	p, err := NewPlayer(newAB(t), WithStep(1), WithObserver(obs))
	require.NoError(t, err)

	sum, err := p.Run(context.Background(), &collector{})
	require.NoError(t, err)
	assert.Equal(t, 5, obs.emissions)
	assert.Equal(t, sum.Steps, obs.steps)
	assert.Equal(t, 2.0, obs.lastClock)
}

func TestPlayer_DrainedReplayerIsNoop(t *testing.T) {
	r, err := NewReplayer()
	require.NoError(t, err)
	p, err := NewPlayer(r)
	require.NoError(t, err)

	sum, err := p.Run(context.Background(), &collector{})
	require.NoError(t, err)
	assert.True(t, sum.Drained)
	assert.Equal(t, 0, sum.Steps)
}

func TestNewPlayer_Validation(t *testing.T) {
	r := newAB(t)

	_, err := NewPlayer(r, WithStep(0))
	assert.ErrorContains(t, err, "step must be positive")

	_, err = NewPlayer(r, WithSpeed(-1))
	assert.ErrorContains(t, err, "speed must be non-negative")

	_, err = NewPlayer(r, WithStart(2), WithEnd(1))
	assert.ErrorContains(t, err, "before start")
}

func TestWallSleeper_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WallSleeper{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)

	assert.NoError(t, WallSleeper{}.Sleep(context.Background(), time.Millisecond))
}
