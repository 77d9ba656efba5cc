package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/roach88/sensorsync/internal/ir"
)

// DefaultStep is the virtual time advanced per Player tick, in seconds.
const DefaultStep = 0.005

// Sink receives emissions from a Player, in replay order.
type Sink interface {
	Emit(e Emission) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Emission) error

// Emit calls f(e).
func (f SinkFunc) Emit(e Emission) error {
	return f(e)
}

// Sleeper blocks for a wall-clock duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// WallSleeper sleeps on real timers.
type WallSleeper struct{}

// Sleep waits for d or for ctx to be cancelled.
func (WallSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Observer is notified of replay progress. Implementations must be cheap;
// they run on the replay goroutine.
type Observer interface {
	ObserveStep(clock float64, emitted int)
	ObserveEmission(e Emission)
}

// Summary describes a finished or interrupted Player run.
type Summary struct {
	Steps     int                 `json:"steps"`
	Emitted   int                 `json:"emitted"`
	PerStream map[ir.StreamID]int `json:"per_stream"`
	Clock     float64             `json:"clock"`
	Drained   bool                `json:"drained"`
}

// Player drives a Replayer on a fixed virtual time grid.
//
// Tick k targets Start + k*Step. With Speed > 0 each tick also waits
// Step/Speed seconds of wall time, so Speed 1 is real time. With Speed 0
// ticks run back to back and idle stretches with nothing due are skipped.
type Player struct {
	replayer *Replayer
	step     float64
	speed    float64
	start    float64
	end      float64
	hasStart bool
	hasEnd   bool
	sleeper  Sleeper
	observer Observer
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithStep sets the virtual time per tick.
//
// Default: DefaultStep (5ms).
func WithStep(d float64) PlayerOption {
	return func(p *Player) {
		p.step = d
	}
}

// WithSpeed sets the playback rate relative to wall time; 0 disables pacing.
//
// Default: 0.
func WithSpeed(x float64) PlayerOption {
	return func(p *Player) {
		p.speed = x
	}
}

// WithStart sets the first tick's target.
//
// Default: the earliest pending timestamp, or the Replayer's clock if it has
// already advanced.
func WithStart(t float64) PlayerOption {
	return func(p *Player) {
		p.start = t
		p.hasStart = true
	}
}

// WithEnd stops the run after the clock reaches t, even if samples remain.
func WithEnd(t float64) PlayerOption {
	return func(p *Player) {
		p.end = t
		p.hasEnd = true
	}
}

// WithSleeper replaces the wall-clock sleeper. Tests use a fake.
func WithSleeper(s Sleeper) PlayerOption {
	return func(p *Player) {
		p.sleeper = s
	}
}

// WithObserver attaches a progress observer, e.g. a metrics recorder.
func WithObserver(o Observer) PlayerOption {
	return func(p *Player) {
		p.observer = o
	}
}

// NewPlayer creates a Player over r.
func NewPlayer(r *Replayer, opts ...PlayerOption) (*Player, error) {
	p := &Player{
		replayer: r,
		step:     DefaultStep,
		sleeper:  WallSleeper{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if !(p.step > 0) || math.IsInf(p.step, 0) {
		return nil, fmt.Errorf("step must be positive and finite, got %g", p.step)
	}
	if !(p.speed >= 0) || math.IsInf(p.speed, 0) {
		return nil, fmt.Errorf("speed must be non-negative and finite, got %g", p.speed)
	}
	if p.hasStart && p.hasEnd && p.end < p.start {
		return nil, fmt.Errorf("end %g is before start %g", p.end, p.start)
	}
	return p, nil
}

// Run ticks the Replayer until it drains, the end time is reached, the sink
// fails, or ctx is cancelled. Cancellation is checked between ticks; the
// Replayer is left in a valid state and can be checkpointed or resumed.
func (p *Player) Run(ctx context.Context, sink Sink) (Summary, error) {
	r := p.replayer
	sum := Summary{PerStream: make(map[ir.StreamID]int, len(r.ids))}
	for _, id := range r.ids {
		sum.PerStream[id] = 0
	}

	start, ok := p.origin()
	if !ok {
		sum.Clock = r.Clock()
		sum.Drained = r.State() == Drained
		return sum, nil
	}

	slog.Debug("replay starting",
		"start", start,
		"step", p.step,
		"speed", p.speed,
		"pending", r.Pending(),
	)

	pace := time.Duration(0)
	if p.speed > 0 {
		pace = time.Duration(p.step / p.speed * float64(time.Second))
	}

	for k := 0; r.State() == Active; k++ {
		if err := ctx.Err(); err != nil {
			sum.Clock = r.Clock()
			slog.Debug("replay interrupted", "clock", sum.Clock, "emitted", sum.Emitted)
			return sum, err
		}

		target := start + float64(k)*p.step
		final := false
		if p.hasEnd && target >= p.end {
			target, final = p.end, true
		}
		if r.Started() && target < r.Clock() {
			target = r.Clock()
		}

		emissions, err := r.Step(target)
		if err != nil {
			sum.Clock = r.Clock()
			return sum, err
		}
		sum.Steps++
		for _, e := range emissions {
			if err := sink.Emit(e); err != nil {
				sum.Clock = r.Clock()
				return sum, &SinkError{Emission: e, Err: err}
			}
			sum.Emitted++
			sum.PerStream[e.Stream]++
			if p.observer != nil {
				p.observer.ObserveEmission(e)
			}
		}
		if p.observer != nil {
			p.observer.ObserveStep(r.Clock(), len(emissions))
		}
		if final || r.State() == Drained {
			break
		}

		if pace > 0 {
			if err := p.sleeper.Sleep(ctx, pace); err != nil {
				sum.Clock = r.Clock()
				return sum, err
			}
			continue
		}
		// Unpaced: jump over ticks that cannot release anything.
		if next, ok := r.NextDue(); ok {
			if skip := int(math.Ceil((next-start)/p.step)) - 1; skip > k {
				k = skip
			}
		}
	}

	sum.Clock = r.Clock()
	sum.Drained = r.State() == Drained
	slog.Debug("replay finished",
		"steps", sum.Steps,
		"emitted", sum.Emitted,
		"clock", sum.Clock,
		"drained", sum.Drained,
	)
	return sum, nil
}

// origin returns the first tick target; ok is false when there is nothing
// left to replay.
func (p *Player) origin() (float64, bool) {
	r := p.replayer
	if r.State() == Drained {
		return 0, false
	}
	if p.hasStart {
		if r.Started() && p.start < r.Clock() {
			return r.Clock(), true
		}
		return p.start, true
	}
	if r.Started() {
		return r.Clock(), true
	}
	next, ok := r.NextDue()
	return next, ok
}
