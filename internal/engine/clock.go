package engine

import (
	"math"
	"sync/atomic"

	"github.com/roach88/sensorsync/internal/ir"
)

// VirtualClock is the monotonic replay time, in seconds.
//
// It starts unset; the first Advance may move to any finite time, including
// negative ones. After that, a smaller target is rejected.
//
// Not safe for concurrent use; it belongs to one Replayer.
type VirtualClock struct {
	now     float64
	started bool
}

// NewVirtualClock creates an unset clock.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// NewVirtualClockAt creates a clock already at t.
// Used to resume a replay from a checkpoint.
func NewVirtualClockAt(t float64) *VirtualClock {
	return &VirtualClock{now: t, started: true}
}

// Advance moves the clock to max(Current, t).
// Returns NON_MONOTONIC_ADVANCE if t is before the current time or NaN.
func (c *VirtualClock) Advance(t float64) error {
	if err := c.Check(t); err != nil {
		return err
	}
	c.now = t
	c.started = true
	return nil
}

// Check reports whether Advance(t) would succeed without moving the clock.
func (c *VirtualClock) Check(t float64) error {
	if math.IsNaN(t) || (c.started && t < c.now) {
		return ir.NewNonMonotonicAdvanceError("", t, c.now)
	}
	return nil
}

// Current returns the clock reading, or 0 before the first Advance.
func (c *VirtualClock) Current() float64 {
	return c.now
}

// Started reports whether the clock has been advanced at least once.
func (c *VirtualClock) Started() bool {
	return c.started
}

// Sequence is a monotonic counter stamping Hub deliveries.
//
// Safe for concurrent use; emissions fanned out to many subscriptions share
// one sequence so consumers can correlate what they received.
type Sequence struct {
	seq atomic.Int64
}

// Next returns the next sequence number, starting at 1.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
