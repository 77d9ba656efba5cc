package engine

import (
	"math"
	"sort"

	"github.com/roach88/sensorsync/internal/ir"
)

// Cursor is a forward-only position in one Series.
//
// The index starts at 0 and only moves forward. Every sample is returned by
// AdvanceTo exactly once.
type Cursor struct {
	id     ir.StreamID
	series *ir.Series
	index  int

	// Largest target observed so far.
	seen    float64
	started bool
}

// NewCursor creates a cursor at the start of series.
// Returns INVALID_SERIES if series is nil or not in timestamp order.
func NewCursor(series *ir.Series) (*Cursor, error) {
	if series == nil {
		return nil, ir.NewInvalidSeriesError("", -1, "series is nil")
	}
	if !series.Monotonic() {
		return nil, ir.NewInvalidSeriesError(series.ID(), -1, "timestamps are not non-decreasing")
	}
	return &Cursor{id: series.ID(), series: series}, nil
}

// ID returns the stream id of the underlying series.
func (c *Cursor) ID() ir.StreamID {
	return c.id
}

// Index returns the position of the next sample to emit.
func (c *Cursor) Index() int {
	return c.index
}

// Remaining returns the number of samples not yet emitted.
func (c *Cursor) Remaining() int {
	return c.series.Len() - c.index
}

// Exhausted reports whether every sample has been emitted.
func (c *Cursor) Exhausted() bool {
	return c.index >= c.series.Len()
}

// Peek returns the next sample without advancing.
func (c *Cursor) Peek() (ir.Sample, bool) {
	if c.Exhausted() {
		return ir.Sample{}, false
	}
	return c.series.At(c.index), true
}

// AdvanceTo returns, in index order, every remaining sample with T <= t and
// moves past them. The result is empty when nothing is due.
//
// Returns NON_MONOTONIC_ADVANCE if t is below a target already passed to
// AdvanceTo; the cursor is left unchanged.
func (c *Cursor) AdvanceTo(t float64) ([]ir.Sample, error) {
	from, to, err := c.advance(t)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Sample, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, c.series.At(i))
	}
	return out, nil
}

// advance moves the cursor to t and returns the half-open index range of
// samples that became due.
func (c *Cursor) advance(t float64) (from, to int, err error) {
	if math.IsNaN(t) || (c.started && t < c.seen) {
		return 0, 0, ir.NewNonMonotonicAdvanceError(c.id, t, c.seen)
	}
	c.seen = t
	c.started = true

	from = c.index
	n := c.series.Len()
	// Binary search over the tail; a replay step usually releases few samples
	// from a long series.
	to = from + sort.Search(n-from, func(i int) bool {
		return c.series.At(from+i).T > t
	})
	c.index = to
	return from, to, nil
}

// seek positions the cursor as if it had been advanced to t once.
// Used only when restoring a checkpoint onto a fresh cursor.
func (c *Cursor) seek(index int, t float64, started bool) {
	c.index = index
	c.seen = t
	c.started = started
}

// dueCount returns how many samples have T <= t.
func (c *Cursor) dueCount(t float64) int {
	return sort.Search(c.series.Len(), func(i int) bool {
		return c.series.At(i).T > t
	})
}
