package engine

import (
	"container/heap"
	"math"

	"github.com/roach88/sensorsync/internal/ir"
)

// State is the lifecycle state of a Replayer.
type State int

const (
	// Active means at least one stream still has samples to emit.
	Active State = iota

	// Drained is terminal: every stream is exhausted.
	Drained
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Drained:
		return "drained"
	default:
		return "unknown"
	}
}

// Stream registers a series with a Replayer.
// An empty ID defaults to Series.ID().
type Stream struct {
	ID     ir.StreamID
	Series *ir.Series
}

// Emission is one sample released by a Replayer step.
type Emission struct {
	// Stream is the id the series was registered under.
	Stream ir.StreamID `json:"stream"`

	// Order is the stream's registration position, starting at 0.
	Order int `json:"order"`

	// Index is the sample's position within its series.
	Index int `json:"index"`

	// Sample is the emitted reading. Its Value must not be modified.
	Sample ir.Sample `json:"sample"`
}

// Replayer merges several monotonic series into one time-ordered sequence
// driven by explicit Step calls.
//
// Not safe for concurrent use.
type Replayer struct {
	ids     []ir.StreamID
	cursors []*Cursor
	clock   *VirtualClock
	state   State

	merge emissionHeap
}

// NewReplayer registers streams in the given order.
//
// Returns DUPLICATE_STREAM if an id repeats and INVALID_SERIES if a series is
// nil or unordered; no Replayer is created in either case. A Replayer with no
// samples to emit starts Drained.
func NewReplayer(streams ...Stream) (*Replayer, error) {
	r := &Replayer{
		ids:     make([]ir.StreamID, 0, len(streams)),
		cursors: make([]*Cursor, 0, len(streams)),
		clock:   NewVirtualClock(),
	}
	seen := make(map[ir.StreamID]bool, len(streams))
	for _, s := range streams {
		cur, err := NewCursor(s.Series)
		if err != nil {
			return nil, err
		}
		id := s.ID
		if id == "" {
			id = s.Series.ID()
		}
		if seen[id] {
			return nil, ir.NewDuplicateStreamError(id)
		}
		seen[id] = true
		cur.id = id
		r.ids = append(r.ids, id)
		r.cursors = append(r.cursors, cur)
	}
	r.updateState()
	return r, nil
}

// State returns the current lifecycle state.
func (r *Replayer) State() State {
	return r.state
}

// Clock returns the virtual clock reading; 0 before the first Step.
func (r *Replayer) Clock() float64 {
	return r.clock.Current()
}

// Started reports whether Step has advanced the clock at least once.
func (r *Replayer) Started() bool {
	return r.clock.Started()
}

// Streams returns the registered stream ids in registration order.
func (r *Replayer) Streams() []ir.StreamID {
	out := make([]ir.StreamID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Pending returns the number of samples not yet emitted across all streams.
func (r *Replayer) Pending() int {
	n := 0
	for _, c := range r.cursors {
		n += c.Remaining()
	}
	return n
}

// NextDue returns the earliest timestamp not yet emitted.
// ok is false once the Replayer is drained.
func (r *Replayer) NextDue() (t float64, ok bool) {
	t = math.Inf(1)
	for _, c := range r.cursors {
		if s, has := c.Peek(); has && s.T < t {
			t, ok = s.T, true
		}
	}
	return t, ok
}

// Step advances the clock to target and returns every newly due sample.
//
// Emissions are ordered by timestamp, then registration order, then series
// index. The result is empty, not nil, when nothing is due. On a Drained
// Replayer a valid Step does nothing and returns an empty slice.
//
// Returns NON_MONOTONIC_ADVANCE if target is below the current clock, even
// when Drained; no state changes in that case.
func (r *Replayer) Step(target float64) ([]Emission, error) {
	if err := r.clock.Check(target); err != nil {
		return nil, err
	}
	if r.state == Drained {
		return []Emission{}, nil
	}
	if err := r.clock.Advance(target); err != nil {
		return nil, err
	}
	now := r.clock.Current()

	r.merge = r.merge[:0]
	total := 0
	for order, c := range r.cursors {
		from, to, err := c.advance(now)
		if err != nil {
			// Unreachable: every cursor has only seen targets the clock accepted.
			return nil, err
		}
		if to > from {
			r.merge = append(r.merge, head{order: order, index: from, end: to, t: c.series.At(from).T})
			total += to - from
		}
	}

	out := make([]Emission, 0, total)
	heap.Init(&r.merge)
	for r.merge.Len() > 0 {
		h := &r.merge[0]
		c := r.cursors[h.order]
		out = append(out, Emission{
			Stream: c.id,
			Order:  h.order,
			Index:  h.index,
			Sample: c.series.At(h.index),
		})
		h.index++
		if h.index == h.end {
			heap.Pop(&r.merge)
			continue
		}
		h.t = c.series.At(h.index).T
		heap.Fix(&r.merge, 0)
	}

	r.updateState()
	return out, nil
}

func (r *Replayer) updateState() {
	for _, c := range r.cursors {
		if !c.Exhausted() {
			r.state = Active
			return
		}
	}
	r.state = Drained
}

// head is one stream's run of due samples during a merge.
type head struct {
	order int
	index int
	end   int
	t     float64
}

// emissionHeap orders heads by (t, order). Index never ties across heads
// with equal order, since each stream contributes one head.
type emissionHeap []head

func (h emissionHeap) Len() int { return len(h) }

func (h emissionHeap) Less(i, j int) bool {
	if h[i].t != h[j].t {
		return h[i].t < h[j].t
	}
	return h[i].order < h[j].order
}

func (h emissionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *emissionHeap) Push(x any) { *h = append(*h, x.(head)) }

func (h *emissionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
