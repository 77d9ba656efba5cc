package ir

import (
	"math"
	"slices"
)

// StreamID identifies the source of a Series (e.g. "motor/position").
type StreamID string

// Value is a fixed-width vector of numeric channels.
// A scalar reading is a one-channel Value.
type Value []float64

// Scalar returns a one-channel Value.
func Scalar(v float64) Value {
	return Value{v}
}

// Clone returns a copy of v that shares no memory with it.
func (v Value) Clone() Value {
	return slices.Clone(v)
}

// Equal reports whether v and o have the same width and identical channels.
func (v Value) Equal(o Value) bool {
	return slices.Equal(v, o)
}

// Sample is a single timestamped reading.
// T is in seconds. Samples are treated as immutable once created.
type Sample struct {
	T float64 `json:"t"`
	V Value   `json:"v"`
}

// NewSample creates a Sample holding a private copy of v.
func NewSample(t float64, v Value) Sample {
	return Sample{T: t, V: v.Clone()}
}

// Series is an ordered, read-only sequence of samples from one source.
//
// INVARIANTS (enforced by NewSeries):
//   - every timestamp and channel is finite
//   - all values share one width
//   - timestamps are non-decreasing
//
// Series built by NewUnorderedSeries relax only the ordering invariant; they
// are produced by alignment against unsorted query lists and are rejected by
// interpolation and replay.
type Series struct {
	id        StreamID
	samples   []Sample
	width     int
	monotonic bool
}

// NewSeries validates and copies samples into a new monotonic Series.
// Zero or one sample is a valid, degenerate series.
func NewSeries(id StreamID, samples []Sample) (*Series, error) {
	s, err := newSeries(id, samples)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(s.samples); i++ {
		if s.samples[i].T < s.samples[i-1].T {
			return nil, NewInvalidSeriesError(id, i,
				"timestamp %g decreases from %g", s.samples[i].T, s.samples[i-1].T)
		}
	}
	s.monotonic = true
	return s, nil
}

// NewUnorderedSeries validates finiteness and width but not ordering.
func NewUnorderedSeries(id StreamID, samples []Sample) (*Series, error) {
	s, err := newSeries(id, samples)
	if err != nil {
		return nil, err
	}
	s.monotonic = isSorted(s.samples)
	return s, nil
}

// NewScalarSeries builds a one-channel monotonic Series from parallel slices.
func NewScalarSeries(id StreamID, ts, vs []float64) (*Series, error) {
	if len(ts) != len(vs) {
		return nil, NewInvalidSeriesError(id, -1,
			"%d timestamps but %d values", len(ts), len(vs))
	}
	samples := make([]Sample, len(ts))
	for i := range ts {
		samples[i] = Sample{T: ts[i], V: Value{vs[i]}}
	}
	return NewSeries(id, samples)
}

// MustSeries is like NewSeries but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSeries(id StreamID, samples []Sample) *Series {
	s, err := NewSeries(id, samples)
	if err != nil {
		panic(err)
	}
	return s
}

// MustScalarSeries is like NewScalarSeries but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustScalarSeries(id StreamID, ts, vs []float64) *Series {
	s, err := NewScalarSeries(id, ts, vs)
	if err != nil {
		panic(err)
	}
	return s
}

func newSeries(id StreamID, samples []Sample) (*Series, error) {
	s := &Series{id: id, samples: make([]Sample, len(samples))}
	for i, smp := range samples {
		if !finite(smp.T) {
			return nil, NewInvalidSeriesError(id, i, "non-finite timestamp %g", smp.T)
		}
		if len(smp.V) == 0 {
			return nil, NewInvalidSeriesError(id, i, "sample has no channels")
		}
		if i == 0 {
			s.width = len(smp.V)
		} else if len(smp.V) != s.width {
			return nil, NewInvalidSeriesError(id, i,
				"width %d differs from series width %d", len(smp.V), s.width)
		}
		for c, x := range smp.V {
			if !finite(x) {
				return nil, NewInvalidSeriesError(id, i, "non-finite value %g in channel %d", x, c)
			}
		}
		s.samples[i] = NewSample(smp.T, smp.V)
	}
	return s, nil
}

// ID returns the source identifier.
func (s *Series) ID() StreamID {
	return s.id
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// Width returns the channel count, or 0 for an empty series.
func (s *Series) Width() int {
	return s.width
}

// Monotonic reports whether timestamps are non-decreasing.
func (s *Series) Monotonic() bool {
	return s.monotonic
}

// At returns the i-th sample. The returned Value must not be modified.
func (s *Series) At(i int) Sample {
	return s.samples[i]
}

// First returns the first sample; ok is false for an empty series.
func (s *Series) First() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[0], true
}

// Last returns the last sample; ok is false for an empty series.
func (s *Series) Last() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Span returns the first and last timestamps, or zeros for an empty series.
func (s *Series) Span() (lo, hi float64) {
	if len(s.samples) == 0 {
		return 0, 0
	}
	return s.samples[0].T, s.samples[len(s.samples)-1].T
}

// Timestamps returns a copy of all timestamps in series order.
func (s *Series) Timestamps() []float64 {
	ts := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		ts[i] = smp.T
	}
	return ts
}

// Samples returns a deep copy of all samples.
func (s *Series) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	for i, smp := range s.samples {
		out[i] = NewSample(smp.T, smp.V)
	}
	return out
}

// Channel returns a copy of channel c across all samples.
func (s *Series) Channel(c int) []float64 {
	out := make([]float64, len(s.samples))
	for i, smp := range s.samples {
		out[i] = smp.V[c]
	}
	return out
}

// WithID returns a series sharing s's samples under a different id.
// Safe because a Series is never mutated after construction.
func (s *Series) WithID(id StreamID) *Series {
	cp := *s
	cp.id = id
	return &cp
}

func isSorted(samples []Sample) bool {
	for i := 1; i < len(samples); i++ {
		if samples[i].T < samples[i-1].T {
			return false
		}
	}
	return true
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
