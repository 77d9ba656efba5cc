package interp

import (
	"sort"

	"github.com/roach88/sensorsync/internal/ir"
)

// Interpolator answers point queries against one Series.
//
// Equal timestamps are tolerated: a query at (or bracketed by) a repeated
// timestamp uses the last sample recorded at that time.
type Interpolator struct {
	series *ir.Series
	policy Policy
	lo, hi float64

	// Boundary anchors, resolved once at Build. Each is the last index at
	// its timestamp; -1 when the series has a single distinct timestamp.
	first     int // last sample at lo
	firstNext int // last sample at the next distinct time after lo
	lastPrev  int // last sample at the greatest time before hi
}

// Build validates series and returns an Interpolator over it.
// The series is borrowed, not copied; Series values never change after
// construction, so this is safe.
func Build(series *ir.Series, policy Policy) (*Interpolator, error) {
	if series == nil {
		return nil, ir.NewInvalidSeriesError("", -1, "series is nil")
	}
	if series.Len() == 0 {
		return nil, ir.NewInvalidSeriesError(series.ID(), -1, "series is empty")
	}
	if !series.Monotonic() {
		return nil, ir.NewInvalidSeriesError(series.ID(), -1, "timestamps are not non-decreasing")
	}
	if policy != Clamp && policy != ExtrapolateLinear {
		return nil, ir.NewInvalidSeriesError(series.ID(), -1, "unknown boundary policy %d", int(policy))
	}

	ip := &Interpolator{series: series, policy: policy}
	ip.lo, ip.hi = series.Span()

	n := series.Len()
	ip.first = ip.lastAt(0)
	ip.firstNext = -1
	ip.lastPrev = -1
	if ip.first+1 < n {
		ip.firstNext = ip.lastAt(ip.first + 1)
		ip.lastPrev = ip.lowerIndex(ip.hi) - 1
	}
	return ip, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustBuild(series *ir.Series, policy Policy) *Interpolator {
	ip, err := Build(series, policy)
	if err != nil {
		panic(err)
	}
	return ip
}

// Policy returns the boundary policy.
func (ip *Interpolator) Policy() Policy {
	return ip.policy
}

// Range returns the first and last recorded timestamps.
func (ip *Interpolator) Range() (lo, hi float64) {
	return ip.lo, ip.hi
}

// Series returns the underlying series.
func (ip *Interpolator) Series() *ir.Series {
	return ip.series
}

// Query returns the estimated value at t in a freshly allocated Value.
func (ip *Interpolator) Query(t float64) ir.Value {
	return ip.QueryInto(t, nil)
}

// QueryInto writes the estimated value at t into dst, growing it if needed,
// and returns the slice holding the result.
func (ip *Interpolator) QueryInto(t float64, dst ir.Value) ir.Value {
	width := ip.series.Width()
	if cap(dst) < width {
		dst = make(ir.Value, width)
	}
	dst = dst[:width]

	switch {
	case t < ip.lo:
		if ip.policy == Clamp || ip.firstNext < 0 {
			copy(dst, ip.series.At(ip.first).V)
			return dst
		}
		lerp(dst, ip.series.At(ip.first), ip.series.At(ip.firstNext), t)
	case t > ip.hi:
		last := ip.series.Len() - 1
		if ip.policy == Clamp || ip.lastPrev < 0 {
			copy(dst, ip.series.At(last).V)
			return dst
		}
		lerp(dst, ip.series.At(ip.lastPrev), ip.series.At(last), t)
	default:
		// First index with T > t; t >= lo guarantees i >= 1. The upper
		// bracket is the last sample sharing that timestamp.
		i := ip.upper(t)
		a := ip.series.At(i - 1)
		if i == ip.series.Len() || a.T == t {
			copy(dst, a.V)
			return dst
		}
		lerp(dst, a, ip.series.At(ip.lastAt(i)), t)
	}
	return dst
}

// upper returns the index of the first sample with T > t.
func (ip *Interpolator) upper(t float64) int {
	return sort.Search(ip.series.Len(), func(i int) bool {
		return ip.series.At(i).T > t
	})
}

// lowerIndex returns the index of the first sample with T >= t.
func (ip *Interpolator) lowerIndex(t float64) int {
	return sort.Search(ip.series.Len(), func(i int) bool {
		return ip.series.At(i).T >= t
	})
}

// lastAt returns the last index sharing the timestamp of sample i.
func (ip *Interpolator) lastAt(i int) int {
	return ip.upper(ip.series.At(i).T) - 1
}

// lerp evaluates the line through a and b at t, channel by channel.
// a.T and b.T must differ.
func lerp(dst ir.Value, a, b ir.Sample, t float64) {
	frac := (t - a.T) / (b.T - a.T)
	for c := range dst {
		dst[c] = a.V[c] + (b.V[c]-a.V[c])*frac
	}
}
