package testutil

import (
	"math"

	"github.com/roach88/sensorsync/internal/ir"
)

// Ticks returns n timestamps start, start+period, ...
// Each is computed as start + i*period so there is no accumulated drift.
func Ticks(start, period float64, n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = start + float64(i)*period
	}
	return ts
}

// Linear builds a scalar series with v = slope*t + intercept at ts.
func Linear(id ir.StreamID, ts []float64, slope, intercept float64) *ir.Series {
	vs := make([]float64, len(ts))
	for i, t := range ts {
		vs[i] = slope*t + intercept
	}
	return ir.MustScalarSeries(id, ts, vs)
}

// Sine builds a scalar series with v = sin(2*pi*hz*t) at ts.
func Sine(id ir.StreamID, ts []float64, hz float64) *ir.Series {
	vs := make([]float64, len(ts))
	for i, t := range ts {
		vs[i] = math.Sin(2 * math.Pi * hz * t)
	}
	return ir.MustScalarSeries(id, ts, vs)
}

// Times builds a scalar series whose value at each timestamp is its index.
// Replay tests use it when only ordering matters.
func Times(id ir.StreamID, ts ...float64) *ir.Series {
	vs := make([]float64, len(ts))
	for i := range vs {
		vs[i] = float64(i)
	}
	return ir.MustScalarSeries(id, ts, vs)
}
