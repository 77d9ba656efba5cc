package align

import (
	"math"

	"github.com/roach88/sensorsync/internal/interp"
	"github.com/roach88/sensorsync/internal/ir"
)

// Aligner resamples series at caller-supplied timestamps.
// The zero value is not usable; construct with New.
type Aligner struct {
	policy interp.Policy
	maxGap float64
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithPolicy sets the boundary policy.
//
// Default: interp.ExtrapolateLinear, which tolerates small clock offsets at
// the edges of a recording.
func WithPolicy(p interp.Policy) Option {
	return func(a *Aligner) {
		a.policy = p
	}
}

// WithMaxGap bounds how far outside the source's recorded range a query may
// fall. A query further than d before the first or after the last sample
// fails with OUT_OF_RANGE.
//
// Default: 0, which allows any distance.
func WithMaxGap(d float64) Option {
	return func(a *Aligner) {
		a.maxGap = d
	}
}

// New creates an Aligner.
func New(opts ...Option) *Aligner {
	a := &Aligner{policy: interp.ExtrapolateLinear}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Policy returns the configured boundary policy.
func (a *Aligner) Policy() interp.Policy {
	return a.policy
}

// MaxGap returns the configured gap bound; 0 means unbounded.
func (a *Aligner) MaxGap() float64 {
	return a.maxGap
}

// Align evaluates source at each query timestamp.
//
// The result has source's id, exactly len(queries) samples, and timestamps
// equal to queries in the given order. Because queries may be unsorted or
// repeat, the result may be non-monotonic; check Monotonic before replaying
// it. Inputs are not modified.
func (a *Aligner) Align(source *ir.Series, queries []float64) (*ir.Series, error) {
	ip, err := interp.Build(source, a.policy)
	if err != nil {
		return nil, err
	}
	lo, hi := ip.Range()

	samples := make([]ir.Sample, len(queries))
	for i, q := range queries {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, ir.NewInvalidSeriesError(source.ID(), i, "non-finite query timestamp %g", q)
		}
		if a.maxGap > 0 && (q < lo-a.maxGap || q > hi+a.maxGap) {
			return nil, ir.NewOutOfRangeError(source.ID(), i, q, lo, hi, a.maxGap)
		}
		samples[i] = ir.Sample{T: q, V: ip.Query(q)}
	}
	return ir.NewUnorderedSeries(source.ID(), samples)
}

// AlignTo evaluates source at every timestamp of reference.
func (a *Aligner) AlignTo(source, reference *ir.Series) (*ir.Series, error) {
	if reference == nil {
		return nil, ir.NewInvalidSeriesError("", -1, "reference series is nil")
	}
	return a.Align(source, reference.Timestamps())
}

// AlignAll aligns every source onto reference's clock.
// Results are returned in the order of sources; the first failure aborts.
func (a *Aligner) AlignAll(sources []*ir.Series, reference *ir.Series) ([]*ir.Series, error) {
	if reference == nil {
		return nil, ir.NewInvalidSeriesError("", -1, "reference series is nil")
	}
	queries := reference.Timestamps()
	out := make([]*ir.Series, len(sources))
	for i, src := range sources {
		aligned, err := a.Align(src, queries)
		if err != nil {
			return nil, err
		}
		out[i] = aligned
	}
	return out, nil
}
