// Package align resamples one Series onto another stream's clock.
//
// An Aligner builds a single Interpolator per source and evaluates it at
// every query timestamp, in input order. Queries need not be sorted; the
// result keeps them exactly as given.
package align
