// Package interp evaluates a Series at arbitrary times.
//
// An Interpolator borrows a monotonic Series read-only and answers point
// queries by binary search plus linear interpolation, channel by channel.
// Queries outside the recorded range follow a boundary Policy.
//
// Interpolators hold no mutable state after Build, so any number of
// goroutines may query one concurrently.
package interp
