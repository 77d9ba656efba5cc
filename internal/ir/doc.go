// Package ir provides the foundational data types for sensorsync.
//
// This package contains the sample/series model, the typed error kinds shared
// by every layer, and the canonical JSON encoding used for content hashing and
// golden traces. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - Timestamps are finite float64 seconds; NaN and Inf are rejected at
//     construction so interpolation arithmetic never checks for them
//   - A Series is read-only after construction; accessors return copies
//   - Every Value in a Series has the same channel width
//   - All JSON tags use snake_case
package ir
