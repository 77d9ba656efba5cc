// Package engine implements multi-stream ordered replay.
//
// A Replayer owns one Cursor per registered stream and a VirtualClock.
// Each Step advances the clock and returns every sample that became due,
// merged into one sequence.
//
// ORDERING:
//
// Emissions within a step are sorted by timestamp. Equal timestamps from
// different streams are emitted in stream registration order; equal
// timestamps within one stream keep their series order. The rule depends
// only on the registered data, never on the caller or on step granularity,
// so any schedule of increasing Step targets yields the same total order.
//
// OWNERSHIP:
//
// Replayer and Cursor are single-owner and do no locking. Callers that feed
// one Replayer from several goroutines must serialize Step themselves.
// Player drives a Replayer from a single goroutine and paces it against wall
// time when asked to. Hub fans emissions out to concurrent subscribers and is
// the only type here that is safe for concurrent use.
//
// Time never moves backwards: a Step or AdvanceTo target below one already
// observed fails with NON_MONOTONIC_ADVANCE instead of being clamped.
package engine
