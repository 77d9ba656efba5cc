package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper records requested sleeps without blocking.
//
// It satisfies engine.Sleeper, so paced replays run instantly in tests while
// the pacing schedule stays observable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration

	// CancelAfter, when > 0, makes the Nth Sleep call invoke Cancel before
	// returning. Tests use it to interrupt a replay at a known tick.
	CancelAfter int
	Cancel      context.CancelFunc
}

// NewFakeSleeper creates a sleeper with no recorded calls.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{}
}

// Sleep records d and returns ctx.Err().
func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	n := len(s.sleeps)
	s.mu.Unlock()

	if s.CancelAfter > 0 && n == s.CancelAfter && s.Cancel != nil {
		s.Cancel()
	}
	return ctx.Err()
}

// Calls returns a copy of every recorded duration.
func (s *FakeSleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.sleeps))
	copy(out, s.sleeps)
	return out
}

// Total returns the sum of recorded durations.
func (s *FakeSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.sleeps {
		total += d
	}
	return total
}

// Reset clears recorded calls.
func (s *FakeSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = nil
}
