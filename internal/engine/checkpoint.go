package engine

import (
	"math"

	"github.com/roach88/sensorsync/internal/ir"
)

// Checkpoint captures enough Replayer state to resume a replay.
//
// Positions are cursor indexes keyed by stream id. Because Step always drains
// every due sample, each position equals the number of samples at or before
// Clock; Restore verifies this so a checkpoint cannot be applied to series
// whose contents changed.
type Checkpoint struct {
	Clock     float64             `json:"clock"`
	Started   bool                `json:"started"`
	Positions map[ir.StreamID]int `json:"positions"`
}

// Checkpoint returns the current replay position.
func (r *Replayer) Checkpoint() Checkpoint {
	cp := Checkpoint{
		Clock:     r.clock.Current(),
		Started:   r.clock.Started(),
		Positions: make(map[ir.StreamID]int, len(r.cursors)),
	}
	for _, c := range r.cursors {
		cp.Positions[c.id] = c.index
	}
	return cp
}

// Restore moves a fresh Replayer to cp.
//
// Returns INVALID_CHECKPOINT if the Replayer has already stepped, if the
// stream sets differ, or if a position is out of range or inconsistent with
// the checkpoint clock. On error the Replayer is unchanged.
func (r *Replayer) Restore(cp Checkpoint) error {
	if r.clock.Started() {
		return ir.NewInvalidCheckpointError("", "replayer has already advanced to %g", r.clock.Current())
	}
	if math.IsNaN(cp.Clock) {
		return ir.NewInvalidCheckpointError("", "clock is NaN")
	}
	if len(cp.Positions) != len(r.cursors) {
		return ir.NewInvalidCheckpointError("", "checkpoint has %d streams, replayer has %d",
			len(cp.Positions), len(r.cursors))
	}
	for _, c := range r.cursors {
		pos, ok := cp.Positions[c.id]
		if !ok {
			return ir.NewInvalidCheckpointError(c.id, "stream missing from checkpoint")
		}
		if pos < 0 || pos > c.series.Len() {
			return ir.NewInvalidCheckpointError(c.id, "position %d outside [0, %d]", pos, c.series.Len())
		}
		want := 0
		if cp.Started {
			want = c.dueCount(cp.Clock)
		}
		if pos != want {
			return ir.NewInvalidCheckpointError(c.id,
				"position %d does not match clock %g (expected %d)", pos, cp.Clock, want)
		}
	}

	if cp.Started {
		r.clock = NewVirtualClockAt(cp.Clock)
	}
	for _, c := range r.cursors {
		c.seek(cp.Positions[c.id], cp.Clock, cp.Started)
	}
	r.updateState()
	return nil
}
