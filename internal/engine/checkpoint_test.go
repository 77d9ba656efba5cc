package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/ir"
)

func TestCheckpoint_ResumeMatchesUninterruptedRun(t *testing.T) {
	full := newAB(t)
	want, err := full.Step(2)
	require.NoError(t, err)

	first := newAB(t)
	head, err := first.Step(0.9)
	require.NoError(t, err)
	cp := first.Checkpoint()
	assert.Equal(t, 0.9, cp.Clock)
	assert.True(t, cp.Started)
	assert.Equal(t, map[ir.StreamID]int{"A": 1, "B": 1}, cp.Positions)

	// Round-trip through JSON as the store does.
	data, err := json.Marshal(cp)
	require.NoError(t, err)
	var decoded Checkpoint
	require.NoError(t, json.Unmarshal(data, &decoded))

	resumed := newAB(t)
	require.NoError(t, resumed.Restore(decoded))
	assert.Equal(t, 0.9, resumed.Clock())
	assert.Equal(t, 3, resumed.Pending())

	tail, err := resumed.Step(2)
	require.NoError(t, err)
	assert.Equal(t, labels(want), labels(append(head, tail...)))
	assert.Equal(t, Drained, resumed.State())
}

func TestCheckpoint_RestoreRejectsBackwardsStep(t *testing.T) {
	r := newAB(t)
	require.NoError(t, r.Restore(Checkpoint{Clock: 1, Started: true, Positions: map[ir.StreamID]int{"A": 2, "B": 1}}))

	_, err := r.Step(0.5)
	assert.True(t, ir.IsNonMonotonicAdvance(err))
}

func TestCheckpoint_UnstartedRoundTrip(t *testing.T) {
	r := newAB(t)
	cp := r.Checkpoint()
	assert.False(t, cp.Started)

	fresh := newAB(t)
	require.NoError(t, fresh.Restore(cp))
	assert.False(t, fresh.Started())
	assert.Equal(t, 5, fresh.Pending())
}

func TestCheckpoint_DrainedRestore(t *testing.T) {
	r := newAB(t)
	_, err := r.Step(5)
	require.NoError(t, err)

	fresh := newAB(t)
	require.NoError(t, fresh.Restore(r.Checkpoint()))
	assert.Equal(t, Drained, fresh.State())
}

func TestCheckpoint_RestoreErrors(t *testing.T) {
	tests := []struct {
		name string
		cp   Checkpoint
		msg  string
	}{
		{
			name: "unknown stream",
			cp:   Checkpoint{Clock: 0, Started: true, Positions: map[ir.StreamID]int{"A": 1, "C": 0}},
			msg:  "missing from checkpoint",
		},
		{
			name: "stream count",
			cp:   Checkpoint{Positions: map[ir.StreamID]int{"A": 0}},
			msg:  "has 1 streams",
		},
		{
			name: "index out of range",
			cp:   Checkpoint{Clock: 9, Started: true, Positions: map[ir.StreamID]int{"A": 4, "B": 2}},
			msg:  "outside",
		},
		{
			name: "index inconsistent with clock",
			cp:   Checkpoint{Clock: 1, Started: true, Positions: map[ir.StreamID]int{"A": 1, "B": 1}},
			msg:  "does not match clock",
		},
		{
			name: "unstarted with progress",
			cp:   Checkpoint{Positions: map[ir.StreamID]int{"A": 1, "B": 0}},
			msg:  "does not match clock",
		},
		{
			name: "NaN clock",
			cp:   Checkpoint{Clock: math.NaN(), Started: true, Positions: map[ir.StreamID]int{"A": 0, "B": 0}},
			msg:  "NaN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newAB(t)
			err := r.Restore(tt.cp)
			require.Error(t, err)
			assert.True(t, ir.IsInvalidCheckpoint(err))
			assert.Contains(t, err.Error(), tt.msg)
			assert.False(t, r.Started(), "failed restore must leave the replayer untouched")
			assert.Equal(t, 5, r.Pending())
		})
	}
}

func TestCheckpoint_RestoreAfterStep(t *testing.T) {
	r := newAB(t)
	_, err := r.Step(0)
	require.NoError(t, err)

	err = r.Restore(Checkpoint{Positions: map[ir.StreamID]int{"A": 0, "B": 0}})
	assert.True(t, ir.IsInvalidCheckpoint(err))
}
