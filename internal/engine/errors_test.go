package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/sensorsync/internal/ir"
)

func TestSinkError(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("run: %w", &SinkError{
		Emission: Emission{Stream: "motor", Index: 4, Sample: ir.Sample{T: 0.013}},
		Err:      cause,
	})

	assert.True(t, IsSinkError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "sink rejected motor[4]@0.013: disk full")
	assert.False(t, IsSinkError(cause))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "drained", Drained.String())
	assert.Equal(t, "unknown", State(7).String())
}
