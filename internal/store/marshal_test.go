package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/ir"
)

func TestMarshalValue_Canonical(t *testing.T) {
	s, err := marshalValue(ir.Value{0.1, 2, -0.0005})
	require.NoError(t, err)
	assert.Equal(t, `[0.1,2,-0.0005]`, s)

	v, err := unmarshalValue(s)
	require.NoError(t, err)
	assert.Equal(t, ir.Value{0.1, 2, -0.0005}, v)

	_, err = unmarshalValue(`{"not":"array"}`)
	assert.Error(t, err)
}

func TestMarshalPositions_SortedKeys(t *testing.T) {
	s, err := marshalPositions(map[ir.StreamID]int{"motor": 2, "camera": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"camera":1,"motor":2}`, s)

	pos, err := unmarshalPositions(s)
	require.NoError(t, err)
	assert.Equal(t, map[ir.StreamID]int{"camera": 1, "motor": 2}, pos)
}
