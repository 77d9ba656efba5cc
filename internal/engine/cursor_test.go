package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/ir"
	"github.com/roach88/sensorsync/internal/testutil"
)

func TestCursor_AdvanceToReturnsDueSamples(t *testing.T) {
	c, err := NewCursor(testutil.Times("a", 0, 1, 2, 3))
	require.NoError(t, err)

	got, err := c.AdvanceTo(1.5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0].T)
	assert.Equal(t, 1.0, got[1].T)
	assert.Equal(t, 2, c.Index())
	assert.Equal(t, 2, c.Remaining())

	got, err = c.AdvanceTo(1.5)
	require.NoError(t, err)
	assert.Empty(t, got, "repeating the same target releases nothing")

	got, err = c.AdvanceTo(3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, c.Exhausted())

	got, err = c.AdvanceTo(100)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCursor_NothingDueYet(t *testing.T) {
	c, err := NewCursor(testutil.Times("a", 5, 6))
	require.NoError(t, err)

	got, err := c.AdvanceTo(4.9)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, c.Index())

	next, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, 5.0, next.T)
}

func TestCursor_EqualTimestampsReleasedTogether(t *testing.T) {
	c, err := NewCursor(testutil.Times("a", 1, 1, 1, 2))
	require.NoError(t, err)

	got, err := c.AdvanceTo(1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{0, 1, 2}, []float64{got[0].V[0], got[1].V[0], got[2].V[0]})
}

func TestCursor_NonMonotonicAdvance(t *testing.T) {
	c, err := NewCursor(testutil.Times("a", 0, 1, 2))
	require.NoError(t, err)

	_, err = c.AdvanceTo(1)
	require.NoError(t, err)

	_, err = c.AdvanceTo(0.5)
	require.Error(t, err)
	assert.True(t, ir.IsNonMonotonicAdvance(err))
	assert.Equal(t, 2, c.Index(), "failed advance must not move the cursor")

	_, err = c.AdvanceTo(math.NaN())
	assert.True(t, ir.IsNonMonotonicAdvance(err))
}

func TestCursor_NonMonotonicAdvanceAfterExhaustion(t *testing.T) {
	c, err := NewCursor(testutil.Times("a", 0))
	require.NoError(t, err)

	_, err = c.AdvanceTo(10)
	require.NoError(t, err)
	require.True(t, c.Exhausted())

	_, err = c.AdvanceTo(5)
	assert.True(t, ir.IsNonMonotonicAdvance(err))
}

func TestCursor_EmptySeries(t *testing.T) {
	c, err := NewCursor(ir.MustSeries("e", nil))
	require.NoError(t, err)
	assert.True(t, c.Exhausted())
	_, ok := c.Peek()
	assert.False(t, ok)

	got, err := c.AdvanceTo(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCursor_RejectsInvalidSeries(t *testing.T) {
	_, err := NewCursor(nil)
	assert.True(t, ir.IsInvalidSeries(err))

	unordered, err := ir.NewUnorderedSeries("u", []ir.Sample{{T: 1, V: ir.Value{0}}, {T: 0, V: ir.Value{0}}})
	require.NoError(t, err)
	_, err = NewCursor(unordered)
	assert.True(t, ir.IsInvalidSeries(err))
}

func TestCursor_NegativeFirstTarget(t *testing.T) {
	c, err := NewCursor(testutil.Times("a", -2, -1, 0))
	require.NoError(t, err)

	got, err := c.AdvanceTo(-1.5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
