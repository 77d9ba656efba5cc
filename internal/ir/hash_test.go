package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesHashDeterministic(t *testing.T) {
	a := MustScalarSeries("motor", []float64{0, 1, 2}, []float64{0, 10, 20})
	b := MustScalarSeries("motor", []float64{0, 1, 2}, []float64{0, 10, 20})

	ha, err := SeriesHash(a)
	require.NoError(t, err)
	hb, err := SeriesHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestSeriesHashSensitivity(t *testing.T) {
	base := MustSeriesHash(MustScalarSeries("motor", []float64{0, 1}, []float64{0, 10}))

	tests := []struct {
		name   string
		series *Series
	}{
		{"different id", MustScalarSeries("camera", []float64{0, 1}, []float64{0, 10})},
		{"different value", MustScalarSeries("motor", []float64{0, 1}, []float64{0, 11})},
		{"different time", MustScalarSeries("motor", []float64{0, 1.5}, []float64{0, 10})},
		{"extra sample", MustScalarSeries("motor", []float64{0, 1, 2}, []float64{0, 10, 20})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, MustSeriesHash(tt.series))
		})
	}
}

func TestSeriesHashEmpty(t *testing.T) {
	h, err := SeriesHash(MustSeries("empty", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, h)
}

func TestTraceHashOrderSensitive(t *testing.T) {
	s1 := Sample{T: 0, V: Value{1}}
	s2 := Sample{T: 0, V: Value{2}}

	h1, err := TraceHash([]StreamID{"a", "b"}, []int{0, 0}, []Sample{s1, s2})
	require.NoError(t, err)
	h2, err := TraceHash([]StreamID{"b", "a"}, []int{0, 0}, []Sample{s2, s1})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestTraceHashMismatchedLengths(t *testing.T) {
	_, err := TraceHash([]StreamID{"a"}, []int{0, 1}, []Sample{{T: 0, V: Value{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatched lengths")
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`[]`)
	assert.NotEqual(t, hashWithDomain(DomainSeries, data), hashWithDomain(DomainEmission, data))
}
