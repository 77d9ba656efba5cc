package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/ir"
)

// goldenScenarios have exactly representable outputs, so their traces are
// pinned byte for byte.
var goldenScenarios = []string{
	"replay_interleave",
	"replay_non_monotonic",
	"replay_resume",
	"replay_partial",
	"replay_duplicate_stream",
	"align_clamp",
	"align_extrapolate",
	"align_empty_source",
}

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenarios_AllPass(t *testing.T) {
	files, err := FindScenarios(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestScenarios_Golden(t *testing.T) {
	for _, name := range goldenScenarios {
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "replay_interleave")

	r1, err := Run(s)
	require.NoError(t, err)
	r2, err := Run(s)
	require.NoError(t, err)

	j1, err := SnapshotJSON(s.Name, r1)
	require.NoError(t, err)
	j2, err := SnapshotJSON(s.Name, r2)
	require.NoError(t, err)
	assert.Equal(t, string(j1), string(j2))
}

func TestRun_ResumeMatchesUninterrupted(t *testing.T) {
	resumed := loadTestScenario(t, "replay_resume")
	straight := *resumed
	straight.ResumeAfter = 0

	r1, err := Run(resumed)
	require.NoError(t, err)
	r2, err := Run(&straight)
	require.NoError(t, err)
	assert.Equal(t, r2.Trace, r1.Trace)
	assert.Equal(t, r2.Drained, r1.Drained)
}

func TestRun_ResumeAtDrainedCheckpoint(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: resume_after_drain
description: "Resuming a drained replay keeps it drained"
streams:
  - id: A
    t: [0]
    values: [1]
steps: [1, 2]
resume_after: 1
assertions:
  - type: emission_count
    count: 1
  - type: drained
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: surprise
description: "A backwards step nobody expected"
streams:
  - id: A
    t: [0, 1]
    values: [0, 1]
steps: [1, 0]
assertions:
  - type: emission_count
    count: 2
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected step error")
	assert.Contains(t, result.Errors[0], string(ir.ErrCodeNonMonotonicAdvance))
}

func TestRun_InvalidStreamRecorded(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_stream
description: "Timestamps must not decrease"
streams:
  - id: A
    t: [1, 0]
    values: [0, 1]
steps: [1]
assertions:
  - type: expect_error
    code: INVALID_SERIES
    stage: streams
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
	assert.Empty(t, result.Emissions())
	require.Len(t, result.Failures(), 1)
	assert.Contains(t, result.Failures()[0].Message, "stream=A")
}

func TestRun_AlignedSeriesExposed(t *testing.T) {
	s := loadTestScenario(t, "align_clamp")
	result, err := Run(s)
	require.NoError(t, err)

	require.NotNil(t, result.Aligned)
	assert.Equal(t, ir.StreamID("source"), result.Aligned.ID())
	assert.Equal(t, []float64{-1, 0.5, 3}, result.Aligned.Timestamps())
	assert.True(t, result.Aligned.Monotonic())
}
