package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sensorsync/internal/interp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func alignedValues(a AlignedSeries) []float64 {
	out := make([]float64, len(a.Samples))
	for i, s := range a.Samples {
		out[i] = s.V[0]
	}
	return out
}

func TestAlign_Reference(t *testing.T) {
	db := importRecording(t)

	stdout, _, err := execute(t, testEnv(t), "align", "--db", db,
		"--source", "motor", "--reference", "cam", "--format", "json")
	require.NoError(t, err)

	var result AlignResult
	decodeData(t, stdout, &result)
	assert.Equal(t, "cam", result.Reference)
	assert.Equal(t, interp.ExtrapolateLinear, result.Policy)
	require.Len(t, result.Aligned, 1)
	assert.Equal(t, 3, result.Aligned[0].Count)
	assert.Equal(t, []float64{5, 15, 25}, alignedValues(result.Aligned[0]))
	assert.Equal(t, 0.0, result.Aligned[0].Samples[0].T)
	assert.Equal(t, 2.0, result.Aligned[0].Samples[2].T)
}

func TestAlign_Clamp(t *testing.T) {
	db := importRecording(t)

	stdout, _, err := execute(t, testEnv(t), "align", "--db", db,
		"--source", "motor", "--reference", "cam", "--policy", "clamp", "--format", "json")
	require.NoError(t, err)

	var result AlignResult
	decodeData(t, stdout, &result)
	assert.Equal(t, interp.Clamp, result.Policy)
	assert.Equal(t, []float64{10, 15, 20}, alignedValues(result.Aligned[0]))
}

func TestAlign_ExplicitQueriesKeepOrder(t *testing.T) {
	db := importRecording(t)

	stdout, _, err := execute(t, testEnv(t), "align", "--db", db, "--source", "motor", "--at", "1,0.5")
	require.NoError(t, err)
	assert.Equal(t, "# motor\n1.000000\t15\n0.500000\t10\n", stdout)
}

func TestAlign_MaxGap(t *testing.T) {
	db := importRecording(t)

	stdout, _, err := execute(t, testEnv(t), "align", "--db", db,
		"--source", "motor", "--reference", "cam", "--max-gap", "0.25", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeData(t, stdout, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "OUT_OF_RANGE", resp.Error.Code)
}

func TestAlign_StoreSingle(t *testing.T) {
	db := importRecording(t)
	env := testEnv(t)

	stdout, _, err := execute(t, env, "align", "--db", db,
		"--source", "motor", "--reference", "cam", "--out", "motor@cam")
	require.NoError(t, err)
	assert.Contains(t, stdout, "motor → motor@cam (3 samples)")

	stdout, _, err = execute(t, env, "show", "motor@cam", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "0.000000\t5\n1.000000\t15\n2.000000\t25\n", stdout)
}

func TestAlign_StoreManyUsesPrefix(t *testing.T) {
	db := importRecording(t)
	env := testEnv(t)

	_, _, err := execute(t, env, "align", "--db", db,
		"--source", "motor", "--source", "imu", "--reference", "cam", "--out", "aligned")
	require.NoError(t, err)

	stdout, _, err := execute(t, env, "show", "aligned/imu", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "0.000000\t0 0 9.8\n1.000000\t1 2 9.8\n2.000000\t2 4 9.8\n", stdout)

	_, _, err = execute(t, env, "show", "aligned/motor", "--db", db)
	require.NoError(t, err)
}

func TestAlign_UnsortedResultCannotBeStored(t *testing.T) {
	db := importRecording(t)

	_, _, err := execute(t, testEnv(t), "align", "--db", db,
		"--source", "motor", "--at", "1,0.5", "--out", "bad")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAlign_Session(t *testing.T) {
	db := importRecording(t)
	sess := writeFile(t, "align.cue", `
streams: [
	{id: "camera", series: "cam"},
	{id: "motor", series: "motor"},
]
reference: "camera"
policy: "clamp"
`)

	stdout, _, err := execute(t, testEnv(t), "align", sess, "--db", db, "--format", "json")
	require.NoError(t, err)

	var result AlignResult
	decodeData(t, stdout, &result)
	assert.Equal(t, "cam", result.Reference)
	assert.Equal(t, interp.Clamp, result.Policy)
	require.Len(t, result.Aligned, 1)
	assert.Equal(t, "motor", string(result.Aligned[0].Source))
	assert.Equal(t, []float64{10, 15, 20}, alignedValues(result.Aligned[0]))

	// Flags override the session.
	stdout, _, err = execute(t, testEnv(t), "align", sess, "--db", db,
		"--policy", "extrapolate_linear", "--format", "json")
	require.NoError(t, err)
	var overridden AlignResult
	decodeData(t, stdout, &overridden)
	assert.Equal(t, []float64{5, 15, 25}, alignedValues(overridden.Aligned[0]))
}

func TestAlign_InvalidInvocations(t *testing.T) {
	db := importRecording(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"--reference", "cam"}},
		{"no queries", []string{"--source", "motor"}},
		{"both query kinds", []string{"--source", "motor", "--reference", "cam", "--at", "1"}},
		{"bad policy", []string{"--source", "motor", "--reference", "cam", "--policy", "nearest"}},
		{"negative gap", []string{"--source", "motor", "--reference", "cam", "--max-gap", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"align", "--db", db}, tt.args...)
			_, _, err := execute(t, testEnv(t), args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestAlign_MissingSeries(t *testing.T) {
	db := importRecording(t)

	_, _, err := execute(t, testEnv(t), "align", "--db", db, "--source", "ghost", "--reference", "cam")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
