package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const interleaveScenario = `name: interleave
description: "two streams merged by timestamp"
streams:
  - id: A
    t: [0, 1]
    values: [0, 1]
  - id: B
    t: [0.5]
    values: [5]
steps: [1]
assertions:
  - type: emission_order
    emissions: ["A[0]", "B[0]", "A[1]"]
`

func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTest_HarnessScenariosPass(t *testing.T) {
	stdout, _, err := execute(t, testEnv(t), "test", harnessScenarios, "--format", "json")
	require.NoError(t, err, stdout)

	var result TestResult
	resp := decodeData(t, stdout, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, result.Total, result.Passed)
	assert.GreaterOrEqual(t, result.Total, 11)

	golden := 0
	for _, s := range result.Scenarios {
		if s.Golden == "match" {
			golden++
		}
	}
	assert.GreaterOrEqual(t, golden, 8, "scenarios with golden files must match them")
}

func TestTest_Filter(t *testing.T) {
	stdout, _, err := execute(t, testEnv(t), "test", harnessScenarios, "--filter", "align_*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ align_clamp")
	assert.NotContains(t, stdout, "replay_interleave")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestTest_UpdateThenCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"interleave.yaml": interleaveScenario})
	env := testEnv(t)

	stdout, _, err := execute(t, env, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ interleave (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "interleave.golden")
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"interleave"`)

	stdout, _, err = execute(t, env, "test", dir, "--format", "json")
	require.NoError(t, err)
	var result TestResult
	decodeData(t, stdout, &result)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "match", result.Scenarios[0].Golden)

	// A stale golden file fails the scenario even though assertions pass.
	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"trace":[]}`), 0644))
	stdout, _, err = execute(t, env, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ interleave")
	assert.Contains(t, stdout, "does not match golden file")
}

func TestTest_FailingScenario(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"ok.yaml": interleaveScenario,
		"bad.yaml": `name: bad
description: "stops before the last sample"
streams:
  - id: A
    t: [0, 1]
    values: [0, 1]
steps: [0.5]
assertions:
  - type: drained
`,
	})

	stdout, _, err := execute(t, testEnv(t), "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeData(t, stdout, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "bad", result.Scenarios[0].Name)
	assert.False(t, result.Scenarios[0].Pass)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTest_LoadError(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"typo.yaml": "name: typo\nasertions: []\n"})

	stdout, _, err := execute(t, testEnv(t), "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "✗ typo")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestTest_NoScenarios(t *testing.T) {
	stdout, _, err := execute(t, testEnv(t), "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")
}

func TestTest_MissingDir(t *testing.T) {
	_, _, err := execute(t, testEnv(t), "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
