package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sensorsync/internal/ir"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	DB string
}

// ImportResult reports what import stored.
type ImportResult struct {
	File   string         `json:"file"`
	Series []StoredSeries `json:"series"`
}

// seriesFile is the on-disk import format. JSON files parse too.
type seriesFile struct {
	Series []seriesEntry `yaml:"series"`
}

// seriesEntry holds one series. Exactly one of Values (scalar samples) or V
// (vector samples) is given, one entry per timestamp. Numbers are decoded
// loosely and coerced, so 1, 1.0 and "1.0" are all accepted.
type seriesEntry struct {
	ID     string  `yaml:"id"`
	T      []any   `yaml:"t"`
	Values []any   `yaml:"values"`
	V      [][]any `yaml:"v"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import recorded series from YAML or JSON",
		Long: `Import one or more series into the database.

File format:

  series:
    - id: motor/position
      t: [0.000, 0.002, 0.004]
      values: [0.0, 0.1, 0.2]
    - id: imu/accel
      t: [0.0, 0.01]
      v: [[0, 0, 9.8], [0.1, 0, 9.8]]

Every series is validated before anything is written: timestamps must be
finite and non-decreasing, and all samples of a series share one width.
Re-importing identical content is a no-op.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	dbFlag(cmd, &opts.DB, rootOpts)

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	data, err := os.ReadFile(path)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to read import file", err, nil)
	}
	series, err := parseSeriesFile(data)
	if err != nil {
		return out.Fail(ExitFailure, fmt.Sprintf("rejected %s", path), err, nil)
	}

	st, err := openStore(opts.DB, opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to open database", err, nil)
	}
	defer closeStore(st)

	result := ImportResult{File: path}
	for _, s := range series {
		written, err := st.WriteSeries(cmd.Context(), s)
		if err != nil {
			return out.Fail(ExitCommandError, fmt.Sprintf("failed to store %s", s.ID()), err, nil)
		}
		result.Series = append(result.Series, StoredSeries{ID: s.ID(), Samples: s.Len(), Written: written})
	}

	if out.JSON() {
		return out.Success(result)
	}
	for _, s := range result.Series {
		out.Printf("✓ %s: %d samples%s\n", s.ID, s.Samples, unchangedSuffix(s.Written))
	}
	return nil
}

// parseSeriesFile decodes and validates every series in data.
func parseSeriesFile(data []byte) ([]*ir.Series, error) {
	var file seriesFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Series) == 0 {
		return nil, fmt.Errorf("no series in file")
	}

	seen := make(map[string]bool, len(file.Series))
	out := make([]*ir.Series, 0, len(file.Series))
	for i, e := range file.Series {
		if e.ID == "" {
			return nil, fmt.Errorf("series[%d]: id is required", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("series[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true

		s, err := e.series()
		if err != nil {
			return nil, fmt.Errorf("series[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (e seriesEntry) series() (*ir.Series, error) {
	id := ir.StreamID(e.ID)
	switch {
	case e.Values != nil && e.V != nil:
		return nil, ir.NewInvalidSeriesError(id, -1, "both values and v given")
	case e.Values == nil && e.V == nil:
		return nil, ir.NewInvalidSeriesError(id, -1, "one of values or v is required")
	}

	n := len(e.Values)
	if e.V != nil {
		n = len(e.V)
	}
	if n != len(e.T) {
		return nil, ir.NewInvalidSeriesError(id, -1, "%d timestamps but %d values", len(e.T), n)
	}

	samples := make([]ir.Sample, len(e.T))
	for i, raw := range e.T {
		t, err := toNumber(raw)
		if err != nil {
			return nil, ir.NewInvalidSeriesError(id, i, "timestamp: %v", err)
		}
		var v ir.Value
		if e.V != nil {
			v = make(ir.Value, len(e.V[i]))
			for c, x := range e.V[i] {
				if v[c], err = toNumber(x); err != nil {
					return nil, ir.NewInvalidSeriesError(id, i, "channel %d: %v", c, err)
				}
			}
		} else {
			x, err := toNumber(e.Values[i])
			if err != nil {
				return nil, ir.NewInvalidSeriesError(id, i, "value: %v", err)
			}
			v = ir.Scalar(x)
		}
		samples[i] = ir.Sample{T: t, V: v}
	}
	return ir.NewSeries(id, samples)
}

// toNumber coerces a decoded YAML scalar to float64. Nulls and booleans are
// rejected even though cast would accept them.
func toNumber(x any) (float64, error) {
	switch x.(type) {
	case nil:
		return 0, fmt.Errorf("missing number")
	case bool:
		return 0, fmt.Errorf("boolean %v is not a number", x)
	}
	return cast.ToFloat64E(x)
}
