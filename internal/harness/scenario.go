package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/interp"
	"github.com/roach88/sensorsync/internal/ir"
)

// Scenario defines a replay/alignment test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Streams are registered with the replayer in the order listed.
	Streams []StreamSpec `yaml:"streams"`

	// Steps are replay step targets, applied in order.
	Steps []float64 `yaml:"steps,omitempty"`

	// ResumeAfter, when positive, checkpoints the replayer after that many
	// steps, round-trips the checkpoint through a store, and continues on a
	// fresh replayer restored from it. The trace must not change.
	ResumeAfter int `yaml:"resume_after,omitempty"`

	// RunID keys the stored checkpoint. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Align optionally aligns one stream against another or against
	// explicit query times.
	Align *AlignSpec `yaml:"align,omitempty"`

	// Assertions validate the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// StreamSpec is an inline series. Exactly one of Values (one channel per
// sample) or V (any width) is given, with one entry per timestamp.
type StreamSpec struct {
	ID     string      `yaml:"id"`
	T      []float64   `yaml:"t"`
	Values []float64   `yaml:"values,omitempty"`
	V      [][]float64 `yaml:"v,omitempty"`
}

// Series builds the ir.Series for s. Invalid data is reported as an
// INVALID_SERIES error, not rejected at load time, so scenarios can assert
// on it.
func (s StreamSpec) Series() (*ir.Series, error) {
	samples := make([]ir.Sample, len(s.T))
	for i, t := range s.T {
		if s.V != nil {
			samples[i] = ir.Sample{T: t, V: s.V[i]}
		} else {
			samples[i] = ir.Sample{T: t, V: ir.Scalar(s.Values[i])}
		}
	}
	return ir.NewSeries(ir.StreamID(s.ID), samples)
}

// AlignSpec configures an alignment. Exactly one of Reference or Queries is
// given.
type AlignSpec struct {
	Source    string    `yaml:"source"`
	Reference string    `yaml:"reference,omitempty"`
	Queries   []float64 `yaml:"queries,omitempty"`
	Policy    string    `yaml:"policy,omitempty"`
	MaxGap    float64   `yaml:"max_gap,omitempty"`
}

// Assertion validates a scenario result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "emission_order": emissions appear in exactly this order
	// - "emission_count": number of emissions, optionally for one stream
	// - "aligned_values": alignment output values within a tolerance
	// - "expect_error": an error with this code was recorded
	// - "drained": replayer drained state after the last step
	Type string `yaml:"type"`

	// Emissions lists labels like "A[0]" (used by emission_order).
	Emissions []string `yaml:"emissions,omitempty"`

	// Stream filters emission_count; empty counts every stream.
	Stream string `yaml:"stream,omitempty"`

	// Count is the expected number of emissions (used by emission_count).
	Count int `yaml:"count,omitempty"`

	// Values are expected one-channel outputs; V allows any width
	// (used by aligned_values).
	Values []float64   `yaml:"values,omitempty"`
	V      [][]float64 `yaml:"v,omitempty"`

	// Times optionally checks the aligned output timestamps exactly.
	Times []float64 `yaml:"times,omitempty"`

	// Tolerance is the absolute tolerance for aligned_values; 0 selects
	// DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Code is the expected error code (used by expect_error).
	Code string `yaml:"code,omitempty"`

	// Stage optionally restricts expect_error to one stage.
	Stage string `yaml:"stage,omitempty"`

	// Expect is the expected drained state; nil means true.
	Expect *bool `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertEmissionOrder = "emission_order"
	AssertEmissionCount = "emission_count"
	AssertAlignedValues = "aligned_values"
	AssertExpectError   = "expect_error"
	AssertDrained       = "drained"
)

// DefaultTolerance is used by aligned_values when none is given.
const DefaultTolerance = 1e-9

// emissionLabel matches "stream[index]".
var emissionLabel = regexp.MustCompile(`^(.+)\[(\d+)\]$`)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted. A
// non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Streams) == 0 {
		return fmt.Errorf("streams list is required and must be non-empty")
	}
	if len(s.Steps) == 0 && s.Align == nil {
		return fmt.Errorf("at least one of steps or align is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.ResumeAfter < 0 || s.ResumeAfter > len(s.Steps) {
		return fmt.Errorf("resume_after must be in [0, %d], got %d", len(s.Steps), s.ResumeAfter)
	}

	ids := make(map[string]bool, len(s.Streams))
	for i, st := range s.Streams {
		if st.ID == "" {
			return fmt.Errorf("streams[%d]: id is required", i)
		}
		ids[st.ID] = true
		switch {
		case st.Values != nil && st.V != nil:
			return fmt.Errorf("streams[%d]: give values or v, not both", i)
		case st.V != nil && len(st.V) != len(st.T):
			return fmt.Errorf("streams[%d]: v has %d entries but t has %d", i, len(st.V), len(st.T))
		case st.V == nil && len(st.Values) != len(st.T):
			return fmt.Errorf("streams[%d]: values has %d entries but t has %d", i, len(st.Values), len(st.T))
		}
	}

	if a := s.Align; a != nil {
		if !ids[a.Source] {
			return fmt.Errorf("align: unknown source stream %q", a.Source)
		}
		if (a.Reference == "") == (a.Queries == nil) {
			return fmt.Errorf("align: give reference or queries, not both or neither")
		}
		if a.Reference != "" && !ids[a.Reference] {
			return fmt.Errorf("align: unknown reference stream %q", a.Reference)
		}
		if _, err := interp.ParsePolicy(a.Policy); err != nil {
			return fmt.Errorf("align: %w", err)
		}
		if a.MaxGap < 0 {
			return fmt.Errorf("align: max_gap must not be negative")
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, s *Scenario) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEmissionOrder:
		if len(s.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: emission_order needs steps", index)
		}
		for _, label := range a.Emissions {
			if !emissionLabel.MatchString(label) {
				return fmt.Errorf("assertions[%d]: malformed emission %q (want stream[index])", index, label)
			}
		}
	case AssertEmissionCount:
		if len(s.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: emission_count needs steps", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for emission_count", index)
		}
	case AssertAlignedValues:
		if s.Align == nil {
			return fmt.Errorf("assertions[%d]: aligned_values needs align", index)
		}
		if (a.Values == nil) == (a.V == nil) {
			return fmt.Errorf("assertions[%d]: give values or v for aligned_values", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must not be negative", index)
		}
	case AssertExpectError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for expect_error", index)
		}
	case AssertDrained:
		if len(s.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: drained needs steps", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// streams builds the engine streams in scenario order.
func (s *Scenario) streams() ([]engine.Stream, map[ir.StreamID]*ir.Series, error) {
	out := make([]engine.Stream, 0, len(s.Streams))
	byID := make(map[ir.StreamID]*ir.Series, len(s.Streams))
	for _, spec := range s.Streams {
		series, err := spec.Series()
		if err != nil {
			return nil, nil, err
		}
		out = append(out, engine.Stream{ID: series.ID(), Series: series})
		byID[series.ID()] = series
	}
	return out, byID, nil
}
