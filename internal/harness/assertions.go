package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/sensorsync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		switch event.Type {
		case EventStep:
			fmt.Fprintf(&buf, "  [%d] step %d -> %g (%d emitted)\n", event.Seq, event.Step, event.Target, event.Emitted)
		case EventEmission:
			fmt.Fprintf(&buf, "  [%d]   %s @%g %v\n", event.Seq, event.Label(), event.T, []float64(event.V))
		case EventAligned:
			fmt.Fprintf(&buf, "  [%d] aligned[%d] @%g %v\n", event.Seq, event.Index, event.T, []float64(event.V))
		case EventError:
			fmt.Fprintf(&buf, "  [%d] %s error: %s\n", event.Seq, event.Stage, event.Message)
		}
	}

	return buf.String()
}

// assertEmissionOrder checks that the emissions are exactly the listed
// labels, in order.
func assertEmissionOrder(result *Result, assertion Assertion) error {
	emissions := result.Emissions()
	actual := make([]string, len(emissions))
	for i, e := range emissions {
		actual[i] = e.Label()
	}

	mismatch := len(actual) != len(assertion.Emissions)
	for i := 0; !mismatch && i < len(actual); i++ {
		mismatch = actual[i] != assertion.Emissions[i]
	}
	if !mismatch {
		return nil
	}
	return &AssertionError{
		Type:     AssertEmissionOrder,
		Expected: strings.Join(assertion.Emissions, ", "),
		Actual:   strings.Join(actual, ", "),
		Trace:    result.Trace,
	}
}

// assertEmissionCount checks the number of emissions, optionally for one stream.
func assertEmissionCount(result *Result, assertion Assertion) error {
	count := 0
	for _, e := range result.Emissions() {
		if assertion.Stream == "" || string(e.Stream) == assertion.Stream {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}

	what := "emissions"
	if assertion.Stream != "" {
		what = "emissions of " + assertion.Stream
	}
	return &AssertionError{
		Type:     AssertEmissionCount,
		Expected: fmt.Sprintf("%d %s", assertion.Count, what),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Trace:    result.Trace,
	}
}

// assertAlignedValues compares alignment output within a tolerance.
func assertAlignedValues(result *Result, assertion Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     AssertAlignedValues,
			Expected: expected,
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	if result.Aligned == nil {
		return fail("alignment output", "alignment did not produce a series")
	}

	expected := assertion.V
	if expected == nil {
		expected = make([][]float64, len(assertion.Values))
		for i, v := range assertion.Values {
			expected[i] = []float64{v}
		}
	}
	tol := assertion.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	out := result.Aligned
	if out.Len() != len(expected) {
		return fail(fmt.Sprintf("%d aligned samples", len(expected)), fmt.Sprintf("%d aligned samples", out.Len()))
	}
	if assertion.Times != nil {
		if len(assertion.Times) != out.Len() {
			return fail(fmt.Sprintf("%d aligned times", len(assertion.Times)), fmt.Sprintf("%d aligned times", out.Len()))
		}
		for i, t := range assertion.Times {
			if out.At(i).T != t {
				return fail(fmt.Sprintf("sample %d at t=%g", i, t), fmt.Sprintf("t=%g", out.At(i).T))
			}
		}
	}
	for i, want := range expected {
		got := out.At(i).V
		if !withinTolerance(got, want, tol) {
			return fail(
				fmt.Sprintf("sample %d = %v (tolerance %g)", i, want, tol),
				fmt.Sprintf("%v", []float64(got)),
			)
		}
	}
	return nil
}

func withinTolerance(got ir.Value, want []float64, tol float64) bool {
	if len(got) != len(want) {
		return false
	}
	for c := range want {
		if !(math.Abs(got[c]-want[c]) <= tol) {
			return false
		}
	}
	return true
}

// assertExpectError checks that an error with the given code (and stage, if
// set) was recorded.
func assertExpectError(result *Result, assertion Assertion) error {
	for _, e := range result.Failures() {
		if matchesFailure(e, assertion) {
			return nil
		}
	}

	expected := assertion.Code
	if assertion.Stage != "" {
		expected += " at stage " + assertion.Stage
	}
	var actual []string
	for _, e := range result.Failures() {
		actual = append(actual, fmt.Sprintf("%s at stage %s", e.Code, e.Stage))
	}
	if len(actual) == 0 {
		actual = []string{"no errors"}
	}
	return &AssertionError{
		Type:     AssertExpectError,
		Expected: expected,
		Actual:   strings.Join(actual, ", "),
		Trace:    result.Trace,
	}
}

func matchesFailure(e TraceEvent, assertion Assertion) bool {
	return string(e.Code) == assertion.Code && (assertion.Stage == "" || e.Stage == assertion.Stage)
}

// assertDrained checks the replayer state after the last step.
func assertDrained(result *Result, assertion Assertion) error {
	want := assertion.Expect == nil || *assertion.Expect
	if result.Drained == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertDrained,
		Expected: fmt.Sprintf("drained=%t", want),
		Actual:   fmt.Sprintf("drained=%t", result.Drained),
		Trace:    result.Trace,
	}
}

// unexpectedFailures reports recorded errors that no expect_error assertion
// accounts for.
func unexpectedFailures(result *Result, assertions []Assertion) []string {
	var msgs []string
	for _, e := range result.Failures() {
		expected := false
		for _, a := range assertions {
			if a.Type == AssertExpectError && matchesFailure(e, a) {
				expected = true
				break
			}
		}
		if !expected {
			msgs = append(msgs, fmt.Sprintf("unexpected %s error: %s", e.Stage, e.Message))
		}
	}
	return msgs
}

// EvaluateAssertions runs all assertions against the result.
// Returns a list of error messages, empty if every assertion passed and no
// unexpected error was recorded.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEmissionOrder:
			err = assertEmissionOrder(result, assertion)
		case AssertEmissionCount:
			err = assertEmissionCount(result, assertion)
		case AssertAlignedValues:
			err = assertAlignedValues(result, assertion)
		case AssertExpectError:
			err = assertExpectError(result, assertion)
		case AssertDrained:
			err = assertDrained(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return append(errors, unexpectedFailures(result, assertions)...)
}
