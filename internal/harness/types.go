package harness

import (
	"fmt"

	"github.com/roach88/sensorsync/internal/ir"
)

// Trace event types.
const (
	EventStep     = "step"
	EventEmission = "emission"
	EventAligned  = "aligned"
	EventError    = "error"
)

// Stages at which a scenario can record an error.
const (
	StageStreams = "streams"
	StageReplay  = "replay"
	StageStep    = "step"
	StageResume  = "resume"
	StageAlign   = "align"
)

// TraceEvent is one entry in a scenario trace. Which fields are meaningful
// depends on Type; see toCanonical.
type TraceEvent struct {
	Type    string       `json:"type"`
	Seq     int64        `json:"seq"`
	Step    int          `json:"step,omitempty"`
	Target  float64      `json:"target,omitempty"`
	Emitted int          `json:"emitted,omitempty"`
	Stream  ir.StreamID  `json:"stream,omitempty"`
	Index   int          `json:"index,omitempty"`
	T       float64      `json:"t,omitempty"`
	V       ir.Value     `json:"v,omitempty"`
	Stage   string       `json:"stage,omitempty"`
	Code    ir.ErrorCode `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Label renders an emission as "stream[index]".
func (e TraceEvent) Label() string {
	return fmt.Sprintf("%s[%d]", e.Stream, e.Index)
}

// toCanonical returns the event as a map for ir.MarshalCanonical. Messages
// are left out so golden files do not churn when wording changes.
func (e TraceEvent) toCanonical() map[string]any {
	m := map[string]any{
		"type": e.Type,
		"seq":  e.Seq,
	}
	switch e.Type {
	case EventStep:
		m["step"] = e.Step
		m["target"] = e.Target
		m["emitted"] = e.Emitted
	case EventEmission:
		m["step"] = e.Step
		m["stream"] = e.Stream
		m["index"] = e.Index
		m["t"] = e.T
		m["v"] = e.V
	case EventAligned:
		m["index"] = e.Index
		m["t"] = e.T
		m["v"] = e.V
	case EventError:
		m["step"] = e.Step
		m["stage"] = e.Stage
		m["code"] = string(e.Code)
	}
	return m
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held and no unexpected error occurred.
	Pass bool `json:"pass"`

	// Trace lists steps, emissions, alignment output and errors in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages; empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Drained reports the replayer state after the last step. It is false
	// when the scenario has no steps.
	Drained bool `json:"drained"`

	// Aligned is the alignment output, nil if none was configured or it failed.
	Aligned *ir.Series `json:"-"`

	seq int64
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Emissions returns the emission events in trace order.
func (r *Result) Emissions() []TraceEvent {
	return r.eventsOf(EventEmission)
}

// Failures returns the error events in trace order.
func (r *Result) Failures() []TraceEvent {
	return r.eventsOf(EventError)
}

func (r *Result) eventsOf(typ string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (r *Result) add(e TraceEvent) {
	r.seq++
	e.Seq = r.seq
	r.Trace = append(r.Trace, e)
}

func (r *Result) addStep(step int, target float64, emitted int) {
	r.add(TraceEvent{Type: EventStep, Step: step, Target: target, Emitted: emitted})
}

func (r *Result) addEmission(step int, stream ir.StreamID, index int, s ir.Sample) {
	r.add(TraceEvent{Type: EventEmission, Step: step, Stream: stream, Index: index, T: s.T, V: s.V})
}

func (r *Result) addAligned(index int, s ir.Sample) {
	r.add(TraceEvent{Type: EventAligned, Index: index, T: s.T, V: s.V})
}

func (r *Result) addFailure(stage string, step int, err error) {
	r.add(TraceEvent{
		Type:    EventError,
		Step:    step,
		Stage:   stage,
		Code:    ir.CodeOf(err),
		Message: err.Error(),
	})
}
