// Package session loads replay and alignment sessions from CUE files.
//
// A session names the stored series to replay, how to pace the replay, how
// to align against a reference stream, and who subscribes to the output.
// Files are unified with an embedded schema, so defaults are filled in and
// type errors are reported with file positions.
package session

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sensorsync/internal/align"
	"github.com/roach88/sensorsync/internal/engine"
	"github.com/roach88/sensorsync/internal/interp"
	"github.com/roach88/sensorsync/internal/ir"
)

//go:embed schema.cue
var schemaSource []byte

const schemaFilename = "schema.cue"

// Error codes carried by LoadError.
const (
	ErrCodeRead      = "E005" // file missing or unreadable
	ErrCodeSyntax    = "E004" // CUE did not compile
	ErrCodeSchema    = "E006" // value does not satisfy the schema
	ErrCodeReference = "E201" // duplicate or unknown stream id
	ErrCodeRange     = "E202" // end before start
)

// LoadError describes why a session file was rejected.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Stream maps a replay stream id to a stored series.
type Stream struct {
	ID     ir.StreamID
	Series string
}

// Session is a validated session with defaults applied.
type Session struct {
	Name          string
	Streams       []Stream
	Reference     ir.StreamID // empty when no alignment is configured
	Policy        interp.Policy
	Step          float64
	Speed         float64
	Start         *float64
	End           *float64
	MaxGap        float64
	Subscriptions []engine.SubscriptionConfig
}

// raw mirrors #Session for decoding.
type raw struct {
	Name      string `json:"name"`
	RawStream []struct {
		ID     string `json:"id"`
		Series string `json:"series"`
	} `json:"streams"`
	Reference     string   `json:"reference"`
	Policy        string   `json:"policy"`
	Step          float64  `json:"step"`
	Speed         float64  `json:"speed"`
	Start         *float64 `json:"start"`
	End           *float64 `json:"end"`
	MaxGap        float64  `json:"max_gap"`
	Subscriptions []struct {
		Name     string   `json:"name"`
		Streams  []string `json:"streams"`
		Delivery string   `json:"delivery"`
		Depth    int      `json:"depth"`
	} `json:"subscriptions"`
}

// Load reads and validates the session file at path. A session without a
// name is named after the file.
func Load(path string) (*Session, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: fmt.Sprintf("reading session: %v", err)}
	}
	s, err := Parse(path, src)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse validates CUE source. filename is used only in error positions.
func Parse(filename string, src []byte) (*Session, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename(schemaFilename))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a build defect.
		panic(fmt.Sprintf("session schema: %v", err))
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(ErrCodeSyntax, err, nil)
	}

	unified := schema.LookupPath(cue.ParsePath("#Session")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err, &v)
	}

	var r raw
	if err := unified.Decode(&r); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err, &v)
	}
	return r.session()
}

func (r *raw) session() (*Session, error) {
	policy, err := interp.ParsePolicy(r.Policy)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}
	s := &Session{
		Name:      r.Name,
		Reference: ir.StreamID(r.Reference),
		Policy:    policy,
		Step:      r.Step,
		Speed:     r.Speed,
		Start:     r.Start,
		End:       r.End,
		MaxGap:    r.MaxGap,
	}

	known := make(map[ir.StreamID]bool, len(r.RawStream))
	for _, st := range r.RawStream {
		id := ir.StreamID(st.ID)
		if known[id] {
			return nil, &LoadError{Code: ErrCodeReference, Message: fmt.Sprintf("stream %q listed twice", id)}
		}
		known[id] = true
		s.Streams = append(s.Streams, Stream{ID: id, Series: st.Series})
	}
	if s.Reference != "" && !known[s.Reference] {
		return nil, &LoadError{Code: ErrCodeReference, Message: fmt.Sprintf("reference %q is not a session stream", s.Reference)}
	}
	if s.Start != nil && s.End != nil && *s.End < *s.Start {
		return nil, &LoadError{Code: ErrCodeRange, Message: fmt.Sprintf("end %g is before start %g", *s.End, *s.Start)}
	}

	names := make(map[string]bool, len(r.Subscriptions))
	for _, sub := range r.Subscriptions {
		if names[sub.Name] {
			return nil, &LoadError{Code: ErrCodeReference, Message: fmt.Sprintf("subscription %q listed twice", sub.Name)}
		}
		names[sub.Name] = true

		delivery, err := engine.ParseDelivery(sub.Delivery)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
		}
		cfg := engine.SubscriptionConfig{Name: sub.Name, Delivery: delivery, Depth: sub.Depth}
		for _, id := range sub.Streams {
			if !known[ir.StreamID(id)] {
				return nil, &LoadError{Code: ErrCodeReference,
					Message: fmt.Sprintf("subscription %q: unknown stream %q", sub.Name, id)}
			}
			cfg.Streams = append(cfg.Streams, ir.StreamID(id))
		}
		s.Subscriptions = append(s.Subscriptions, cfg)
	}
	return s, nil
}

// PlayerOptions returns the Player configuration described by the session.
func (s *Session) PlayerOptions() []engine.PlayerOption {
	opts := []engine.PlayerOption{engine.WithStep(s.Step), engine.WithSpeed(s.Speed)}
	if s.Start != nil {
		opts = append(opts, engine.WithStart(*s.Start))
	}
	if s.End != nil {
		opts = append(opts, engine.WithEnd(*s.End))
	}
	return opts
}

// AlignerOptions returns the Aligner configuration described by the session.
func (s *Session) AlignerOptions() []align.Option {
	return []align.Option{align.WithPolicy(s.Policy), align.WithMaxGap(s.MaxGap)}
}

// cueLoadError converts a CUE error to a LoadError.
//
// The message is the first error's. The position is the first one in the
// session file found across all errors and their input positions; some
// schema errors (empty disjunctions) carry none, so the error path is then
// looked up in src, the session as written. A schema position is the last
// resort.
func cueLoadError(code string, err error, src *cue.Value) *LoadError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	le := &LoadError{Code: code, Message: errs[0].Error()}

	var fallback token.Pos
	for _, e := range errs {
		for _, pos := range append(errors.Positions(e), e.Position()) {
			if !pos.IsValid() {
				continue
			}
			if pos.Filename() != schemaFilename {
				le.Pos = pos
				return le
			}
			if !fallback.IsValid() {
				fallback = pos
			}
		}
	}
	if src != nil {
		for _, e := range errs {
			if pos := positionOf(*src, e.Path()); pos.IsValid() {
				le.Pos = pos
				return le
			}
		}
	}
	le.Pos = fallback
	return le
}

// positionOf returns the source position of the deepest field along path
// that exists in v. Definition selectors such as #Session are skipped.
func positionOf(v cue.Value, path []string) token.Pos {
	var sels []cue.Selector
	for _, elem := range path {
		if strings.HasPrefix(elem, "#") {
			continue
		}
		if n, err := strconv.Atoi(elem); err == nil {
			sels = append(sels, cue.Index(n))
		} else {
			sels = append(sels, cue.Str(elem))
		}
	}
	for len(sels) > 0 {
		if f := v.LookupPath(cue.MakePath(sels...)); f.Exists() {
			if pos := f.Pos(); pos.IsValid() {
				return pos
			}
		}
		sels = sels[:len(sels)-1]
	}
	return token.NoPos
}
