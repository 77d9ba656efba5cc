package interp

import "fmt"

// Policy selects how queries outside a series' recorded range are answered.
type Policy int

const (
	// ExtrapolateLinear extends the line through the two boundary samples.
	ExtrapolateLinear Policy = iota

	// Clamp returns the nearest endpoint's value.
	Clamp
)

// String returns the policy name as used in flags and session files.
func (p Policy) String() string {
	switch p {
	case Clamp:
		return "clamp"
	case ExtrapolateLinear:
		return "extrapolate_linear"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name. The empty string selects ExtrapolateLinear.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "extrapolate_linear":
		return ExtrapolateLinear, nil
	case "clamp":
		return Clamp, nil
	default:
		return 0, fmt.Errorf("unknown boundary policy %q (want clamp or extrapolate_linear)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	switch p {
	case Clamp, ExtrapolateLinear:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("invalid policy %d", int(p))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
