package engine

import (
	"errors"
	"fmt"
)

// ErrSubscriptionClosed is returned by Subscription.Next once the
// subscription is closed and fully drained.
var ErrSubscriptionClosed = errors.New("subscription closed")

// SinkError reports a Sink that rejected an emission during Player.Run.
//
// The replay state remains valid: the failed emission and every emission
// before it in the same step have already left the Replayer, so a retry must
// resume from a checkpoint rather than re-step.
type SinkError struct {
	Emission Emission
	Err      error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink rejected %s[%d]@%g: %v",
		e.Emission.Stream, e.Emission.Index, e.Emission.Sample.T, e.Err)
}

// Unwrap returns the sink's error.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// IsSinkError reports whether err is a SinkError.
// Uses errors.As to handle wrapped errors.
func IsSinkError(err error) bool {
	var se *SinkError
	return errors.As(err, &se)
}
