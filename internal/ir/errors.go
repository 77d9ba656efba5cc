package ir

import (
	"errors"
	"fmt"
)

// Error is a precondition violation detected at an API boundary.
//
// Errors are never transient: the caller supplied invalid data or drove a
// component out of sequence. They are returned immediately and are not
// retried by any layer of sensorsync.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Stream identifies the affected stream, if any.
	Stream StreamID

	// Index is the offending sample index, or -1 when not applicable.
	Index int
}

// ErrorCode categorizes sensorsync errors.
type ErrorCode string

const (
	// ErrCodeInvalidSeries indicates an empty, non-finite or non-monotonic series.
	ErrCodeInvalidSeries ErrorCode = "INVALID_SERIES"

	// ErrCodeDuplicateStream indicates a stream id was registered twice.
	ErrCodeDuplicateStream ErrorCode = "DUPLICATE_STREAM"

	// ErrCodeNonMonotonicAdvance indicates a target time below one already observed.
	ErrCodeNonMonotonicAdvance ErrorCode = "NON_MONOTONIC_ADVANCE"

	// ErrCodeInvalidCheckpoint indicates a checkpoint that does not fit the replayer.
	ErrCodeInvalidCheckpoint ErrorCode = "INVALID_CHECKPOINT"

	// ErrCodeOutOfRange indicates an alignment query beyond the allowed gap.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Stream != "" && e.Index >= 0:
		return fmt.Sprintf("%s: %s (stream=%s, index=%d)", e.Code, e.Message, e.Stream, e.Index)
	case e.Stream != "":
		return fmt.Sprintf("%s: %s (stream=%s)", e.Code, e.Message, e.Stream)
	case e.Index >= 0:
		return fmt.Sprintf("%s: %s (index=%d)", e.Code, e.Message, e.Index)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidSeriesError creates an Error for a rejected series.
// Pass index -1 when the problem is not tied to one sample.
func NewInvalidSeriesError(stream StreamID, index int, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidSeries,
		Message: fmt.Sprintf(format, args...),
		Stream:  stream,
		Index:   index,
	}
}

// NewDuplicateStreamError creates an Error for a repeated stream registration.
func NewDuplicateStreamError(stream StreamID) *Error {
	return &Error{
		Code:    ErrCodeDuplicateStream,
		Message: "stream id registered more than once",
		Stream:  stream,
		Index:   -1,
	}
}

// NewNonMonotonicAdvanceError creates an Error for a backwards clock target.
func NewNonMonotonicAdvanceError(stream StreamID, target, seen float64) *Error {
	return &Error{
		Code:    ErrCodeNonMonotonicAdvance,
		Message: fmt.Sprintf("target %g is before previously observed %g", target, seen),
		Stream:  stream,
		Index:   -1,
	}
}

// NewInvalidCheckpointError creates an Error for a checkpoint that cannot be restored.
func NewInvalidCheckpointError(stream StreamID, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidCheckpoint,
		Message: fmt.Sprintf(format, args...),
		Stream:  stream,
		Index:   -1,
	}
}

// NewOutOfRangeError creates an Error for a query too far outside a series.
func NewOutOfRangeError(stream StreamID, index int, query, lo, hi, maxGap float64) *Error {
	return &Error{
		Code:    ErrCodeOutOfRange,
		Message: fmt.Sprintf("query %g is more than %g outside [%g, %g]", query, maxGap, lo, hi),
		Stream:  stream,
		Index:   index,
	}
}

// IsInvalidSeries reports whether err is an INVALID_SERIES error.
// Uses errors.As to handle wrapped errors.
func IsInvalidSeries(err error) bool {
	return hasCode(err, ErrCodeInvalidSeries)
}

// IsDuplicateStream reports whether err is a DUPLICATE_STREAM error.
func IsDuplicateStream(err error) bool {
	return hasCode(err, ErrCodeDuplicateStream)
}

// IsNonMonotonicAdvance reports whether err is a NON_MONOTONIC_ADVANCE error.
func IsNonMonotonicAdvance(err error) bool {
	return hasCode(err, ErrCodeNonMonotonicAdvance)
}

// IsInvalidCheckpoint reports whether err is an INVALID_CHECKPOINT error.
func IsInvalidCheckpoint(err error) bool {
	return hasCode(err, ErrCodeInvalidCheckpoint)
}

// IsOutOfRange reports whether err is an OUT_OF_RANGE error.
func IsOutOfRange(err error) bool {
	return hasCode(err, ErrCodeOutOfRange)
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
