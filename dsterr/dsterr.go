// Package dsterr defines the error kinds raised by the tracking engine.
//
// Callers should use errors.Is against the sentinel Kind values to
// discriminate failure modes rather than matching on error strings.
package dsterr

import (
	"fmt"
)

// Kind identifies the class of failure behind an error returned by the
// engine, matching the taxonomy of dsterr values below.
type Kind int

const (
	// IoFailure means a file could not be opened, read, or written.
	IoFailure Kind = iota
	// FormatInvalid means a serialized buffer failed verification or its
	// dimensions disagree with the invariants of the data model.
	FormatInvalid
	// ShapeDimensionMismatch means landmark counts disagree across inputs,
	// or a transform has the wrong rank.
	ShapeDimensionMismatch
	// EmptyInput means Fit was called with zero samples.
	EmptyInput
	// DetectionMissing means a collaborator failed to produce an initial
	// region of interest.
	DetectionMissing
)

// Error satisfies the error interface so Kind values can be passed directly
// as the target of errors.Is.
func (k Kind) Error() string {
	switch k {
	case IoFailure:
		return "io failure"
	case FormatInvalid:
		return "format invalid"
	case ShapeDimensionMismatch:
		return "shape dimension mismatch"
	case EmptyInput:
		return "empty input"
	case DetectionMissing:
		return "detection missing"
	default:
		return fmt.Sprintf("unknown error kind %d", int(k))
	}
}

// Error wraps an underlying cause with its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same Kind, so callers can write
// errors.Is(err, dsterr.FormatInvalid).
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// New builds an *Error of the given Kind for operation op, wrapping cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}
