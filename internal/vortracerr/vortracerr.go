// Package vortracerr implements the closed set of error kinds described in
// spec.md §7. Kinds that affect only a ring or a level never leave the
// package that produced them (they are recorded as sentinel.Missing
// fields); kinds that affect a whole volume are returned up through the
// pipeline and inspected by the controller with errors.As.
package vortracerr

import "fmt"

// Kind is a closed, exhaustive error classification.
type Kind int

const (
	// ConfigError is a missing or malformed configuration field; fatal
	// at run start.
	ConfigError Kind = iota
	// TimeOutOfRange means the volume time fell outside the 6h-forward,
	// 0s-backward acceptance window.
	TimeOutOfRange
	// BeyondRadar means the center is farther than any sweep's
	// unambiguous range plus buffer.
	BeyondRadar
	// DistanceWarning names the 75-150km drift band between Preprocess's
	// extrapolated center and the configured-position track; the volume
	// is not rejected, and Preprocess reports this band through
	// Guess.Warning rather than returning this kind.
	DistanceWarning
	// DistanceError means Preprocess's extrapolated center is more than
	// 500km from the radar, or more than 150km from the configured-
	// position track. No stage compares the simplex result against the
	// extrapolated estimate.
	DistanceError
	// NoConvergence means zero rings converged across all levels.
	NoConvergence
	// IllConditioned means an LLS normal-equations matrix was singular.
	IllConditioned
	// InsufficientData means fewer samples than required were available
	// for a fit.
	InsufficientData
	// Aborted means a cooperative cancellation was observed at a
	// suspension point.
	Aborted
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case TimeOutOfRange:
		return "TimeOutOfRange"
	case BeyondRadar:
		return "BeyondRadar"
	case DistanceWarning:
		return "DistanceWarning"
	case DistanceError:
		return "DistanceError"
	case NoConvergence:
		return "NoConvergence"
	case IllConditioned:
		return "IllConditioned"
	case InsufficientData:
		return "InsufficientData"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried by the pipeline. It wraps an
// optional cause so callers can still use errors.Is/errors.As against the
// underlying error returned by e.g. the LLS solver.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, vortracerr.New(kind, "")) style comparisons
// by kind alone, ignoring Message and Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return false
	}
	return e.Kind == kind
}

// VolumeFatal reports whether kind skips the append step for the whole
// volume (TimeOutOfRange, BeyondRadar, Aborted, NoConvergence per §7).
func (k Kind) VolumeFatal() bool {
	switch k {
	case TimeOutOfRange, BeyondRadar, Aborted, NoConvergence:
		return true
	default:
		return false
	}
}
