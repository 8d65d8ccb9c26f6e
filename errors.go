package letsched

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTask       = errors.New("invalid task")
	ErrInvalidTopology   = errors.New("invalid topology")
	ErrInvalidDependency = errors.New("invalid dependency")
	ErrUnschedulable     = errors.New("unschedulable")
	ErrUnknownGoal       = errors.New("unknown optimisation goal")
	ErrUnknownHeuristic  = errors.New("unknown heuristic")
)

// ValidationError describes a rejected input document. Kind is one of the
// ErrInvalid* sentinels so callers can match with errors.Is.
type ValidationError struct {
	Kind error
	Msg  string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Kind == nil {
		return e.Msg
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func invalidf(kind error, format string, args ...any) error {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
