package transition

import (
	"errors"
	"fmt"
	"strings"
)

// DefinitionProblem classifies a GraphDefinitionError.
type DefinitionProblem int

const (
	// DanglingDependency: a transition depends on a slot nobody produces.
	DanglingDependency DefinitionProblem = iota
	// DuplicateProducer: two transitions produce the same slot.
	DuplicateProducer
	// Cycle: slots depend on each other.
	Cycle
	// UnknownTarget: Init was asked for a slot nobody produces.
	UnknownTarget
)

func (p DefinitionProblem) String() string {
	switch p {
	case DanglingDependency:
		return "dangling dependency"
	case DuplicateProducer:
		return "duplicate producer"
	case Cycle:
		return "dependency cycle"
	case UnknownTarget:
		return "unknown target"
	default:
		return "unknown problem"
	}
}

// GraphDefinitionError reports a graph that cannot be built. It is returned
// before any production or teardown function runs.
type GraphDefinitionError struct {
	Problem DefinitionProblem
	IDs     []ID
	Detail  string
}

func (e *GraphDefinitionError) Error() string {
	names := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		names[i] = id.String()
	}
	sep := ", "
	if e.Problem == Cycle {
		sep = " -> "
	}
	msg := fmt.Sprintf("invalid transition graph: %s: %s", e.Problem, strings.Join(names, sep))
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// StateConstructionError reports the slot whose production failed. Rollback
// holds teardown failures from the rollback sweep, if any; they never
// replace Err.
type StateConstructionError struct {
	ID       ID
	Err      error
	Rollback error
}

func (e *StateConstructionError) Error() string {
	msg := fmt.Sprintf("failed to build state %s: %v", e.ID, e.Err)
	if e.Rollback != nil {
		msg += fmt.Sprintf(" (rollback: %v)", e.Rollback)
	}
	return msg
}

// Unwrap exposes the cause first, then any rollback failure.
func (e *StateConstructionError) Unwrap() []error {
	if e.Rollback == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Rollback}
}

// TeardownFailure is one failed teardown.
type TeardownFailure struct {
	ID  ID
	Err error
}

// TeardownError aggregates every teardown that failed during one sweep, in
// the order they ran.
type TeardownError struct {
	Failures []TeardownFailure
}

func (e *TeardownError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("failed to tear down state %s: %v", f.ID, f.Err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "failed to tear down %d states:", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.ID, f.Err)
	}
	return b.String()
}

func (e *TeardownError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// IsDefinitionError reports whether err is a GraphDefinitionError.
func IsDefinitionError(err error) bool {
	var gde *GraphDefinitionError
	return errors.As(err, &gde)
}
