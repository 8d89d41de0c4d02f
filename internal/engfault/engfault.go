// Package engfault reports internal invariant violations: conditions the
// engine's own invariants guarantee cannot happen (a flow with no
// overlapping accepted aggregate, a missing cache on a non-leaf
// aggregate). The source handled these with a spin loop; this package
// turns them into a diagnosed, immediate abort instead.
package engfault

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrInvariant is the sentinel wrapped by every error this package
// produces, so callers can recognize an internal invariant violation with
// errors.Is regardless of which invariant failed.
var ErrInvariant = errors.Error("internal invariant violation")

// Violation describes a broken invariant: what was expected and the
// concrete state that disproved it.
type Violation struct {
	// Component names the subsystem that detected the violation, e.g.
	// "pass2/overlap".
	Component string

	// Detail is a short, specific description of what was found instead
	// of what was expected.
	Detail string
}

// Error implements the error interface.
func (v *Violation) Error() (msg string) {
	return fmt.Sprintf("%s: %s: %v", v.Component, v.Detail, ErrInvariant)
}

// Unwrap lets errors.Is(err, ErrInvariant) succeed for a *Violation.
func (v *Violation) Unwrap() (err error) {
	return ErrInvariant
}

// Raise panics with a *Violation. The engine is single-threaded and has no
// supervisor to hand a returned error to mid-traversal, so an invariant
// violation can only be surfaced by unwinding the current run; callers at
// the command layer recover it and exit with a diagnostic.
func Raise(component, detail string) {
	panic(&Violation{Component: component, Detail: detail})
}
