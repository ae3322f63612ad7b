// Package timestep provides step-length selection strategies for the
// simulation driver. A selector proposes the next step length; cutting a
// failed step is owned by the driver so both strategies share one retry
// policy.
package timestep

import "github.com/san-kum/dynstep/internal/stepper"

// Selector proposes the length of the next step attempt.
type Selector interface {
	// Propose returns the next step length given the schedule-declared
	// nominal length and the time remaining in the current nominal step.
	// The result must not exceed remaining.
	Propose(nominal, remaining float64) float64

	// Observe is called after each accepted step so adaptive strategies
	// can react to how much the state changed.
	Observe(prev, next stepper.State, dt float64)

	// Reset clears adaptation history at a control interval boundary.
	Reset()
}
