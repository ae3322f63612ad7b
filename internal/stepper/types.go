package stepper

import "math"

// Control is an opaque model-specific operating instruction, applied over
// one control interval (e.g. a fixed discharge current).
type Control any

// Iterate is the solver-facing working representation of a candidate state
// during Newton iteration. Its concrete type is owned by the model.
type Iterate any

// State is an accepted snapshot of a model at a point in time. Concrete
// representations are model-specific; the driver and the step selectors
// only see the time stamp and named scalar quantities.
type State interface {
	Time() float64
	Quantity(name string) (float64, bool)
}

// Model is the contract a physical model must satisfy to be advanced by
// the driver. Implementations must be deterministic given their
// construction parameters and must not retain mutable references to
// states they have returned.
type Model interface {
	// InitialState builds the state at t=0.
	InitialState() State

	// ApplyControl produces the discretized residual/Jacobian system for
	// advancing prev by dt under ctrl.
	ApplyControl(prev State, ctrl Control, dt float64) (System, error)

	// UpdateState materializes a converged iterate into a new State.
	UpdateState(it Iterate) State
}

// System is the residual/Jacobian system for one step attempt.
type System interface {
	// InitialIterate returns the starting iterate, typically seeded from
	// the step's start state.
	InitialIterate() Iterate

	// SolveLinearStep performs one Newton linearization and linear solve,
	// returning the updated iterate and the residual norms evaluated at
	// the updated iterate, one entry per equation group.
	SolveLinearStep(it Iterate) (Iterate, Norms, error)
}

// Norms holds residual norms, one per equation group.
type Norms []float64

// Max returns the largest norm, or 0 for an empty slice.
func (n Norms) Max() float64 {
	m := 0.0
	for _, v := range n {
		if v > m {
			m = v
		}
	}
	return m
}

// IsFinite reports whether every norm is a finite number.
func (n Norms) IsFinite() bool {
	for _, v := range n {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// StopCondition ends a schedule early when it returns true for an
// accepted step. Firing a stop condition is an intentional termination,
// not a failure.
type StopCondition func(m Model, next, prev State) bool
