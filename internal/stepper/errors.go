package stepper

import (
	"errors"
	"fmt"
)

// Domain errors for stepping operations.
var (
	// ErrStepTooSmall indicates step cutting reached the minimum step size
	// without convergence.
	ErrStepTooSmall = errors.New("stepper: step size below minimum after cutting")

	// ErrModelFailure indicates the model could not assemble or solve the
	// residual system for reasons other than non-convergence.
	ErrModelFailure = errors.New("stepper: model evaluation failed")

	// ErrUnknownQuantity indicates a tracked or stop-condition quantity is
	// not exposed by the model's states.
	ErrUnknownQuantity = errors.New("stepper: unknown state quantity")
)

// ConfigError is a fast-fail validation error naming the offending field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("stepper: invalid config %s: %s", e.Field, e.Reason)
}

// StepError wraps an error with the step context it occurred in.
type StepError struct {
	Interval int
	Time     float64
	Dt       float64
	Wrapped  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("interval %d (t=%.4f, dt=%.4g): %v", e.Interval, e.Time, e.Dt, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
