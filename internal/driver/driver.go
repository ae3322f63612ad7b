// Package driver advances a model through a schedule of control
// intervals, cutting and retrying failed steps and terminating early on
// stop conditions. The stepping loop is strictly sequential; the driver
// owns the single current-state cursor and needs no locks.
package driver

import (
	"context"

	"github.com/san-kum/dynstep/internal/schedule"
	"github.com/san-kum/dynstep/internal/solver"
	"github.com/san-kum/dynstep/internal/stepper"
	"github.com/san-kum/dynstep/internal/timestep"
)

// stepEps is the relative slack below which a nominal step counts as
// fully consumed.
const stepEps = 1e-12

// Config is the immutable per-run configuration. Construct a new value
// to change anything between runs.
type Config struct {
	MaxIterations      int
	NonlinearTolerance float64
	DivergenceFactor   float64
	ErrorOnFailure     bool
	MinStep            float64
	OutputMinisteps    bool

	// Selector picks the next step length. Nil means Fixed.
	Selector timestep.Selector
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:      solver.DefaultMaxIterations,
		NonlinearTolerance: solver.DefaultTolerance,
		DivergenceFactor:   solver.DefaultDivergenceFactor,
		ErrorOnFailure:     true,
		MinStep:            1e-6,
		OutputMinisteps:    false,
	}
}

// Result is the accepted-state sequence plus the run report.
type Result struct {
	Initial stepper.State
	States  []stepper.State
	Times   []float64
	Report  stepper.Report
}

// Observer is notified after every accepted step.
type Observer interface {
	OnStep(state stepper.State, rec stepper.StepRecord)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(state stepper.State, rec stepper.StepRecord)

func (f ObserverFunc) OnStep(state stepper.State, rec stepper.StepRecord) { f(state, rec) }

type Driver struct {
	model     stepper.Model
	sched     schedule.Schedule
	cfg       Config
	observers []Observer
}

// New validates the configuration and schedule up front; the stepping
// loop never starts on malformed input.
func New(model stepper.Model, sched schedule.Schedule, cfg Config) (*Driver, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	return &Driver{model: model, sched: sched, cfg: cfg}, nil
}

func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

func validateConfig(cfg Config) error {
	if cfg.MaxIterations < 1 {
		return &stepper.ConfigError{Field: "maxIterations", Reason: "must be at least 1"}
	}
	if cfg.NonlinearTolerance <= 0 {
		return &stepper.ConfigError{Field: "nonlinearTolerance", Reason: "must be positive"}
	}
	if cfg.MinStep <= 0 {
		return &stepper.ConfigError{Field: "minStep", Reason: "must be positive"}
	}
	if cfg.DivergenceFactor <= 1 {
		return &stepper.ConfigError{Field: "divergenceFactor", Reason: "must exceed 1"}
	}
	return nil
}

// Run executes the schedule. Cancellation is honored at step boundaries:
// the accumulated result is returned alongside ctx.Err() with status
// Canceled. Step failures are captured in the report; only exhausted
// retries with ErrorOnFailure set, and model evaluation errors, surface
// as hard errors.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	newton := &solver.Newton{
		MaxIterations:    d.cfg.MaxIterations,
		Tolerance:        d.cfg.NonlinearTolerance,
		DivergenceFactor: d.cfg.DivergenceFactor,
	}
	sel := d.cfg.Selector
	if sel == nil {
		sel = timestep.NewFixed()
	}

	prev := d.model.InitialState()
	result := &Result{Initial: prev}
	t := prev.Time()

	for ii, iv := range d.sched.Intervals {
		sel.Reset()
		for _, nominal := range iv.Steps {
			remaining := nominal
			retries := 0
			cut := 1.0

			for remaining > stepEps*nominal {
				select {
				case <-ctx.Done():
					result.Report.Status = stepper.Canceled
					return result, ctx.Err()
				default:
				}

				dt := sel.Propose(nominal, remaining) * cut
				if dt > remaining {
					dt = remaining
				}

				state, conv, err := newton.Solve(d.model, prev, iv.Control, dt)
				if err != nil {
					result.Report.Status = stepper.Aborted
					return result, &stepper.StepError{Interval: ii, Time: t, Dt: dt, Wrapped: err}
				}

				if !conv.Converged() {
					if dt/2 < d.cfg.MinStep {
						result.Report.Observe(stepper.StepRecord{
							Interval: ii, Time: t + dt, Dt: dt,
							Retries: retries, Accepted: false, Convergence: conv,
						})
						if d.cfg.ErrorOnFailure {
							result.Report.Status = stepper.Aborted
							return result, &stepper.StepError{Interval: ii, Time: t, Dt: dt, Wrapped: stepper.ErrStepTooSmall}
						}
						result.Report.Status = stepper.FailedButReported
						return result, nil
					}
					cut /= 2
					retries++
					continue
				}

				t += dt
				remaining -= dt
				mini := remaining > stepEps*nominal
				rec := stepper.StepRecord{
					Interval: ii, Time: t, Dt: dt,
					Retries: retries, Ministep: mini, Accepted: true, Convergence: conv,
				}
				result.Report.Observe(rec)
				sel.Observe(prev, state, dt)
				for _, o := range d.observers {
					o.OnStep(state, rec)
				}

				stopped := false
				for _, cond := range iv.Stops {
					if cond(d.model, state, prev) {
						stopped = true
						break
					}
				}

				if d.cfg.OutputMinisteps || !mini || stopped {
					result.States = append(result.States, state)
					result.Times = append(result.Times, t)
				}

				prev = state
				retries = 0
				cut = 1.0

				if stopped {
					result.Report.Status = stepper.StoppedByCondition
					return result, nil
				}
			}
		}
	}

	result.Report.Status = stepper.Completed
	return result, nil
}
