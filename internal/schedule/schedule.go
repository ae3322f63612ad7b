// Package schedule describes a run as an ordered list of control
// intervals, each pairing an opaque control with a partition of the
// interval's duration into nominal steps.
package schedule

import (
	"fmt"
	"math"

	"github.com/san-kum/dynstep/internal/stepper"
)

// sumTol is the relative tolerance for checking that declared step
// lengths partition an interval's total duration.
const sumTol = 1e-9

// Interval is one control interval: a control applied over an ordered
// sequence of nominal step lengths, plus any stop conditions attached to
// the control.
type Interval struct {
	Steps   []float64
	Control stepper.Control
	Stops   []stepper.StopCondition

	// Total, when nonzero, is the externally declared interval duration
	// and must match the sum of Steps.
	Total float64
}

// Duration returns the sum of the interval's step lengths.
func (iv Interval) Duration() float64 {
	d := 0.0
	for _, s := range iv.Steps {
		d += s
	}
	return d
}

// Uniform builds an interval of the given total duration split into n
// equal nominal steps.
func Uniform(total float64, n int, ctrl stepper.Control, stops ...stepper.StopCondition) Interval {
	steps := make([]float64, n)
	for i := range steps {
		steps[i] = total / float64(n)
	}
	return Interval{Steps: steps, Control: ctrl, Stops: stops, Total: total}
}

// Schedule is an immutable ordered sequence of control intervals. The
// driver owns it for the lifetime of a run.
type Schedule struct {
	Intervals []Interval
}

func New(intervals ...Interval) Schedule {
	return Schedule{Intervals: intervals}
}

// Duration returns the total simulated time the schedule covers.
func (s Schedule) Duration() float64 {
	d := 0.0
	for _, iv := range s.Intervals {
		d += iv.Duration()
	}
	return d
}

// Validate fast-fails on malformed schedules before any stepping starts.
func (s Schedule) Validate() error {
	if len(s.Intervals) == 0 {
		return &stepper.ConfigError{Field: "schedule", Reason: "no control intervals"}
	}
	for i, iv := range s.Intervals {
		if len(iv.Steps) == 0 {
			return &stepper.ConfigError{
				Field:  fmt.Sprintf("schedule.intervals[%d].steps", i),
				Reason: "no step lengths",
			}
		}
		for j, dt := range iv.Steps {
			if dt <= 0 {
				return &stepper.ConfigError{
					Field:  fmt.Sprintf("schedule.intervals[%d].steps[%d]", i, j),
					Reason: fmt.Sprintf("step length must be positive, got %g", dt),
				}
			}
		}
		if iv.Total > 0 {
			sum := iv.Duration()
			if math.Abs(sum-iv.Total) > sumTol*math.Max(1, iv.Total) {
				return &stepper.ConfigError{
					Field:  fmt.Sprintf("schedule.intervals[%d].total", i),
					Reason: fmt.Sprintf("step lengths sum to %g, declared total is %g", sum, iv.Total),
				}
			}
		}
	}
	return nil
}

// FromPairs builds a schedule from externally supplied (stepLengths,
// controlIndex) pairs and a control lookup table.
func FromPairs(stepLengths [][]float64, controlIndex []int, controls map[int]stepper.Control) (Schedule, error) {
	if len(stepLengths) != len(controlIndex) {
		return Schedule{}, &stepper.ConfigError{
			Field:  "schedule.controlIndex",
			Reason: fmt.Sprintf("%d step groups but %d control indices", len(stepLengths), len(controlIndex)),
		}
	}
	intervals := make([]Interval, 0, len(stepLengths))
	for i, steps := range stepLengths {
		ctrl, ok := controls[controlIndex[i]]
		if !ok {
			return Schedule{}, &stepper.ConfigError{
				Field:  fmt.Sprintf("schedule.controlIndex[%d]", i),
				Reason: fmt.Sprintf("no control registered for index %d", controlIndex[i]),
			}
		}
		intervals = append(intervals, Interval{Steps: steps, Control: ctrl})
	}
	sched := New(intervals...)
	return sched, sched.Validate()
}
