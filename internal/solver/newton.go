package solver

import (
	"fmt"
	"math"

	"github.com/san-kum/dynstep/internal/stepper"
)

const (
	DefaultMaxIterations    = 25
	DefaultTolerance        = 1e-8
	DefaultDivergenceFactor = 10.0
)

// Newton drives one step attempt to convergence or failure. It never
// returns an error for non-convergence; the verdict in the report tells
// the driver what happened and the driver decides between step cutting
// and aborting.
type Newton struct {
	MaxIterations    int
	Tolerance        float64
	DivergenceFactor float64
}

func NewNewton(maxIterations int, tolerance float64) *Newton {
	return &Newton{
		MaxIterations:    maxIterations,
		Tolerance:        tolerance,
		DivergenceFactor: DefaultDivergenceFactor,
	}
}

// Solve advances prev by dt under ctrl. On a Converged verdict the
// returned state is the materialized new state; otherwise it is nil and
// the report carries the failure verdict. A non-nil error means the model
// itself failed to assemble the system, which is not a convergence issue.
func (n *Newton) Solve(m stepper.Model, prev stepper.State, ctrl stepper.Control, dt float64) (stepper.State, *stepper.ConvergenceReport, error) {
	sys, err := m.ApplyControl(prev, ctrl, dt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", stepper.ErrModelFailure, err)
	}

	report := &stepper.ConvergenceReport{Verdict: stepper.MaxIterationsExceeded}
	it := sys.InitialIterate()
	last := math.Inf(1)

	for i := 0; i < n.MaxIterations; i++ {
		next, norms, err := sys.SolveLinearStep(it)
		if err != nil {
			// Linear solve breakdown (e.g. singular Jacobian) is treated
			// as divergence so the driver can cut the step and retry.
			report.Verdict = stepper.Diverged
			return nil, report, nil
		}

		it = next
		report.Norms = append(report.Norms, norms)
		report.Iterations = i + 1

		if !norms.IsFinite() {
			report.Verdict = stepper.Diverged
			return nil, report, nil
		}

		cur := norms.Max()
		if cur <= n.Tolerance {
			report.Verdict = stepper.Converged
			return m.UpdateState(it), report, nil
		}
		if cur > last*n.DivergenceFactor {
			report.Verdict = stepper.Diverged
			return nil, report, nil
		}
		last = cur
	}

	return nil, report, nil
}
