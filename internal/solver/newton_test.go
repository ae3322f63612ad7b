package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dynstep/internal/stepper"
)

// rootState advances by taking the square root of its value, which gives
// Newton a genuinely nonlinear scalar system to chew on.
type rootState struct {
	t float64
	v float64
}

func (s *rootState) Time() float64 { return s.t }

func (s *rootState) Quantity(name string) (float64, bool) {
	if name == "value" {
		return s.v, true
	}
	return 0, false
}

type rootModel struct{}

func (m *rootModel) InitialState() stepper.State {
	return &rootState{t: 0, v: 4.0}
}

func (m *rootModel) ApplyControl(prev stepper.State, ctrl stepper.Control, dt float64) (stepper.System, error) {
	p := prev.(*rootState)
	return &rootSystem{target: p.v, t: p.t + dt}, nil
}

func (m *rootModel) UpdateState(it stepper.Iterate) stepper.State {
	return it.(*rootState)
}

// rootSystem solves x^2 - target = 0 for x.
type rootSystem struct {
	target float64
	t      float64
}

func (s *rootSystem) InitialIterate() stepper.Iterate {
	return &rootState{t: s.t, v: s.target}
}

func (s *rootSystem) SolveLinearStep(it stepper.Iterate) (stepper.Iterate, stepper.Norms, error) {
	x := it.(*rootState).v
	x -= (x*x - s.target) / (2 * x)
	res := math.Abs(x*x - s.target)
	return &rootState{t: s.t, v: x}, stepper.Norms{res}, nil
}

type verdictSystem struct {
	norms func(iter int) stepper.Norms
	err   error
	iter  int
}

func (s *verdictSystem) InitialIterate() stepper.Iterate { return 0.0 }

func (s *verdictSystem) SolveLinearStep(it stepper.Iterate) (stepper.Iterate, stepper.Norms, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	s.iter++
	return it, s.norms(s.iter), nil
}

type verdictModel struct {
	sys      *verdictSystem
	applyErr error
}

func (m *verdictModel) InitialState() stepper.State { return &rootState{} }

func (m *verdictModel) ApplyControl(prev stepper.State, ctrl stepper.Control, dt float64) (stepper.System, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	return m.sys, nil
}

func (m *verdictModel) UpdateState(it stepper.Iterate) stepper.State { return &rootState{} }

func TestNewton_Converges(t *testing.T) {
	n := NewNewton(25, 1e-10)
	m := &rootModel{}

	state, report, err := n.Solve(m, m.InitialState(), nil, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Converged() {
		t.Fatalf("verdict = %s, want converged", report.Verdict)
	}
	if state == nil {
		t.Fatal("converged solve returned nil state")
	}

	v, _ := state.Quantity("value")
	if math.Abs(v-2.0) > 1e-8 {
		t.Errorf("value = %f, want 2.0", v)
	}
	if report.Iterations == 0 || len(report.Norms) != report.Iterations {
		t.Errorf("iteration bookkeeping off: %d iterations, %d norm records", report.Iterations, len(report.Norms))
	}
}

func TestNewton_MaxIterations(t *testing.T) {
	n := NewNewton(5, 1e-10)
	m := &verdictModel{sys: &verdictSystem{
		norms: func(int) stepper.Norms { return stepper.Norms{1.0} },
	}}

	state, report, err := n.Solve(m, m.InitialState(), nil, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != nil {
		t.Error("non-converged solve returned a state")
	}
	if report.Verdict != stepper.MaxIterationsExceeded {
		t.Errorf("verdict = %s, want max iterations exceeded", report.Verdict)
	}
	if report.Iterations != 5 {
		t.Errorf("iterations = %d, want 5", report.Iterations)
	}
}

func TestNewton_DivergenceGuard(t *testing.T) {
	n := NewNewton(25, 1e-10)
	m := &verdictModel{sys: &verdictSystem{
		norms: func(iter int) stepper.Norms {
			return stepper.Norms{math.Pow(100, float64(iter))}
		},
	}}

	_, report, err := n.Solve(m, m.InitialState(), nil, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Verdict != stepper.Diverged {
		t.Errorf("verdict = %s, want diverged", report.Verdict)
	}
	if report.Iterations >= 25 {
		t.Error("divergence guard did not trip early")
	}
}

func TestNewton_NonFiniteResidual(t *testing.T) {
	n := NewNewton(25, 1e-10)
	m := &verdictModel{sys: &verdictSystem{
		norms: func(int) stepper.Norms { return stepper.Norms{math.NaN()} },
	}}

	_, report, err := n.Solve(m, m.InitialState(), nil, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Verdict != stepper.Diverged {
		t.Errorf("verdict = %s, want diverged", report.Verdict)
	}
}

func TestNewton_LinearSolveBreakdown(t *testing.T) {
	n := NewNewton(25, 1e-10)
	m := &verdictModel{sys: &verdictSystem{err: errors.New("singular jacobian")}}

	state, report, err := n.Solve(m, m.InitialState(), nil, 1.0)
	if err != nil {
		t.Fatalf("breakdown should not be a hard error, got %v", err)
	}
	if state != nil || report.Verdict != stepper.Diverged {
		t.Errorf("verdict = %s, want diverged", report.Verdict)
	}
}

func TestNewton_ModelFailure(t *testing.T) {
	n := NewNewton(25, 1e-10)
	m := &verdictModel{applyErr: errors.New("bad control")}

	_, _, err := n.Solve(m, m.InitialState(), nil, 1.0)
	if !errors.Is(err, stepper.ErrModelFailure) {
		t.Errorf("error = %v, want ErrModelFailure", err)
	}
}
