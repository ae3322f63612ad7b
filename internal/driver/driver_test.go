package driver

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dynstep/internal/schedule"
	"github.com/san-kum/dynstep/internal/stepper"
	"github.com/san-kum/dynstep/internal/timestep"
)

// rampState tracks a single quantity that decays linearly in time.
type rampState struct {
	t       float64
	tracked float64
}

func (s *rampState) Time() float64 { return s.t }

func (s *rampState) Quantity(name string) (float64, bool) {
	if name == "tracked" {
		return s.tracked, true
	}
	return 0, false
}

// rampModel drops its tracked quantity by rate per time unit. Steps with
// dt above failAboveDt never converge, which exercises step cutting.
type rampModel struct {
	rate        float64
	failAboveDt float64
}

func newRampModel() *rampModel {
	return &rampModel{rate: 1.0 / 900.0, failAboveDt: math.Inf(1)}
}

func (m *rampModel) InitialState() stepper.State {
	return &rampState{t: 0, tracked: 4.0}
}

func (m *rampModel) ApplyControl(prev stepper.State, ctrl stepper.Control, dt float64) (stepper.System, error) {
	p := prev.(*rampState)
	return &rampSystem{model: m, prev: p, dt: dt}, nil
}

func (m *rampModel) UpdateState(it stepper.Iterate) stepper.State {
	return it.(*rampState)
}

type rampSystem struct {
	model *rampModel
	prev  *rampState
	dt    float64
	iter  int
}

func (s *rampSystem) InitialIterate() stepper.Iterate {
	return &rampState{t: s.prev.t + s.dt, tracked: s.prev.tracked}
}

func (s *rampSystem) SolveLinearStep(it stepper.Iterate) (stepper.Iterate, stepper.Norms, error) {
	if s.dt > s.model.failAboveDt {
		return it, stepper.Norms{1.0}, nil
	}
	s.iter++
	next := &rampState{
		t:       s.prev.t + s.dt,
		tracked: s.prev.tracked - s.model.rate*s.dt,
	}
	if s.iter < 2 {
		return next, stepper.Norms{1e-3}, nil
	}
	return next, stepper.Norms{0}, nil
}

func mustDriver(t *testing.T, m stepper.Model, sched schedule.Schedule, cfg Config) *Driver {
	t.Helper()
	d, err := New(m, sched, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestRun_Completed(t *testing.T) {
	m := newRampModel()
	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, m, sched, DefaultConfig())

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Status != stepper.Completed {
		t.Fatalf("status = %s, want completed", result.Report.Status)
	}
	want := []float64{900, 1800, 2700, 3600}
	if len(result.Times) != len(want) {
		t.Fatalf("output length = %d, want %d", len(result.Times), len(want))
	}
	for i, w := range want {
		if math.Abs(result.Times[i]-w) > 1e-9 {
			t.Errorf("times[%d] = %f, want %f", i, result.Times[i], w)
		}
	}
}

func TestRun_MonotonicTime(t *testing.T) {
	m := newRampModel()
	sched := schedule.New(
		schedule.Uniform(3600, 4, nil),
		schedule.Uniform(1800, 3, nil),
	)
	d := mustDriver(t, m, sched, DefaultConfig())

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sum := 0.0
	last := 0.0
	for _, rec := range result.Report.Steps {
		if rec.Time <= last {
			t.Fatalf("time %f not strictly increasing past %f", rec.Time, last)
		}
		last = rec.Time
		sum += rec.Dt
		if math.Abs(rec.Time-sum) > 1e-9 {
			t.Fatalf("time %f does not equal running dt sum %f", rec.Time, sum)
		}
	}
	if math.Abs(sum-5400) > 1e-9 {
		t.Errorf("total accepted dt = %f, want 5400", sum)
	}
}

func TestRun_StopCondition(t *testing.T) {
	m := newRampModel() // tracked: 4 -> 3 -> 2 -> 1 at the nominal steps
	sched := schedule.New(
		schedule.Uniform(3600, 4, nil, stepper.QuantityBelow("tracked", 1.5)),
		schedule.Uniform(3600, 4, nil), // never reached
	)
	d := mustDriver(t, m, sched, DefaultConfig())

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Status != stepper.StoppedByCondition {
		t.Fatalf("status = %s, want stopped by condition", result.Report.Status)
	}
	if len(result.States) != 3 {
		t.Fatalf("output length = %d, want 3", len(result.States))
	}
	v, _ := result.States[2].Quantity("tracked")
	if v >= 1.5 {
		t.Errorf("final tracked = %f, want < 1.5", v)
	}
}

func TestRun_StopOnFirstStep(t *testing.T) {
	m := newRampModel()
	sched := schedule.New(
		schedule.Uniform(3600, 4, nil, stepper.QuantityBelow("tracked", 5.0)),
		schedule.Uniform(3600, 4, nil),
	)
	d := mustDriver(t, m, sched, DefaultConfig())

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Status != stepper.StoppedByCondition {
		t.Fatalf("status = %s, want stopped by condition", result.Report.Status)
	}
	if len(result.States) != 1 {
		t.Errorf("output length = %d, want 1", len(result.States))
	}
}

func TestRun_StepCutting(t *testing.T) {
	m := newRampModel()
	m.failAboveDt = 500 // nominal 900 fails, 450 converges

	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, m, sched, DefaultConfig())

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Status != stepper.Completed {
		t.Fatalf("status = %s, want completed", result.Report.Status)
	}

	// Checkpoints only: halved ministeps are merged back to 900s.
	want := []float64{900, 1800, 2700, 3600}
	if len(result.Times) != len(want) {
		t.Fatalf("output length = %d, want %d", len(result.Times), len(want))
	}
	for i, w := range want {
		if math.Abs(result.Times[i]-w) > 1e-9 {
			t.Errorf("times[%d] = %f, want %f", i, result.Times[i], w)
		}
	}

	// Every accepted step was a 450 ministep after one retry on the
	// first attempt of each nominal step.
	accepted := 0
	for _, rec := range result.Report.Steps {
		if !rec.Accepted {
			continue
		}
		accepted++
		if rec.Dt != 450 {
			t.Errorf("accepted dt = %f, want 450", rec.Dt)
		}
	}
	if accepted != 8 {
		t.Errorf("accepted steps = %d, want 8", accepted)
	}
	if result.Report.Stats.RejectedAttempts != 4 {
		t.Errorf("rejected attempts = %d, want 4", result.Report.Stats.RejectedAttempts)
	}
}

func TestRun_OutputMinisteps(t *testing.T) {
	m := newRampModel()
	m.failAboveDt = 500

	cfg := DefaultConfig()
	cfg.OutputMinisteps = true
	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, m, sched, cfg)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.States) != 8 {
		t.Errorf("output length = %d, want 8 ministeps", len(result.States))
	}
}

func TestRun_ExhaustedRetries_Abort(t *testing.T) {
	m := newRampModel()
	m.failAboveDt = 0 // never converges

	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, m, sched, DefaultConfig())

	result, err := d.Run(context.Background())
	if !errors.Is(err, stepper.ErrStepTooSmall) {
		t.Fatalf("error = %v, want ErrStepTooSmall", err)
	}
	if result.Report.Status != stepper.Aborted {
		t.Errorf("status = %s, want aborted", result.Report.Status)
	}
}

func TestRun_ExhaustedRetries_Reported(t *testing.T) {
	m := newRampModel()
	m.failAboveDt = 0

	cfg := DefaultConfig()
	cfg.ErrorOnFailure = false
	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, m, sched, cfg)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("degraded run should not error, got %v", err)
	}
	if result.Report.Status != stepper.FailedButReported {
		t.Fatalf("status = %s, want failed but reported", result.Report.Status)
	}
	if len(result.States) != 0 {
		t.Errorf("output length = %d, want 0 (no step ever converged)", len(result.States))
	}

	// The failing attempt's convergence report is preserved for diagnosis.
	if len(result.Report.Steps) == 0 {
		t.Fatal("report carries no step records")
	}
	final := result.Report.Steps[len(result.Report.Steps)-1]
	if final.Accepted || final.Convergence == nil || final.Convergence.Converged() {
		t.Error("final record should be the rejected attempt")
	}
}

func TestRun_PartialOutputBeforeFailure(t *testing.T) {
	m := newRampModel()
	sched := schedule.New(
		schedule.Uniform(1800, 2, nil),
		schedule.Uniform(1800, 2, "poison"),
	)

	// Fail only in the second interval by flipping the threshold when the
	// poison control arrives.
	poisoned := &controlGate{inner: m}

	cfg := DefaultConfig()
	cfg.ErrorOnFailure = false
	d := mustDriver(t, poisoned, sched, cfg)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Report.Status != stepper.FailedButReported {
		t.Fatalf("status = %s, want failed but reported", result.Report.Status)
	}
	want := []float64{900, 1800}
	if len(result.Times) != len(want) {
		t.Fatalf("output length = %d, want %d", len(result.Times), len(want))
	}
}

// controlGate fails every solve once the "poison" control is applied.
type controlGate struct {
	inner *rampModel
}

func (g *controlGate) InitialState() stepper.State { return g.inner.InitialState() }

func (g *controlGate) ApplyControl(prev stepper.State, ctrl stepper.Control, dt float64) (stepper.System, error) {
	if ctrl == "poison" {
		g.inner.failAboveDt = 0
	}
	return g.inner.ApplyControl(prev, ctrl, dt)
}

func (g *controlGate) UpdateState(it stepper.Iterate) stepper.State {
	return g.inner.UpdateState(it)
}

func TestRun_Canceled(t *testing.T) {
	m := newRampModel()
	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, m, sched, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Run(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if result.Report.Status != stepper.Canceled {
		t.Errorf("status = %s, want canceled", result.Report.Status)
	}
}

func TestRun_Deterministic(t *testing.T) {
	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	cfg := DefaultConfig()
	cfg.Selector = timestep.NewChangeTarget([]string{"tracked"}, 0.5, 0)

	run := func() *Result {
		d := mustDriver(t, newRampModel(), sched, cfg)
		r, err := d.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return r
	}

	a, b := run(), run()
	if len(a.Report.Steps) != len(b.Report.Steps) {
		t.Fatalf("replay step counts differ: %d vs %d", len(a.Report.Steps), len(b.Report.Steps))
	}
	for i := range a.Report.Steps {
		if a.Report.Steps[i].Time != b.Report.Steps[i].Time || a.Report.Steps[i].Dt != b.Report.Steps[i].Dt {
			t.Fatalf("replay diverged at record %d", i)
		}
	}
}

func TestRun_ChangeTargetConservesDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Selector = timestep.NewChangeTarget([]string{"tracked"}, 0.2, 0)
	cfg.OutputMinisteps = true
	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, newRampModel(), sched, cfg)

	result, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sum := 0.0
	for _, rec := range result.Report.Steps {
		sum += rec.Dt
	}
	if math.Abs(sum-3600) > 1e-6 {
		t.Errorf("accepted dt sum = %f, want 3600", sum)
	}
	if result.Report.Status != stepper.Completed {
		t.Errorf("status = %s, want completed", result.Report.Status)
	}
}

type recordingObserver struct {
	times []float64
}

func (o *recordingObserver) OnStep(state stepper.State, rec stepper.StepRecord) {
	o.times = append(o.times, rec.Time)
}

func TestRun_Observers(t *testing.T) {
	m := newRampModel()
	sched := schedule.New(schedule.Uniform(3600, 4, nil))
	d := mustDriver(t, m, sched, DefaultConfig())

	obs := &recordingObserver{}
	d.AddObserver(obs)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(obs.times) != 4 {
		t.Errorf("observer saw %d steps, want 4", len(obs.times))
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	sched := schedule.New(schedule.Uniform(3600, 4, nil))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"negative tolerance", func(c *Config) { c.NonlinearTolerance = -1 }},
		{"zero min step", func(c *Config) { c.MinStep = 0 }},
		{"divergence factor", func(c *Config) { c.DivergenceFactor = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(newRampModel(), sched, cfg); err == nil {
				t.Error("expected config error")
			}
		})
	}
}

func TestNew_ValidatesSchedule(t *testing.T) {
	bad := schedule.New(schedule.Interval{Steps: []float64{-900}})
	if _, err := New(newRampModel(), bad, DefaultConfig()); err == nil {
		t.Error("expected schedule validation error")
	}
}
