package stepper

// Verdict is the terminal outcome of one nonlinear solve attempt.
type Verdict int

const (
	Converged Verdict = iota
	Diverged
	MaxIterationsExceeded
)

func (v Verdict) String() string {
	switch v {
	case Converged:
		return "converged"
	case Diverged:
		return "diverged"
	case MaxIterationsExceeded:
		return "max iterations exceeded"
	default:
		return "unknown"
	}
}

// ConvergenceReport records the iteration history of one step attempt.
type ConvergenceReport struct {
	// Norms holds the residual norms after each iteration.
	Norms []Norms
	// Verdict is the terminal outcome.
	Verdict Verdict
	// Iterations is the number of Newton iterations performed.
	Iterations int
}

func (r *ConvergenceReport) Converged() bool {
	return r.Verdict == Converged
}

// Status is the terminal status of a driver run.
type Status int

const (
	Completed Status = iota
	StoppedByCondition
	FailedButReported
	Aborted
	Canceled
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case StoppedByCondition:
		return "stopped by condition"
	case FailedButReported:
		return "failed but reported"
	case Aborted:
		return "aborted"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// StepRecord describes one attempted step, accepted or final-failed.
type StepRecord struct {
	Interval    int
	Time        float64
	Dt          float64
	Retries     int
	Ministep    bool
	Accepted    bool
	Convergence *ConvergenceReport
}

// Stats aggregates solver effort over a run.
type Stats struct {
	NewtonIterations int
	LinearSolves     int
	RejectedAttempts int
	MinAcceptedDt    float64
	MaxAcceptedDt    float64
}

// Report is the per-run record: one StepRecord per attempt that produced
// an accepted state (plus, on failure, the final rejected attempt),
// aggregate statistics, and the terminal status.
type Report struct {
	Steps  []StepRecord
	Stats  Stats
	Status Status
}

// Observe folds a step record into the report.
func (r *Report) Observe(rec StepRecord) {
	r.Steps = append(r.Steps, rec)
	if rec.Convergence != nil {
		r.Stats.NewtonIterations += rec.Convergence.Iterations
		r.Stats.LinearSolves += rec.Convergence.Iterations
	}
	r.Stats.RejectedAttempts += rec.Retries
	if !rec.Accepted {
		r.Stats.RejectedAttempts++
		return
	}
	if r.Stats.MinAcceptedDt == 0 || rec.Dt < r.Stats.MinAcceptedDt {
		r.Stats.MinAcceptedDt = rec.Dt
	}
	if rec.Dt > r.Stats.MaxAcceptedDt {
		r.Stats.MaxAcceptedDt = rec.Dt
	}
}
