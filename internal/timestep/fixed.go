package timestep

import (
	"math"

	"github.com/san-kum/dynstep/internal/stepper"
)

// Fixed always proposes the schedule-declared nominal step length.
type Fixed struct{}

func NewFixed() *Fixed {
	return &Fixed{}
}

func (f *Fixed) Propose(nominal, remaining float64) float64 {
	return math.Min(nominal, remaining)
}

func (f *Fixed) Observe(prev, next stepper.State, dt float64) {}

func (f *Fixed) Reset() {}
