package timestep

import (
	"math"

	"github.com/san-kum/dynstep/internal/stepper"
)

const (
	DefaultMaxGrowth = 2.0
	DefaultMinShrink = 0.1
)

// ChangeTarget scales the step length so that designated scalar
// quantities change by roughly the configured target per step. The scale
// factor is clamped to [MinShrink, MaxGrowth] per accepted step, so the
// proposal never grows or shrinks unboundedly, and a step that produced
// no observable change grows the step by at most MaxGrowth.
type ChangeTarget struct {
	// Quantities are the tracked state quantity names.
	Quantities []string
	// TargetAbs is the desired absolute change per step. Used when > 0.
	TargetAbs float64
	// TargetRel is the desired change per step relative to the previous
	// value. Used when > 0; the tighter of the two targets wins.
	TargetRel float64
	// MaxGrowth and MinShrink bound the per-step scale factor.
	MaxGrowth float64
	MinShrink float64

	next float64
}

func NewChangeTarget(quantities []string, targetAbs, targetRel float64) *ChangeTarget {
	return &ChangeTarget{
		Quantities: quantities,
		TargetAbs:  targetAbs,
		TargetRel:  targetRel,
		MaxGrowth:  DefaultMaxGrowth,
		MinShrink:  DefaultMinShrink,
	}
}

func (c *ChangeTarget) Propose(nominal, remaining float64) float64 {
	dt := nominal
	if c.next > 0 {
		dt = c.next
	}
	return math.Min(dt, remaining)
}

func (c *ChangeTarget) Observe(prev, next stepper.State, dt float64) {
	worst := 0.0
	for _, name := range c.Quantities {
		pv, okPrev := prev.Quantity(name)
		nv, okNext := next.Quantity(name)
		if !okPrev || !okNext {
			continue
		}
		change := math.Abs(nv - pv)
		if c.TargetAbs > 0 {
			worst = math.Max(worst, change/c.TargetAbs)
		}
		if c.TargetRel > 0 && pv != 0 {
			worst = math.Max(worst, change/(c.TargetRel*math.Abs(pv)))
		}
	}

	factor := c.MaxGrowth
	if worst > 0 {
		factor = math.Min(c.MaxGrowth, math.Max(c.MinShrink, 1/worst))
	}
	c.next = dt * factor
}

func (c *ChangeTarget) Reset() {
	c.next = 0
}
