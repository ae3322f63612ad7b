package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynstep/internal/stepper"
)

// CellState is a battery cell snapshot.
type CellState struct {
	T   float64
	SoC float64
	V   float64
	I   float64
}

func (s *CellState) Time() float64 { return s.T }

func (s *CellState) Quantity(name string) (float64, bool) {
	switch name {
	case "soc":
		return s.SoC, true
	case "voltage":
		return s.V, true
	case "current":
		return s.I, true
	default:
		return 0, false
	}
}

// Cell is an equivalent-circuit battery cell. Charge balance uses
// implicit Euler on the state of charge; the terminal voltage follows
// the open-circuit voltage minus the ohmic drop across a state-dependent
// internal resistance.
type Cell struct {
	Capacity   float64 // coulombic capacity, ampere-seconds
	R0         float64 // internal resistance at full charge, ohm
	R1         float64 // additional resistance at empty, ohm
	InitialSoC float64
}

func NewCell() *Cell {
	return &Cell{
		Capacity:   3.0 * 3600, // 3 Ah
		R0:         0.02,
		R1:         0.03,
		InitialSoC: 1.0,
	}
}

// OCV is the open-circuit voltage at the given state of charge. The log
// term gives the characteristic knee at low charge.
func (c *Cell) OCV(soc float64) float64 {
	return 2.8 + 1.1*soc + 0.08*math.Log(soc+0.01)
}

func (c *Cell) dOCV(soc float64) float64 {
	return 1.1 + 0.08/(soc+0.01)
}

// Resistance grows linearly as the cell empties.
func (c *Cell) Resistance(soc float64) float64 {
	return c.R0 + c.R1*(1-soc)
}

func (c *Cell) InitialState() stepper.State {
	return &CellState{T: 0, SoC: c.InitialSoC, V: c.OCV(c.InitialSoC), I: 0}
}

func (c *Cell) ApplyControl(prev stepper.State, ctrl stepper.Control, dt float64) (stepper.System, error) {
	p, ok := prev.(*CellState)
	if !ok {
		return nil, fmt.Errorf("cell: unexpected state type %T", prev)
	}
	switch ctrl.(type) {
	case CurrentControl, PowerControl, RestControl:
	default:
		return nil, fmt.Errorf("cell: unsupported control type %T", ctrl)
	}
	return &cellSystem{cell: c, prev: p, ctrl: ctrl, dt: dt}, nil
}

func (c *Cell) UpdateState(it stepper.Iterate) stepper.State {
	return it.(*CellState)
}

// cellSystem solves the coupled (soc, v) residuals for one step:
//
//	f1 = (soc - socPrev) + dt*I/Q          charge balance
//	f2 = v - ocv(soc) + I*R(soc)           terminal voltage
//
// with I fixed by the control, possibly as a function of v.
type cellSystem struct {
	cell *Cell
	prev *CellState
	ctrl stepper.Control
	dt   float64
}

func (s *cellSystem) current(v float64) (i, didv float64) {
	switch c := s.ctrl.(type) {
	case CurrentControl:
		return c.Amps, 0
	case PowerControl:
		return c.Watts / v, -c.Watts / (v * v)
	default:
		return 0, 0
	}
}

func (s *cellSystem) InitialIterate() stepper.Iterate {
	return &CellState{T: s.prev.T + s.dt, SoC: s.prev.SoC, V: s.prev.V, I: s.prev.I}
}

func (s *cellSystem) SolveLinearStep(it stepper.Iterate) (stepper.Iterate, stepper.Norms, error) {
	x := it.(*CellState)
	c := s.cell

	i, didv := s.current(x.V)
	f1 := (x.SoC - s.prev.SoC) + s.dt*i/c.Capacity
	f2 := x.V - c.OCV(x.SoC) + i*c.Resistance(x.SoC)

	jac := mat.NewDense(2, 2, []float64{
		1, s.dt / c.Capacity * didv,
		-c.dOCV(x.SoC) - i*c.R1, 1 + didv*c.Resistance(x.SoC),
	})
	rhs := mat.NewVecDense(2, []float64{-f1, -f2})

	var dx mat.VecDense
	if err := dx.SolveVec(jac, rhs); err != nil {
		return nil, nil, fmt.Errorf("cell: linear solve: %w", err)
	}

	next := &CellState{
		T:   s.prev.T + s.dt,
		SoC: x.SoC + dx.AtVec(0),
		V:   x.V + dx.AtVec(1),
	}
	next.I, _ = s.current(next.V)

	// Residuals at the updated iterate, scaled per equation group.
	r1 := (next.SoC - s.prev.SoC) + s.dt*next.I/c.Capacity
	r2 := next.V - c.OCV(next.SoC) + next.I*c.Resistance(next.SoC)
	norms := stepper.Norms{
		math.Abs(r1),
		math.Abs(r2) / math.Max(1, math.Abs(next.V)),
	}
	return next, norms, nil
}
