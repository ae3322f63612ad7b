package models

import (
	"fmt"
	"math"

	"github.com/san-kum/dynstep/internal/stepper"
)

// ThermalState is a lumped thermal block snapshot.
type ThermalState struct {
	T    float64
	Temp float64 // kelvin
}

func (s *ThermalState) Time() float64 { return s.T }

func (s *ThermalState) Quantity(name string) (float64, bool) {
	if name == "temperature" {
		return s.Temp, true
	}
	return 0, false
}

// Thermal is a lumped thermal block: heat input against convective and
// radiative losses to a fixed ambient. The T^4 radiation term keeps the
// implicit step genuinely nonlinear.
type Thermal struct {
	HeatCapacity float64 // J/K
	Convection   float64 // W/K
	RadiationK   float64 // emissivity * sigma * area, W/K^4
	Ambient      float64 // kelvin
}

func NewThermal() *Thermal {
	return &Thermal{
		HeatCapacity: 500,
		Convection:   1.2,
		RadiationK:   2.6e-9,
		Ambient:      293.15,
	}
}

func (b *Thermal) InitialState() stepper.State {
	return &ThermalState{T: 0, Temp: b.Ambient}
}

func (b *Thermal) ApplyControl(prev stepper.State, ctrl stepper.Control, dt float64) (stepper.System, error) {
	p, ok := prev.(*ThermalState)
	if !ok {
		return nil, fmt.Errorf("thermal: unexpected state type %T", prev)
	}
	var power float64
	switch c := ctrl.(type) {
	case PowerControl:
		power = c.Watts
	case RestControl:
		power = 0
	default:
		return nil, fmt.Errorf("thermal: unsupported control type %T", ctrl)
	}
	return &thermalSystem{block: b, prev: p, power: power, dt: dt}, nil
}

func (b *Thermal) UpdateState(it stepper.Iterate) stepper.State {
	return it.(*ThermalState)
}

// thermalSystem solves the scalar implicit Euler residual
//
//	f = C*(T - Tprev) - dt*(P - h*(T - Ta) - k*(T^4 - Ta^4))
//
// by plain scalar Newton; no matrix machinery needed for one unknown.
type thermalSystem struct {
	block *Thermal
	prev  *ThermalState
	power float64
	dt    float64
}

func (s *thermalSystem) residual(temp float64) float64 {
	b := s.block
	loss := b.Convection*(temp-b.Ambient) + b.RadiationK*(math.Pow(temp, 4)-math.Pow(b.Ambient, 4))
	return b.HeatCapacity*(temp-s.prev.Temp) - s.dt*(s.power-loss)
}

func (s *thermalSystem) InitialIterate() stepper.Iterate {
	return &ThermalState{T: s.prev.T + s.dt, Temp: s.prev.Temp}
}

func (s *thermalSystem) SolveLinearStep(it stepper.Iterate) (stepper.Iterate, stepper.Norms, error) {
	x := it.(*ThermalState)
	b := s.block

	f := s.residual(x.Temp)
	df := b.HeatCapacity + s.dt*(b.Convection+4*b.RadiationK*math.Pow(x.Temp, 3))

	next := &ThermalState{T: s.prev.T + s.dt, Temp: x.Temp - f/df}

	scale := b.HeatCapacity * math.Max(1, math.Abs(s.prev.Temp))
	return next, stepper.Norms{math.Abs(s.residual(next.Temp)) / scale}, nil
}
