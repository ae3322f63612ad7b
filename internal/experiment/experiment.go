// Package experiment wires configuration files to runnable driver
// setups and provides parallel sweeps over control magnitudes.
package experiment

import (
	"fmt"

	"github.com/san-kum/dynstep/internal/config"
	"github.com/san-kum/dynstep/internal/driver"
	"github.com/san-kum/dynstep/internal/models"
	"github.com/san-kum/dynstep/internal/schedule"
	"github.com/san-kum/dynstep/internal/stepper"
	"github.com/san-kum/dynstep/internal/timestep"
)

// Build turns a configuration into a model, schedule, and driver config.
func Build(cfg *config.Config) (stepper.Model, schedule.Schedule, driver.Config, error) {
	registry := NewRegistry()

	model, err := registry.GetModel(cfg.Model)
	if err != nil {
		return nil, schedule.Schedule{}, driver.Config{}, err
	}

	sched, err := buildSchedule(cfg.Schedule)
	if err != nil {
		return nil, schedule.Schedule{}, driver.Config{}, err
	}

	sel, err := buildSelector(cfg.Selector)
	if err != nil {
		return nil, schedule.Schedule{}, driver.Config{}, err
	}

	drvCfg := driver.Config{
		MaxIterations:      cfg.Solver.MaxIterations,
		NonlinearTolerance: cfg.Solver.Tolerance,
		DivergenceFactor:   cfg.Solver.DivergenceFactor,
		ErrorOnFailure:     cfg.Solver.ErrorOnFailure,
		MinStep:            cfg.Solver.MinStep,
		OutputMinisteps:    cfg.Output.Ministeps,
		Selector:           sel,
	}
	return model, sched, drvCfg, nil
}

func buildControl(c config.ControlConfig) (stepper.Control, error) {
	switch c.Kind {
	case "current":
		return models.CurrentControl{Amps: c.Value}, nil
	case "power":
		return models.PowerControl{Watts: c.Value}, nil
	case "rest", "":
		return models.RestControl{}, nil
	default:
		return nil, fmt.Errorf("unknown control kind: %s", c.Kind)
	}
}

func buildStop(s config.StopConfig) (stepper.StopCondition, error) {
	switch s.Op {
	case "below":
		return stepper.QuantityBelow(s.Quantity, s.Value), nil
	case "above":
		return stepper.QuantityAbove(s.Quantity, s.Value), nil
	default:
		return nil, fmt.Errorf("unknown stop op: %s", s.Op)
	}
}

func buildSchedule(intervals []config.IntervalConfig) (schedule.Schedule, error) {
	ivs := make([]schedule.Interval, 0, len(intervals))
	for i, ic := range intervals {
		ctrl, err := buildControl(ic.Control)
		if err != nil {
			return schedule.Schedule{}, fmt.Errorf("schedule interval %d: %w", i, err)
		}
		stops := make([]stepper.StopCondition, 0, len(ic.Stops))
		for _, sc := range ic.Stops {
			stop, err := buildStop(sc)
			if err != nil {
				return schedule.Schedule{}, fmt.Errorf("schedule interval %d: %w", i, err)
			}
			stops = append(stops, stop)
		}
		steps := ic.Steps
		if steps < 1 {
			steps = 1
		}
		ivs = append(ivs, schedule.Uniform(ic.Duration, steps, ctrl, stops...))
	}
	sched := schedule.New(ivs...)
	return sched, sched.Validate()
}

func buildSelector(sc config.SelectorConfig) (timestep.Selector, error) {
	switch sc.Kind {
	case "fixed", "":
		return timestep.NewFixed(), nil
	case "change":
		sel := timestep.NewChangeTarget(sc.Quantities, sc.TargetAbs, sc.TargetRel)
		if sc.MaxGrowth > 0 {
			sel.MaxGrowth = sc.MaxGrowth
		}
		if sc.MinShrink > 0 {
			sel.MinShrink = sc.MinShrink
		}
		return sel, nil
	default:
		return nil, fmt.Errorf("unknown selector kind: %s", sc.Kind)
	}
}
