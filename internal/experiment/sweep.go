package experiment

import (
	"context"
	"sync"

	"github.com/san-kum/dynstep/internal/driver"
	"github.com/san-kum/dynstep/internal/schedule"
	"github.com/san-kum/dynstep/internal/stepper"
	"github.com/san-kum/dynstep/internal/timestep"
)

// Sweep runs independent drivers over a range of control magnitudes.
// Each run gets a fresh model, schedule, and selector, so runs share no
// state and can execute concurrently.
type Sweep struct {
	NewModel    func() stepper.Model
	NewSchedule func(value float64) schedule.Schedule
	Config      driver.Config

	// NewSelector, when set, builds a per-run selector. Selectors carry
	// adaptation state and must not be shared across concurrent runs.
	NewSelector func() timestep.Selector
}

func (s *Sweep) Run(ctx context.Context, values []float64) ([]*driver.Result, error) {
	results := make([]*driver.Result, len(values))
	errs := make([]error, len(values))

	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		go func(idx int, value float64) {
			defer wg.Done()

			cfg := s.Config
			if s.NewSelector != nil {
				cfg.Selector = s.NewSelector()
			}

			d, err := driver.New(s.NewModel(), s.NewSchedule(value), cfg)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = d.Run(ctx)
		}(i, v)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
