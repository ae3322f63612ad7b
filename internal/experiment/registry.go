package experiment

import (
	"fmt"

	"github.com/san-kum/dynstep/internal/models"
	"github.com/san-kum/dynstep/internal/stepper"
)

type Registry struct {
	models map[string]func() stepper.Model
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() stepper.Model)}

	r.models["cell"] = func() stepper.Model { return models.NewCell() }
	r.models["thermal"] = func() stepper.Model { return models.NewThermal() }

	return r
}

func (r *Registry) GetModel(name string) (stepper.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// Quantities returns the state quantity names a model exposes, in the
// order they should appear in exported columns.
func (r *Registry) Quantities(model string) []string {
	switch model {
	case "cell":
		return []string{"soc", "voltage", "current"}
	case "thermal":
		return []string{"temperature"}
	default:
		return nil
	}
}
