package config

var Presets = map[string]map[string]*Config{
	"cell": {
		"discharge": {
			Model:  "cell",
			Solver: DefaultConfig().Solver,
			Schedule: []IntervalConfig{
				{
					Duration: 7200, Steps: 8,
					Control: ControlConfig{Kind: "current", Value: 1.5},
					Stops:   []StopConfig{{Quantity: "voltage", Op: "below", Value: 3.0}},
				},
			},
		},
		"pulse": {
			Model:  "cell",
			Solver: DefaultConfig().Solver,
			Schedule: []IntervalConfig{
				{
					Duration: 600, Steps: 4,
					Control: ControlConfig{Kind: "current", Value: 3.0},
					Stops:   []StopConfig{{Quantity: "voltage", Op: "below", Value: 2.9}},
				},
				{
					Duration: 600, Steps: 2,
					Control: ControlConfig{Kind: "rest"},
				},
				{
					Duration: 600, Steps: 4,
					Control: ControlConfig{Kind: "current", Value: 3.0},
					Stops:   []StopConfig{{Quantity: "voltage", Op: "below", Value: 2.9}},
				},
			},
		},
		"power": {
			Model:  "cell",
			Solver: DefaultConfig().Solver,
			Selector: SelectorConfig{
				Kind:       "change",
				Quantities: []string{"voltage"},
				TargetAbs:  0.02,
			},
			Schedule: []IntervalConfig{
				{
					Duration: 3600, Steps: 4,
					Control: ControlConfig{Kind: "power", Value: 6.0},
					Stops:   []StopConfig{{Quantity: "voltage", Op: "below", Value: 3.0}},
				},
			},
			Output: OutputConfig{Ministeps: true},
		},
	},
	"thermal": {
		"heatup": {
			Model:  "thermal",
			Solver: DefaultConfig().Solver,
			Schedule: []IntervalConfig{
				{
					Duration: 1800, Steps: 6,
					Control: ControlConfig{Kind: "power", Value: 80},
					Stops:   []StopConfig{{Quantity: "temperature", Op: "above", Value: 360}},
				},
				{
					Duration: 1800, Steps: 6,
					Control: ControlConfig{Kind: "rest"},
				},
			},
		},
	},
}

func GetPreset(model, name string) *Config {
	byName, ok := Presets[model]
	if !ok {
		return nil
	}
	return byName[name]
}

func ListPresets(model string) []string {
	byName, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	return names
}
