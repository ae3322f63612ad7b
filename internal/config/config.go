package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxIterations    = 25
	DefaultTolerance        = 1e-8
	DefaultDivergenceFactor = 10.0
	DefaultMinStep          = 1e-6
	DefaultCurrent          = 1.5
	DefaultDuration         = 3600.0
	DefaultSteps            = 4
)

type Config struct {
	Model    string           `yaml:"model"`
	Solver   SolverConfig     `yaml:"solver"`
	Selector SelectorConfig   `yaml:"selector"`
	Schedule []IntervalConfig `yaml:"schedule"`
	Output   OutputConfig     `yaml:"output"`
}

type SolverConfig struct {
	MaxIterations    int     `yaml:"max_iterations"`
	Tolerance        float64 `yaml:"tolerance"`
	DivergenceFactor float64 `yaml:"divergence_factor"`
	ErrorOnFailure   bool    `yaml:"error_on_failure"`
	MinStep          float64 `yaml:"min_step"`
}

type SelectorConfig struct {
	Kind       string   `yaml:"kind"` // fixed | change
	Quantities []string `yaml:"quantities"`
	TargetAbs  float64  `yaml:"target_abs"`
	TargetRel  float64  `yaml:"target_rel"`
	MaxGrowth  float64  `yaml:"max_growth"`
	MinShrink  float64  `yaml:"min_shrink"`
}

type IntervalConfig struct {
	Duration float64       `yaml:"duration"`
	Steps    int           `yaml:"steps"`
	Control  ControlConfig `yaml:"control"`
	Stops    []StopConfig  `yaml:"stops"`
}

type ControlConfig struct {
	Kind  string  `yaml:"kind"` // current | power | rest
	Value float64 `yaml:"value"`
}

type StopConfig struct {
	Quantity string  `yaml:"quantity"`
	Op       string  `yaml:"op"` // below | above
	Value    float64 `yaml:"value"`
}

type OutputConfig struct {
	Ministeps bool `yaml:"ministeps"`
}

func DefaultConfig() *Config {
	return &Config{
		Model: "cell",
		Solver: SolverConfig{
			MaxIterations:    DefaultMaxIterations,
			Tolerance:        DefaultTolerance,
			DivergenceFactor: DefaultDivergenceFactor,
			ErrorOnFailure:   true,
			MinStep:          DefaultMinStep,
		},
		Selector: SelectorConfig{Kind: "fixed"},
		Schedule: []IntervalConfig{
			{
				Duration: DefaultDuration,
				Steps:    DefaultSteps,
				Control:  ControlConfig{Kind: "current", Value: DefaultCurrent},
				Stops: []StopConfig{
					{Quantity: "voltage", Op: "below", Value: 3.0},
				},
			},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
