package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Solver     SolverConfig     `yaml:"solver"`
	Driver     DriverConfig     `yaml:"driver"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type SimulationConfig struct {
	TimeStep    float64 `yaml:"time_step" validate:"gt=0"`
	StopTime    float64 `yaml:"stop_time" validate:"gtfield=StartTime"`
	StartTime   float64 `yaml:"start_time" validate:"gte=0"`
	Method      string  `yaml:"method" validate:"oneof=be tr"`
	Temperature float64 `yaml:"temperature" validate:"gt=-273.15"` // degC
}

type SolverConfig struct {
	Backend        string  `yaml:"backend" validate:"oneof=dense sparse"`
	MaxIterations  int     `yaml:"max_iterations" validate:"min=1"`
	Tolerance      float64 `yaml:"tolerance" validate:"gt=0"`
	PivotTolerance float64 `yaml:"pivot_tolerance" validate:"gt=0,lt=1"`
}

type DriverConfig struct {
	Rate        float64 `yaml:"rate" validate:"gte=0"` // steps per second, 0 runs unpaced
	MaxRetries  int     `yaml:"max_retries" validate:"gte=0"`
	MinTimeStep float64 `yaml:"min_time_step" validate:"gt=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			TimeStep:    10e-6,
			StopTime:    10e-3,
			Method:      "be",
			Temperature: 27,
		},
		Solver: SolverConfig{
			Backend:        "dense",
			MaxIterations:  100,
			Tolerance:      1e-6,
			PivotTolerance: 1e-12,
		},
		Driver: DriverConfig{
			MaxRetries:  4,
			MinTimeStep: 1e-9,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ApplyOptions merges netlist .options (method, temp, backend, maxiter, tol).
func (c *Config) ApplyOptions(opts map[string]string) error {
	for key, value := range opts {
		switch key {
		case "method":
			switch strings.ToLower(value) {
			case "be", "euler":
				c.Simulation.Method = "be"
			case "tr", "trap", "trapezoidal":
				c.Simulation.Method = "tr"
			default:
				return fmt.Errorf("option method: unknown integration method %s", value)
			}
		case "backend":
			c.Solver.Backend = strings.ToLower(value)
		case "temp":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("option temp: %w", err)
			}
			c.Simulation.Temperature = v
		case "maxiter", "itl4":
			v, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("option %s: %w", key, err)
			}
			c.Solver.MaxIterations = v
		case "tol", "vntol":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("option %s: %w", key, err)
			}
			c.Solver.Tolerance = v
		default:
			return fmt.Errorf("unsupported option: %s", key)
		}
	}
	return c.Validate()
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Report the first failure with its YAML-ish path
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "gt", "gte", "min":
			return fmt.Errorf("%s: must be greater than %s(%s), got %v", field, e.Tag(), e.Param(), e.Value())
		case "lt":
			return fmt.Errorf("%s: must be less than %s, got %v", field, e.Param(), e.Value())
		case "gtfield":
			return fmt.Errorf("%s: must be greater than %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s], got %q", field, e.Param(), e.Value())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
