package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Solver.MaxIterations)
	assert.Equal(t, 1e-6, cfg.Solver.Tolerance)
	assert.Equal(t, "dense", cfg.Solver.Backend)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	yaml := `
simulation:
  time_step: 1.0e-5
  stop_time: 0.5
  method: tr
solver:
  backend: sparse
metrics:
  addr: localhost:9090
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1e-5, cfg.Simulation.TimeStep)
	assert.Equal(t, 0.5, cfg.Simulation.StopTime)
	assert.Equal(t, "tr", cfg.Simulation.Method)
	assert.Equal(t, "sparse", cfg.Solver.Backend)
	assert.Equal(t, "localhost:9090", cfg.Metrics.Addr)
	// untouched sections keep their defaults
	assert.Equal(t, 100, cfg.Solver.MaxIterations)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero step":         func(c *Config) { c.Simulation.TimeStep = 0 },
		"stop before start": func(c *Config) { c.Simulation.StartTime = 1; c.Simulation.StopTime = 0.5 },
		"unknown method":    func(c *Config) { c.Simulation.Method = "gear" },
		"unknown backend":   func(c *Config) { c.Solver.Backend = "cholesky" },
		"no iterations":     func(c *Config) { c.Solver.MaxIterations = 0 },
		"bad metrics addr":  func(c *Config) { c.Metrics.Addr = "nope" },
		"bad level":         func(c *Config) { c.Logging.Level = "trace" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyOptions(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyOptions(map[string]string{
		"method":  "trap",
		"temp":    "50",
		"backend": "SPARSE",
		"maxiter": "20",
	}))
	assert.Equal(t, "tr", cfg.Simulation.Method)
	assert.Equal(t, 50.0, cfg.Simulation.Temperature)
	assert.Equal(t, "sparse", cfg.Solver.Backend)
	assert.Equal(t, 20, cfg.Solver.MaxIterations)

	assert.Error(t, Default().ApplyOptions(map[string]string{"method": "gear"}))
	assert.Error(t, Default().ApplyOptions(map[string]string{"reltol": "1e-3"}))
}
