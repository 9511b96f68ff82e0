package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/freight-market/internal/agents"
	"github.com/talgya/freight-market/internal/batch"
	"github.com/talgya/freight-market/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	plan := cfg.Plan()
	assert.Equal(t, engine.Scenarios, plan.Scenarios)
	assert.Equal(t, []int{25, 50, 75, 100, 125, 150, 175, 200}, plan.Requests)
	assert.Equal(t, 3*3*8*3*50, plan.Runs())
	assert.Equal(t, engine.DefaultParams(), plan.Params)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
params:
  rounds: 20
sweep:
  scenarios: [primitive, B2B_Enabled_Market]
  costs: [1200]
  requests: [40, 80]
  forwarders: [5]
mix:
  - strategy: aggressive
    weight: 1
  - strategy: rational
    weight: 1
iterations: 4
seed: 7
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Params.Rounds)
	assert.InDelta(t, 26, cfg.Params.ContainerCapacity, 0)
	assert.Equal(t, []engine.Scenario{engine.ScenarioPrimitive, engine.ScenarioEnabled}, cfg.Sweep.Scenarios)
	assert.Equal(t, []float64{1200}, cfg.Sweep.Costs)
	assert.Equal(t, 5, cfg.Sweep.Spread)
	assert.Equal(t, engine.Mix{
		{Strategy: agents.StrategyAggressive, Weight: 1},
		{Strategy: agents.StrategyRational, Weight: 1},
	}, cfg.Mix)
	assert.Equal(t, 4, cfg.Iterations)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 2*1*2*1*4, cfg.Plan().Runs())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MARKETSIM_DB", "/tmp/other.db")
	t.Setenv("MARKETSIM_WORKERS", "3")
	t.Setenv("MARKETSIM_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("MARKETSIM_WORKERS", "many")

	_, err := Load("")
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "workers", fe.Field)
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	path := writeConfig(t, `
mix:
  - strategy: reckless
    weight: 1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, agents.ErrUnknownStrategy)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Config)
		field string
		is    error
	}{
		{"iterations", func(c *Config) { c.Iterations = 0 }, "iterations", errNotPositive},
		{"cost", func(c *Config) { c.Sweep.Costs = []float64{0} }, "sweep.costs", errNotPositive},
		{"forwarders", func(c *Config) { c.Sweep.Forwarders = []int{-1} }, "sweep.forwarders", errNotPositive},
		{"workers", func(c *Config) { c.Workers = -2 }, "workers", nil},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level", nil},
		{"params", func(c *Config) { c.Params.Confidence = 2 }, "params", engine.ErrInvalidParams},
		{"mix", func(c *Config) { c.Mix = nil }, "mix", engine.ErrEmptyMix},
		{"empty grid", func(c *Config) { c.Sweep.Scenarios = nil }, "sweep", batch.ErrEmptyPlan},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.edit(cfg)

			err := cfg.Validate()
			var fe *FieldError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tc.field, fe.Field)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}
