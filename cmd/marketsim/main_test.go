package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand(t *testing.T) {
	var out bytes.Buffer
	err := execute(context.Background(), []string{"run", "--scenario", "open", "--rounds", "3", "--forwarders", "4", "--requests", "20", "--log-level", "error"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "open")
	assert.Contains(t, out.String(), "mean net profit")
	assert.Contains(t, out.String(), "success rate")
}

func TestRunCommandRejectsScenario(t *testing.T) {
	err := execute(context.Background(), []string{"run", "--scenario", "barter", "--log-level", "error"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
params:
  rounds: 3
sweep:
  scenarios: [primitive, enabled]
  costs: [1000]
  requests: [10]
  forwarders: [3]
iterations: 2
`), 0o644))

	var out bytes.Buffer
	err := execute(context.Background(), []string{
		"sweep", "--config", cfgPath, "--log-level", "error",
		"--db", filepath.Join(dir, "data", "results.db"),
		"--metrics", filepath.Join(dir, "metrics", "marketsim.prom"),
		"--workers", "2",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "primitive")
	assert.Contains(t, out.String(), "enabled")

	prom, err := os.ReadFile(filepath.Join(dir, "metrics", "marketsim.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `marketsim_runs_total{result="ok",scenario="enabled"} 2`)
}

func TestRunCommandJSON(t *testing.T) {
	var out bytes.Buffer
	err := execute(context.Background(), []string{"run", "--rounds", "2", "--forwarders", "3", "--json", "--log-level", "error"}, &out)
	require.NoError(t, err)

	var values map[string]float64
	require.NoError(t, json.Unmarshal(out.Bytes(), &values))
	assert.Contains(t, values, "mean_net_profit")
	assert.Contains(t, values, "profit_stability_cv")
}

func TestFailedCommandFlushesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "marketsim.log")

	err := execute(context.Background(), []string{"run", "--scenario", "barter", "--log-file", path}, &bytes.Buffer{})
	require.Error(t, err)

	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Contains(t, string(data), "marketsim failed")
	assert.Contains(t, string(data), "barter")
}
