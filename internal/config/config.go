// Package config loads sweep configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/freight-market/internal/batch"
	"github.com/talgya/freight-market/internal/engine"
)

// Config holds everything a sweep needs. Load starts from Default, so a file only
// has to name what it changes.
type Config struct {
	Params engine.Params `yaml:"params"`

	Sweep struct {
		Scenarios  []engine.Scenario `yaml:"scenarios"`
		Costs      []float64         `yaml:"costs"`
		Requests   []int             `yaml:"requests"`
		Forwarders []int             `yaml:"forwarders"`
		Spread     int               `yaml:"spread"`
	} `yaml:"sweep"`

	Mix        engine.Mix `yaml:"mix"`
	Iterations int        `yaml:"iterations"`
	Seed       uint64     `yaml:"seed"`
	Workers    int        `yaml:"workers"` // 0 means one per CPU

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// FieldError reports the configuration field that failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Default reproduces the standard sweep: every scenario, container costs
// 1000/1500/2000, 25 to 200 requests in steps of 25, 10/15/20 forwarders,
// 50 iterations per cell.
func Default() *Config {
	var cfg Config
	cfg.Params = engine.DefaultParams()
	cfg.Sweep.Scenarios = append([]engine.Scenario(nil), engine.Scenarios...)
	cfg.Sweep.Costs = []float64{1000, 1500, 2000}
	for r := 25; r <= 200; r += 25 {
		cfg.Sweep.Requests = append(cfg.Sweep.Requests, r)
	}
	cfg.Sweep.Forwarders = []int{10, 15, 20}
	cfg.Sweep.Spread = 5
	cfg.Mix = engine.DefaultMix()
	cfg.Iterations = 50
	cfg.Seed = 42
	cfg.Store.Path = "data/marketsim.db"
	cfg.Logging.Level = "info"
	return &cfg
}

// Load reads path over Default, applies environment overrides and validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrideWithEnv applies MARKETSIM_DB, MARKETSIM_WORKERS and MARKETSIM_LOG_LEVEL.
func overrideWithEnv(cfg *Config) error {
	if path := os.Getenv("MARKETSIM_DB"); path != "" {
		cfg.Store.Path = path
	}
	if v := os.Getenv("MARKETSIM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &FieldError{Field: "workers", Err: err}
		}
		cfg.Workers = n
	}
	if level := os.Getenv("MARKETSIM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	return nil
}

var errNotPositive = errors.New("must be positive")

// Validate checks the configuration and the sweep plan it describes.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return &FieldError{Field: "workers", Err: errors.New("must not be negative")}
	}
	if c.Iterations <= 0 {
		return &FieldError{Field: "iterations", Err: errNotPositive}
	}
	if c.Sweep.Spread < 0 {
		return &FieldError{Field: "sweep.spread", Err: errors.New("must not be negative")}
	}
	for _, v := range c.Sweep.Costs {
		if v <= 0 {
			return &FieldError{Field: "sweep.costs", Err: errNotPositive}
		}
	}
	for _, v := range c.Sweep.Forwarders {
		if v <= 0 {
			return &FieldError{Field: "sweep.forwarders", Err: errNotPositive}
		}
	}
	for _, v := range c.Sweep.Requests {
		if v < 0 {
			return &FieldError{Field: "sweep.requests", Err: errors.New("must not be negative")}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return &FieldError{Field: "logging.level", Err: fmt.Errorf("unknown level %q", c.Logging.Level)}
	}
	if err := c.Params.Validate(); err != nil {
		return &FieldError{Field: "params", Err: err}
	}
	if err := c.Mix.Validate(); err != nil {
		return &FieldError{Field: "mix", Err: err}
	}
	if err := c.Plan().Validate(); err != nil {
		return &FieldError{Field: "sweep", Err: err}
	}
	return nil
}

// Plan converts the configuration into a batch plan.
func (c *Config) Plan() batch.Plan {
	return batch.Plan{
		Scenarios:  c.Sweep.Scenarios,
		Costs:      c.Sweep.Costs,
		Requests:   c.Sweep.Requests,
		Forwarders: c.Sweep.Forwarders,
		Spread:     c.Sweep.Spread,
		Iterations: c.Iterations,
		Mix:        c.Mix,
		Seed:       c.Seed,
		Params:     c.Params,
	}
}
