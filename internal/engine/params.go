// Run configuration: market constants, scenarios, and the per-run specification
// the batch driver hands to Execute.
package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/talgya/freight-market/internal/agents"
)

var (
	// ErrInvalidParams is returned when market constants are out of range.
	ErrInvalidParams = errors.New("invalid params")

	// ErrInvalidRunSpec is returned when a run specification cannot be simulated.
	ErrInvalidRunSpec = errors.New("invalid run spec")

	// ErrEmptyMix is returned when a strategy mix has no positive weight.
	ErrEmptyMix = errors.New("empty strategy mix")

	// ErrUnknownScenario is returned for a scenario tag outside the closed set.
	ErrUnknownScenario = errors.New("unknown scenario")
)

// Params holds the constants shared by every run. Values are copied into each
// Simulation so concurrent runs never share mutable configuration.
type Params struct {
	ContainerCapacity   float64 `yaml:"container_capacity" json:"container_capacity"`     // cbm per container
	Rounds              int     `yaml:"rounds" json:"rounds"`                             // Rounds per run
	InitialCapital      float64 `yaml:"initial_capital" json:"initial_capital"`           // Starting capital per forwarder
	OperationalCapacity float64 `yaml:"operational_capacity" json:"operational_capacity"` // Nominal cbm per forwarder
	AccessLimit         int     `yaml:"access_limit" json:"access_limit"`                 // Forwarders reachable in a primitive market
	Confidence          float64 `yaml:"confidence" json:"confidence"`                     // Discount weight in enabled markets
	OverloadFactor      float64 `yaml:"overload_factor" json:"overload_factor"`           // Primary load cap as a multiple of capacity

	// Shipment volume = max(MinVolume, floor(Beta(VolumeAlpha, VolumeBeta) * VolumeScale)).
	VolumeAlpha float64 `yaml:"volume_alpha" json:"volume_alpha"`
	VolumeBeta  float64 `yaml:"volume_beta" json:"volume_beta"`
	VolumeScale float64 `yaml:"volume_scale" json:"volume_scale"`
	MinVolume   float64 `yaml:"min_volume" json:"min_volume"`

	// DemandDrift scales the per-round request base by 1 + DemandDrift*noise. 0 disables it.
	DemandDrift float64 `yaml:"demand_drift" json:"demand_drift"`
	DriftPeriod float64 `yaml:"drift_period" json:"drift_period"` // Rounds per unit of noise input
}

// DefaultParams returns the standard market constants.
func DefaultParams() Params {
	return Params{
		ContainerCapacity:   26,
		Rounds:              50,
		InitialCapital:      3000,
		OperationalCapacity: 52,
		AccessLimit:         3,
		Confidence:          0.8,
		OverloadFactor:      1.2,
		VolumeAlpha:         1,
		VolumeBeta:          15,
		VolumeScale:         30,
		MinVolume:           3,
		DemandDrift:         0,
		DriftPeriod:         10,
	}
}

// Validate checks that the constants describe a runnable market.
func (p Params) Validate() error {
	switch {
	case p.ContainerCapacity <= 0:
		return fmt.Errorf("%w: container capacity must be positive", ErrInvalidParams)
	case p.Rounds <= 0:
		return fmt.Errorf("%w: rounds must be positive", ErrInvalidParams)
	case p.OperationalCapacity <= 0:
		return fmt.Errorf("%w: operational capacity must be positive", ErrInvalidParams)
	case p.AccessLimit <= 0:
		return fmt.Errorf("%w: access limit must be positive", ErrInvalidParams)
	case p.Confidence < 0 || p.Confidence > 1:
		return fmt.Errorf("%w: confidence must be within [0,1]", ErrInvalidParams)
	case p.OverloadFactor < 1:
		return fmt.Errorf("%w: overload factor must be at least 1", ErrInvalidParams)
	case p.VolumeAlpha <= 0 || p.VolumeBeta <= 0:
		return fmt.Errorf("%w: volume distribution shape must be positive", ErrInvalidParams)
	case p.VolumeScale <= 0 || p.MinVolume <= 0:
		return fmt.Errorf("%w: volume scale and minimum must be positive", ErrInvalidParams)
	case p.DemandDrift < 0 || p.DemandDrift >= 1:
		return fmt.Errorf("%w: demand drift must be within [0,1)", ErrInvalidParams)
	case p.DemandDrift > 0 && p.DriftPeriod <= 0:
		return fmt.Errorf("%w: drift period must be positive", ErrInvalidParams)
	}
	return nil
}

// rules derives the decision constants a forwarder needs.
func (p Params) rules() agents.Rules {
	return agents.Rules{
		ContainerCapacity: p.ContainerCapacity,
		OverloadFactor:    p.OverloadFactor,
		Confidence:        p.Confidence,
	}
}

// Scenario selects the market design.
type Scenario uint8

const (
	ScenarioPrimitive Scenario = iota + 1 // Restricted primary access, no resale
	ScenarioOpen                          // All forwarders see demand, no resale
	ScenarioEnabled                       // All forwarders plus the secondary auction
)

// Scenarios lists every scenario in sweep order.
var Scenarios = []Scenario{ScenarioPrimitive, ScenarioOpen, ScenarioEnabled}

func (s Scenario) String() string {
	switch s {
	case ScenarioPrimitive:
		return "primitive"
	case ScenarioOpen:
		return "open"
	case ScenarioEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("scenario(%d)", uint8(s))
	}
}

// Secondary reports whether the scenario runs the secondary auction.
func (s Scenario) Secondary() bool {
	return s == ScenarioEnabled
}

// ParseScenario converts a tag into a Scenario. The long market names are accepted too.
func ParseScenario(tag string) (Scenario, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "primitive", "primitive_market":
		return ScenarioPrimitive, nil
	case "open", "b2c_open_market":
		return ScenarioOpen, nil
	case "enabled", "b2b_enabled_market":
		return ScenarioEnabled, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScenario, tag)
}

// MarshalText implements encoding.TextMarshaler.
func (s Scenario) MarshalText() ([]byte, error) {
	if s < ScenarioPrimitive || s > ScenarioEnabled {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScenario, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scenario) UnmarshalText(b []byte) error {
	v, err := ParseScenario(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Demand sets the per-round request count: uniform in [Base-Spread, Base+Spread].
type Demand struct {
	Base   int `yaml:"base" json:"base"`
	Spread int `yaml:"spread" json:"spread"`
}

// MixEntry is one strategy and its relative weight in a population.
type MixEntry struct {
	Strategy agents.Strategy `yaml:"strategy" json:"strategy"`
	Weight   float64         `yaml:"weight" json:"weight"`
}

// Mix is an ordered strategy ratio. Order decides forwarder IDs and therefore
// bid submission order.
type Mix []MixEntry

// DefaultMix is 5 rational : 3 aggressive : 2 conservative.
func DefaultMix() Mix {
	return Mix{
		{Strategy: agents.StrategyRational, Weight: 5},
		{Strategy: agents.StrategyAggressive, Weight: 3},
		{Strategy: agents.StrategyConservative, Weight: 2},
	}
}

// Validate rejects unknown strategies and mixes without positive weight.
func (m Mix) Validate() error {
	total := 0.0
	for _, e := range m {
		if !e.Strategy.Valid() {
			return fmt.Errorf("%w: %d", agents.ErrUnknownStrategy, uint8(e.Strategy))
		}
		if e.Weight < 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return fmt.Errorf("%w: weight for %s must be a finite non-negative number", ErrInvalidRunSpec, e.Strategy)
		}
		total += e.Weight
	}
	if total <= 0 {
		return ErrEmptyMix
	}
	return nil
}

// RunSpec fully describes one simulation run.
type RunSpec struct {
	Scenario      Scenario `json:"scenario"`
	Demand        Demand   `json:"demand"`
	ContainerCost float64  `json:"container_cost"`
	AgentCount    int      `json:"agent_count"`
	Mix           Mix      `json:"mix"`
	Seed          uint64   `json:"seed"`
}

// Validate checks the run specification.
func (r RunSpec) Validate() error {
	if r.Scenario < ScenarioPrimitive || r.Scenario > ScenarioEnabled {
		return fmt.Errorf("%w: %w: %d", ErrInvalidRunSpec, ErrUnknownScenario, uint8(r.Scenario))
	}
	if r.Demand.Base < 0 || r.Demand.Spread < 0 {
		return fmt.Errorf("%w: demand base and spread must be non-negative", ErrInvalidRunSpec)
	}
	if r.ContainerCost <= 0 {
		return fmt.Errorf("%w: container cost must be positive", ErrInvalidRunSpec)
	}
	if r.AgentCount <= 0 {
		return fmt.Errorf("%w: agent count must be positive", ErrInvalidRunSpec)
	}
	return r.Mix.Validate()
}
