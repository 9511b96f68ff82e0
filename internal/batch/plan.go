// Package batch runs parameter sweeps: the cross product of scenarios, container costs,
// request levels and forwarder counts, each cell repeated for statistical averaging.
package batch

import (
	"errors"
	"fmt"

	"github.com/talgya/freight-market/internal/engine"
)

// ErrEmptyPlan is returned when a sweep has no cells or no iterations.
var ErrEmptyPlan = errors.New("empty sweep plan")

// Plan describes a sweep.
type Plan struct {
	Scenarios  []engine.Scenario
	Costs      []float64
	Requests   []int
	Forwarders []int

	Spread     int // Request count spread around each level
	Iterations int // Repetitions per cell
	Mix        engine.Mix
	Seed       uint64 // Sweep seed; every run seed is derived from it
	Params     engine.Params
}

// Cell is one configuration of the sweep grid.
type Cell struct {
	Index      int             `json:"index"`
	Scenario   engine.Scenario `json:"scenario"`
	Cost       float64         `json:"container_cost"`
	Requests   int             `json:"requests"`
	Forwarders int             `json:"forwarders"`
}

// Validate checks that the plan can be run.
func (p Plan) Validate() error {
	if len(p.Scenarios) == 0 || len(p.Costs) == 0 || len(p.Requests) == 0 || len(p.Forwarders) == 0 {
		return fmt.Errorf("%w: every grid dimension needs at least one value", ErrEmptyPlan)
	}
	if p.Iterations <= 0 {
		return fmt.Errorf("%w: iterations must be positive", ErrEmptyPlan)
	}
	if err := p.Params.Validate(); err != nil {
		return err
	}
	if err := p.Mix.Validate(); err != nil {
		return err
	}
	for _, c := range p.Cells() {
		if err := p.Spec(c, 0).Validate(); err != nil {
			return fmt.Errorf("cell %d: %w", c.Index, err)
		}
	}
	return nil
}

// Cells enumerates the grid with scenario outermost and forwarder count innermost.
func (p Plan) Cells() []Cell {
	cells := make([]Cell, 0, len(p.Scenarios)*len(p.Costs)*len(p.Requests)*len(p.Forwarders))
	for _, s := range p.Scenarios {
		for _, cost := range p.Costs {
			for _, req := range p.Requests {
				for _, fw := range p.Forwarders {
					cells = append(cells, Cell{
						Index:      len(cells),
						Scenario:   s,
						Cost:       cost,
						Requests:   req,
						Forwarders: fw,
					})
				}
			}
		}
	}
	return cells
}

// Runs returns the total number of simulations in the sweep.
func (p Plan) Runs() int {
	return len(p.Scenarios) * len(p.Costs) * len(p.Requests) * len(p.Forwarders) * p.Iterations
}

// Spec builds the run specification for one iteration of a cell.
func (p Plan) Spec(c Cell, iteration int) engine.RunSpec {
	return engine.RunSpec{
		Scenario:      c.Scenario,
		Demand:        engine.Demand{Base: c.Requests, Spread: p.Spread},
		ContainerCost: c.Cost,
		AgentCount:    c.Forwarders,
		Mix:           p.Mix,
		Seed:          DeriveSeed(p.Seed, c.Index, iteration),
	}
}

// DeriveSeed mixes the sweep seed with a cell index and iteration into an independent
// run seed (splitmix64 finalizer), so neighbouring runs get uncorrelated streams.
func DeriveSeed(base uint64, cell, iteration int) uint64 {
	z := base + uint64(cell)*0x9e3779b97f4a7c15 + uint64(iteration)*0xd1b54a32d192ed03
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
