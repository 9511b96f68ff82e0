// Simulation ties a forwarder population to a market and runs it for a fixed horizon.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/freight-market/internal/agents"
	"github.com/talgya/freight-market/internal/entropy"
)

// RoundReport summarizes one completed round.
type RoundReport struct {
	Round       int          `json:"round"`
	Requests    int          `json:"requests"`
	Sold        int          `json:"sold"`
	Failed      int          `json:"failed"`
	Trades      []Trade      `json:"-"`
	Settlements []Settlement `json:"settlements"`
}

// Simulation holds the complete state of one run.
type Simulation struct {
	Spec       RunSpec
	Params     Params
	Forwarders []*agents.Forwarder
	Market     *Market

	// Capitals holds every forwarder's capital after each round, one row per round.
	Capitals [][]float64

	Round int // Rounds completed
}

// NewSimulation builds the population and market for spec. All randomness in the run
// comes from rng.
func NewSimulation(spec RunSpec, params Params, rng *entropy.Stream) (*Simulation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random stream", ErrInvalidRunSpec)
	}

	forwarders, err := BuildPopulation(spec.AgentCount, spec.Mix, spec.ContainerCost, params)
	if err != nil {
		return nil, err
	}

	return &Simulation{
		Spec:       spec,
		Params:     params,
		Forwarders: forwarders,
		Market:     NewMarket(forwarders, spec.Scenario, spec.Demand, params, rng),
		Capitals:   make([][]float64, 0, params.Rounds),
	}, nil
}

// Done reports whether the horizon has been consumed.
func (s *Simulation) Done() bool {
	return s.Round >= s.Params.Rounds
}

// Step runs one round: demand, primary auction, secondary auction when enabled,
// then settlement.
func (s *Simulation) Step() RoundReport {
	m := s.Market
	requests := len(m.GenerateDemand())
	sold, failed := m.RunPrimary()

	var trades []Trade
	if s.Spec.Scenario.Secondary() {
		trades = m.RunSecondary()
	}

	settlements := m.Finalize()

	capitals := make([]float64, len(s.Forwarders))
	for i, f := range s.Forwarders {
		capitals[i] = f.Capital
	}
	s.Capitals = append(s.Capitals, capitals)
	s.Round++

	slog.Debug("round settled",
		"scenario", s.Spec.Scenario,
		"seed", s.Spec.Seed,
		"round", s.Round,
		"requests", requests,
		"sold", sold,
		"failed", failed,
		"trades", len(trades),
	)

	return RoundReport{
		Round:       s.Round,
		Requests:    requests,
		Sold:        sold,
		Failed:      failed,
		Trades:      trades,
		Settlements: settlements,
	}
}

// Run steps through the remaining rounds. Cancellation is checked between rounds;
// an abandoned run leaves nothing outside its own state modified.
func (s *Simulation) Run(ctx context.Context) error {
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
	return nil
}
