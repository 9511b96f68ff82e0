package engine

import (
	"context"
	"fmt"

	"github.com/talgya/freight-market/internal/entropy"
)

// Execute runs one complete simulation with its own random stream and returns its
// KPI record. It is safe to call concurrently for different specs.
func Execute(ctx context.Context, spec RunSpec, params Params) (Record, error) {
	sim, err := NewSimulation(spec, params, entropy.NewStream(spec.Seed))
	if err != nil {
		return Record{}, err
	}
	if err := sim.Run(ctx); err != nil {
		return Record{}, fmt.Errorf("run %s seed %d: %w", spec.Scenario, spec.Seed, err)
	}
	return Summarize(sim), nil
}

// EquilibriumRequests estimates the per-round request count at which expected demand
// volume equals the population's nominal capacity.
func EquilibriumRequests(agentCount int, params Params, rng *entropy.Stream, samples int) float64 {
	if agentCount <= 0 || samples <= 0 {
		return 0
	}
	dist := rng.Beta(params.VolumeAlpha, params.VolumeBeta)
	total := 0.0
	for i := 0; i < samples; i++ {
		total += drawVolume(dist, params)
	}
	return ratio(float64(agentCount)*params.OperationalCapacity, total/float64(samples))
}
