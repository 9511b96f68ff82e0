// Population construction from an ordered strategy mix.
package engine

import (
	"fmt"
	"math"

	"github.com/talgya/freight-market/internal/agents"
)

// BuildPopulation creates n forwarders split by mix weight. Each share is rounded half
// to even, any shortfall is filled with rational forwarders, and any excess is cut.
// IDs follow mix order, which fixes bid submission order for the whole run.
func BuildPopulation(n int, mix Mix, containerCost float64, p Params) ([]*agents.Forwarder, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: agent count must be positive", ErrInvalidRunSpec)
	}
	if err := mix.Validate(); err != nil {
		return nil, err
	}

	total := 0.0
	for _, e := range mix {
		total += e.Weight
	}

	out := make([]*agents.Forwarder, 0, n)
	add := func(s agents.Strategy) error {
		f, err := agents.NewForwarder(agents.ForwarderID(len(out)), s, containerCost, p.InitialCapital, p.OperationalCapacity)
		if err != nil {
			return err
		}
		out = append(out, f)
		return nil
	}

	for _, e := range mix {
		count := int(math.RoundToEven(float64(n) * e.Weight / total))
		for i := 0; i < count; i++ {
			if err := add(e.Strategy); err != nil {
				return nil, err
			}
		}
	}
	for len(out) < n {
		if err := add(agents.StrategyRational); err != nil {
			return nil, err
		}
	}
	return out[:n], nil
}
