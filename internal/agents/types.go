// Package agents provides the freight forwarder model: contracts, strategy profiles,
// and the pricing and resale decisions each forwarder takes during a round.
package agents

import (
	"fmt"

	"github.com/talgya/freight-market/internal/entropy"
)

// ForwarderID identifies a forwarder within one run.
type ForwarderID int

// Forwarder is a freight-forwarding agent competing for shipment contracts.
type Forwarder struct {
	ID       ForwarderID `json:"id"`
	Strategy Strategy    `json:"strategy"`

	// ContainerCost is the price of one container.
	ContainerCost float64 `json:"container_cost"`
	TargetMargin  float64 `json:"target_margin"`

	Capital  float64 `json:"capital"`
	Capacity float64 `json:"capacity"` // Nominal operating capacity in cbm

	// Portfolio holds the contracts owned during the current round only.
	Portfolio []*Contract `json:"-"`
	// RoundProfit accrues secondary market cash until the round is settled.
	RoundProfit float64 `json:"-"`
}

// NewForwarder creates a forwarder with an empty portfolio.
func NewForwarder(id ForwarderID, strategy Strategy, containerCost, capital, capacity float64) (*Forwarder, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("forwarder %d: %w: %d", id, ErrUnknownStrategy, uint8(strategy))
	}
	return &Forwarder{
		ID:            id,
		Strategy:      strategy,
		ContainerCost: containerCost,
		TargetMargin:  ProfileOf(strategy).TargetMargin,
		Capital:       capital,
		Capacity:      capacity,
	}, nil
}

// String implements fmt.Stringer.
func (f *Forwarder) String() string {
	return fmt.Sprintf("Fwd-%d(%.3s)", f.ID, f.Strategy)
}

// Rules carries the market constants and the random stream a decision needs.
type Rules struct {
	ContainerCapacity float64 // cbm per container
	OverloadFactor    float64 // Max primary load as a multiple of capacity
	Confidence        float64 // Weight of the competitive discount in enabled markets
	Rand              *entropy.Stream
}
