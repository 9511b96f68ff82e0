package agents

import "math"

// Bid is one price offer attached to a contract or a sale item.
type Bid struct {
	Bidder *Forwarder
	Price  float64
}

// Contract is one shipment request and its sale state for the round it was created in.
type Contract struct {
	ID     string  `json:"id"`
	Volume float64 `json:"volume"` // cbm

	// Revenue is the shipper price set when the primary auction clears.
	Revenue float64 `json:"revenue"`
	// ResalePrice is the price paid in a secondary trade, 0 if never resold.
	ResalePrice float64 `json:"resale_price,omitempty"`

	Owner *Forwarder `json:"-"`
	Bids  []Bid      `json:"-"` // Collected during the current auction pass, in submission order
}

// NewContract creates an unsold contract.
func NewContract(id string, volume float64) *Contract {
	return &Contract{ID: id, Volume: volume}
}

// Sold reports whether the contract has cleared a primary auction.
func (c *Contract) Sold() bool {
	return c.Owner != nil
}

// LowestBid returns the cheapest bid. Among equal prices the earliest submission wins.
func (c *Contract) LowestBid() (Bid, bool) {
	if len(c.Bids) == 0 {
		return Bid{}, false
	}
	best := c.Bids[0]
	for _, b := range c.Bids[1:] {
		if b.Price < best.Price {
			best = b
		}
	}
	return best, true
}

// ValueDensity is revenue per cbm. Zero-volume contracts rank as infinitely valuable.
func (c *Contract) ValueDensity() float64 {
	if c.Volume <= 0 {
		return math.Inf(1)
	}
	return c.Revenue / c.Volume
}
