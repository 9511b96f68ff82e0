// Market rounds: demand generation, the primary reverse auction, the secondary
// wholesale auction, and end-of-round settlement.
package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/talgya/freight-market/internal/agents"
	"github.com/talgya/freight-market/internal/entropy"
)

// Log accumulates market totals over a run. It keeps no contract references, so
// round state is released at settlement.
type Log struct {
	TotalRequests   int     `json:"total_requests"`
	FailedRequests  int     `json:"failed_requests"`
	SoldRequests    int     `json:"sold_requests"`
	SoldVolume      float64 `json:"sold_volume"`  // cbm won in primary auctions
	SoldRevenue     float64 `json:"sold_revenue"` // Sum of primary clearing prices
	SecondaryTrades int     `json:"secondary_trades"`
	TotalUllage     float64 `json:"total_ullage"` // Unused container cbm
}

// recordSale adds a cleared primary contract to the totals.
func (l *Log) recordSale(c *agents.Contract) {
	l.SoldRequests++
	l.SoldVolume += c.Volume
	l.SoldRevenue += c.Revenue
}

// Trade is one cleared secondary sale.
type Trade struct {
	Contract *agents.Contract
	Seller   *agents.Forwarder
	Buyer    *agents.Forwarder
	Price    float64
}

// Settlement is one forwarder's end-of-round accounting.
type Settlement struct {
	Forwarder     agents.ForwarderID `json:"forwarder"`
	Strategy      agents.Strategy    `json:"strategy"`
	Load          float64            `json:"load"`
	Containers    int                `json:"containers"`
	ContainerCost float64            `json:"container_cost"`
	Revenue       float64            `json:"revenue"`
	SecondaryCash float64            `json:"secondary_cash"`
	Net           float64            `json:"net"`
	Ullage        float64            `json:"ullage"`
	CapitalBefore float64            `json:"capital_before"`
	CapitalAfter  float64            `json:"capital_after"`
}

// Market runs one scenario's rounds over a fixed forwarder population.
type Market struct {
	Scenario   Scenario
	Demand     Demand
	Forwarders []*agents.Forwarder

	// Round-scoped state, reallocated every round.
	Open    []*agents.Contract
	Listing *agents.Listing

	Log Log

	params  Params
	rng     *entropy.Stream
	volumes distuv.Beta
	drift   *entropy.Drift
	round   int
}

// NewMarket creates a market that draws all randomness from rng.
func NewMarket(forwarders []*agents.Forwarder, scenario Scenario, demand Demand, params Params, rng *entropy.Stream) *Market {
	m := &Market{
		Scenario:   scenario,
		Demand:     demand,
		Forwarders: forwarders,
		Listing:    &agents.Listing{},
		params:     params,
		rng:        rng,
		volumes:    rng.Beta(params.VolumeAlpha, params.VolumeBeta),
	}
	if params.DemandDrift > 0 {
		m.drift = entropy.NewDrift(int64(rng.Uint64()))
	}
	return m
}

func (m *Market) rules() agents.Rules {
	r := m.params.rules()
	r.Rand = m.rng
	return r
}

// drawVolume samples one shipment volume in cbm.
func drawVolume(dist distuv.Beta, p Params) float64 {
	v := math.Floor(dist.Rand() * p.VolumeScale)
	return math.Max(p.MinVolume, v)
}

// requestBase returns this round's request base, shifted by demand drift if enabled.
func (m *Market) requestBase() int {
	if m.drift == nil {
		return m.Demand.Base
	}
	shift := 1 + m.params.DemandDrift*m.drift.At(float64(m.round)/m.params.DriftPeriod)
	return int(math.Round(float64(m.Demand.Base) * shift))
}

// GenerateDemand replaces the open demand list with this round's shipment requests.
func (m *Market) GenerateDemand() []*agents.Contract {
	base := m.requestBase()
	n := m.rng.IntBetween(base-m.Demand.Spread, base+m.Demand.Spread)
	if n < 0 {
		n = 0
	}

	open := make([]*agents.Contract, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("R%d", m.Log.TotalRequests+i)
		open = append(open, agents.NewContract(id, drawVolume(m.volumes, m.params)))
	}
	m.Open = open
	m.Log.TotalRequests += n
	return open
}

// Participants returns the forwarders allowed to see primary demand this round.
// A primitive market with more forwarders than the access limit samples exactly
// AccessLimit of them, kept in population order.
func (m *Market) Participants() []*agents.Forwarder {
	limit := m.params.AccessLimit
	if m.Scenario != ScenarioPrimitive || len(m.Forwarders) <= limit {
		return m.Forwarders
	}
	idx := m.rng.Sample(len(m.Forwarders), limit)
	out := make([]*agents.Forwarder, len(idx))
	for i, j := range idx {
		out[i] = m.Forwarders[j]
	}
	return out
}

// RunPrimary awards every open request to its lowest bidder.
// It returns the number of requests sold and failed this round.
func (m *Market) RunPrimary() (sold, failed int) {
	participants := m.Participants()
	rules := m.rules()
	withSecondary := m.Scenario.Secondary()

	for _, req := range m.Open {
		for _, f := range participants {
			f.BidPrimary(req, withSecondary, rules)
		}

		win, ok := req.LowestBid()
		if !ok {
			m.Log.FailedRequests++
			failed++
			continue
		}
		req.Owner = win.Bidder
		req.Revenue = win.Price
		win.Bidder.Portfolio = append(win.Bidder.Portfolio, req)
		m.Log.recordSale(req)
		sold++
	}
	return sold, failed
}

// RunSecondary lists surplus capacity, collects bids, and clears every listing whose
// highest bid meets its reserve. Cash moves through round profit, not capital.
func (m *Market) RunSecondary() []Trade {
	m.Listing = &agents.Listing{}
	for _, f := range m.Forwarders {
		f.ListSurplus(m.Listing)
	}
	rules := m.rules()
	for _, f := range m.Forwarders {
		f.BidSecondary(m.Listing, rules)
	}

	var trades []Trade
	for _, item := range m.Listing.Items {
		win, ok := item.HighestBid()
		if !ok || win.Price < item.Reserve {
			continue
		}
		c, seller, buyer := item.Contract, item.Seller, win.Bidder
		if !removeContract(seller, c) {
			continue
		}

		seller.RoundProfit += win.Price
		buyer.RoundProfit -= win.Price
		buyer.Portfolio = append(buyer.Portfolio, c)
		c.Owner = buyer
		c.ResalePrice = win.Price

		m.Log.SecondaryTrades++
		trades = append(trades, Trade{Contract: c, Seller: seller, Buyer: buyer, Price: win.Price})
	}
	return trades
}

func removeContract(f *agents.Forwarder, c *agents.Contract) bool {
	for i, owned := range f.Portfolio {
		if owned == c {
			f.Portfolio = append(f.Portfolio[:i:i], f.Portfolio[i+1:]...)
			return true
		}
	}
	return false
}

// Finalize settles every forwarder's round: shipper revenue minus container spend plus
// secondary cash goes into capital, unused container space is logged as ullage, and
// round state is cleared.
func (m *Market) Finalize() []Settlement {
	capacity := m.params.ContainerCapacity
	out := make([]Settlement, 0, len(m.Forwarders))

	for _, f := range m.Forwarders {
		load := f.Load()
		containers := agents.Containers(load, capacity)
		cost := float64(containers) * f.ContainerCost
		revenue := 0.0
		for _, c := range f.Portfolio {
			revenue += c.Revenue
		}
		net := revenue - cost + f.RoundProfit
		ullage := float64(containers)*capacity - load

		s := Settlement{
			Forwarder:     f.ID,
			Strategy:      f.Strategy,
			Load:          load,
			Containers:    containers,
			ContainerCost: cost,
			Revenue:       revenue,
			SecondaryCash: f.RoundProfit,
			Net:           net,
			Ullage:        ullage,
			CapitalBefore: f.Capital,
		}
		f.Capital += net
		s.CapitalAfter = f.Capital
		m.Log.TotalUllage += ullage

		f.RoundProfit = 0
		f.Portfolio = nil
		out = append(out, s)
	}

	m.Open = nil
	m.Listing = &agents.Listing{}
	m.round++
	return out
}
