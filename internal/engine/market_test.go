package engine

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/freight-market/internal/agents"
	"github.com/talgya/freight-market/internal/entropy"
)

func newTestMarket(t *testing.T, scenario Scenario, n int, demand Demand, seed uint64) *Market {
	t.Helper()
	fs, err := BuildPopulation(n, DefaultMix(), 1000, DefaultParams())
	require.NoError(t, err)
	return NewMarket(fs, scenario, demand, DefaultParams(), entropy.NewStream(seed))
}

func give(f *agents.Forwarder, id string, volume, revenue float64) *agents.Contract {
	c := agents.NewContract(id, volume)
	c.Revenue = revenue
	c.Owner = f
	f.Portfolio = append(f.Portfolio, c)
	return c
}

func TestGenerateDemand(t *testing.T) {
	m := newTestMarket(t, ScenarioOpen, 10, Demand{Base: 25, Spread: 5}, 1)
	p := DefaultParams()

	total := 0
	for round := 0; round < 20; round++ {
		open := m.GenerateDemand()
		require.GreaterOrEqual(t, len(open), 20)
		require.LessOrEqual(t, len(open), 30)
		for i, c := range open {
			assert.Equal(t, "R"+strconv.Itoa(total+i), c.ID)
			assert.GreaterOrEqual(t, c.Volume, p.MinVolume)
			assert.LessOrEqual(t, c.Volume, p.VolumeScale)
			assert.Equal(t, c.Volume, float64(int(c.Volume)))
			assert.False(t, c.Sold())
		}
		total += len(open)
		m.Finalize()
	}
	assert.Equal(t, total, m.Log.TotalRequests)
}

func TestGenerateDemandNeverNegative(t *testing.T) {
	m := newTestMarket(t, ScenarioOpen, 3, Demand{Base: 0, Spread: 5}, 2)
	for i := 0; i < 50; i++ {
		assert.GreaterOrEqual(t, len(m.GenerateDemand()), 0)
	}
}

func TestDemandDriftShiftsBase(t *testing.T) {
	p := DefaultParams()
	p.DemandDrift = 0.5
	fs, err := BuildPopulation(5, DefaultMix(), 1000, p)
	require.NoError(t, err)
	m := NewMarket(fs, ScenarioOpen, Demand{Base: 100, Spread: 0}, p, entropy.NewStream(3))

	seen := map[int]bool{}
	for i := 0; i < 30; i++ {
		n := len(m.GenerateDemand())
		require.GreaterOrEqual(t, n, 50)
		require.LessOrEqual(t, n, 150)
		seen[n] = true
		m.Finalize()
	}
	assert.Greater(t, len(seen), 1)
}

func TestParticipants(t *testing.T) {
	m := newTestMarket(t, ScenarioPrimitive, 10, Demand{}, 4)
	for i := 0; i < 50; i++ {
		ps := m.Participants()
		require.Len(t, ps, 3)
		assert.Less(t, ps[0].ID, ps[1].ID)
		assert.Less(t, ps[1].ID, ps[2].ID)
	}

	small := newTestMarket(t, ScenarioPrimitive, 3, Demand{}, 4)
	assert.Len(t, small.Participants(), 3)

	open := newTestMarket(t, ScenarioOpen, 10, Demand{}, 4)
	assert.Len(t, open.Participants(), 10)
}

func TestPrimitivePrimaryRestrictsBidders(t *testing.T) {
	m := newTestMarket(t, ScenarioPrimitive, 10, Demand{Base: 40, Spread: 0}, 5)
	for round := 0; round < 10; round++ {
		m.GenerateDemand()
		m.RunPrimary()
		bidders := map[agents.ForwarderID]bool{}
		for _, c := range m.Open {
			for _, b := range c.Bids {
				bidders[b.Bidder.ID] = true
			}
		}
		assert.LessOrEqual(t, len(bidders), 3)
		assert.NotEmpty(t, bidders)
		m.Finalize()
	}
}

func TestPrimaryAwardsLowestBid(t *testing.T) {
	for _, scenario := range Scenarios {
		t.Run(scenario.String(), func(t *testing.T) {
			m := newTestMarket(t, scenario, 10, Demand{Base: 60, Spread: 5}, 6)
			m.GenerateDemand()
			sold, failed := m.RunPrimary()
			assert.Equal(t, len(m.Open), sold+failed)
			assert.Equal(t, failed, m.Log.FailedRequests)
			assert.Equal(t, sold, m.Log.SoldRequests)

			for _, c := range m.Open {
				if len(c.Bids) == 0 {
					assert.False(t, c.Sold())
					continue
				}
				low := c.Bids[0]
				for _, b := range c.Bids {
					assert.GreaterOrEqual(t, b.Price, c.Revenue)
					if b.Price < low.Price {
						low = b
					}
				}
				assert.Equal(t, low.Price, c.Revenue)
				assert.Same(t, low.Bidder, c.Owner)
				assert.Contains(t, c.Owner.Portfolio, c)
			}
		})
	}
}

func TestPrimaryRespectsOverloadCap(t *testing.T) {
	p := DefaultParams()
	for seed := uint64(1); seed <= 5; seed++ {
		m := newTestMarket(t, ScenarioOpen, 5, Demand{Base: 150, Spread: 5}, seed)
		m.GenerateDemand()
		m.RunPrimary()
		for _, f := range m.Forwarders {
			assert.LessOrEqual(t, f.Load(), p.OperationalCapacity*p.OverloadFactor)
		}
		// Heavy oversupply of demand leaves requests unsold.
		assert.Positive(t, m.Log.FailedRequests)
	}
}

func TestSecondaryTradeClears(t *testing.T) {
	seller, err := agents.NewForwarder(0, agents.StrategyRational, 1000, 3000, 52)
	require.NoError(t, err)
	buyer, err := agents.NewForwarder(1, agents.StrategyAggressive, 1000, 3000, 52)
	require.NoError(t, err)

	give(seller, "A", 40, 4000)          // 100 per cbm
	listed := give(seller, "B", 20, 1600) // 80 per cbm, the one to go
	give(buyer, "C", 5, 300)

	m := NewMarket([]*agents.Forwarder{seller, buyer}, ScenarioEnabled, Demand{}, DefaultParams(), entropy.NewStream(7))
	trades := m.RunSecondary()

	require.Len(t, m.Listing.Items, 1)
	item := m.Listing.Items[0]
	assert.Same(t, listed, item.Contract)
	assert.InDelta(t, 1600*0.85, item.Reserve, 1e-9)

	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Same(t, seller, tr.Seller)
	assert.Same(t, buyer, tr.Buyer)
	assert.GreaterOrEqual(t, tr.Price, item.Reserve)
	assert.Equal(t, 1, m.Log.SecondaryTrades)

	assert.Same(t, buyer, listed.Owner)
	assert.Equal(t, 1600.0, listed.Revenue)
	assert.Equal(t, tr.Price, listed.ResalePrice)
	assert.NotContains(t, seller.Portfolio, listed)
	assert.Contains(t, buyer.Portfolio, listed)
	assert.Equal(t, tr.Price, seller.RoundProfit)
	assert.Equal(t, -tr.Price, buyer.RoundProfit)

	// Capital only moves at settlement.
	assert.Equal(t, 3000.0, seller.Capital)
	assert.Equal(t, 3000.0, buyer.Capital)

	settlements := m.Finalize()
	require.Len(t, settlements, 2)

	// Seller: 40 cbm in 2 containers, keeps 4000, plus resale cash.
	s := settlements[0]
	assert.Equal(t, 2, s.Containers)
	assert.InDelta(t, 4000-2000+tr.Price, s.Net, 1e-9)
	assert.InDelta(t, 3000+s.Net, seller.Capital, 1e-9)

	// Buyer: 25 cbm in 1 container, collects 1900 shipper revenue, pays the resale price.
	b := settlements[1]
	assert.Equal(t, 1, b.Containers)
	assert.InDelta(t, 1900-1000-tr.Price, b.Net, 1e-9)
	assert.InDelta(t, 1.0, b.Ullage, 1e-9)
}

func TestSecondaryNoBidNoTrade(t *testing.T) {
	seller, err := agents.NewForwarder(0, agents.StrategyRational, 1000, 3000, 52)
	require.NoError(t, err)
	buyer, err := agents.NewForwarder(1, agents.StrategyConservative, 1000, 3000, 52)
	require.NoError(t, err)

	give(seller, "A", 40, 4000)
	listed := give(seller, "B", 20, 1600)
	// Empty buyer: any purchase costs a container, conservative abstains.

	m := NewMarket([]*agents.Forwarder{seller, buyer}, ScenarioEnabled, Demand{}, DefaultParams(), entropy.NewStream(8))
	trades := m.RunSecondary()

	assert.Empty(t, trades)
	require.Len(t, m.Listing.Items, 1)
	assert.Empty(t, m.Listing.Items[0].Bids)
	assert.Same(t, seller, listed.Owner)
	assert.Contains(t, seller.Portfolio, listed)
	assert.Zero(t, seller.RoundProfit)
	assert.Zero(t, m.Log.SecondaryTrades)
}

func TestSecondaryReserveAlwaysHolds(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		m := newTestMarket(t, ScenarioEnabled, 10, Demand{Base: 60, Spread: 5}, seed)
		for round := 0; round < 10; round++ {
			m.GenerateDemand()
			m.RunPrimary()
			trades := m.RunSecondary()
			for _, item := range m.Listing.Items {
				ratio := agents.ProfileOf(item.Seller.Strategy).ReserveRatio
				assert.InDelta(t, item.Contract.Revenue*ratio, item.Reserve, 1e-9)
				assert.Contains(t, []float64{0.75, 0.85}, ratio)
			}
			for _, tr := range trades {
				assert.NotSame(t, tr.Seller, tr.Buyer)
				assert.GreaterOrEqual(t, tr.Price, tr.Contract.Revenue*agents.ProfileOf(tr.Seller.Strategy).ReserveRatio)
			}
			m.Finalize()
		}
	}
}

func TestFinalizeClearsRoundState(t *testing.T) {
	m := newTestMarket(t, ScenarioEnabled, 10, Demand{Base: 60, Spread: 5}, 9)
	m.GenerateDemand()
	m.RunPrimary()
	m.RunSecondary()

	ullageBefore := m.Log.TotalUllage
	settlements := m.Finalize()
	require.Len(t, settlements, 10)

	sum := 0.0
	for i, f := range m.Forwarders {
		s := settlements[i]
		assert.Empty(t, f.Portfolio)
		assert.Zero(t, f.RoundProfit)
		assert.GreaterOrEqual(t, s.ContainerCost, 0.0)
		assert.GreaterOrEqual(t, s.Ullage, 0.0)
		assert.Less(t, s.Ullage, DefaultParams().ContainerCapacity)
		sum += s.Ullage
	}
	assert.InDelta(t, ullageBefore+sum, m.Log.TotalUllage, 1e-9)
	assert.Nil(t, m.Open)
	assert.Empty(t, m.Listing.Items)
}

func TestLogTotalsFollowSettlements(t *testing.T) {
	m := newTestMarket(t, ScenarioEnabled, 8, Demand{Base: 40, Spread: 5}, 17)

	for round := 0; round < 5; round++ {
		volumeBefore := m.Log.SoldVolume
		revenueBefore := m.Log.SoldRevenue

		m.GenerateDemand()
		sold, _ := m.RunPrimary()
		cleared := 0.0
		for _, c := range m.Open {
			if c.Sold() {
				cleared += c.Revenue
			}
		}
		m.RunSecondary()
		settlements := m.Finalize()

		// Resale moves contracts between forwarders but never changes the volume held.
		load := 0.0
		for _, s := range settlements {
			load += s.Load
		}
		assert.InDelta(t, load, m.Log.SoldVolume-volumeBefore, 1e-9)
		assert.InDelta(t, cleared, m.Log.SoldRevenue-revenueBefore, 1e-9)
		assert.Positive(t, sold)
	}
	assert.Equal(t, m.Log.TotalRequests, m.Log.SoldRequests+m.Log.FailedRequests)
}
