// Forwarder decisions: primary bidding, surplus listing, and secondary bidding.
package agents

import (
	"math"
	"slices"
)

const (
	// Flat per-cbm estimate inflation when no container slack absorbs the volume.
	flatInflation = 1.1
	// Flat per-cbm estimate inflation used when a secondary market exists.
	flatInflationSecondary = 1.2
	// Upper bound of the competitive discount before confidence weighting.
	maxDiscount = 0.05
)

// Load returns the total volume in the portfolio.
func (f *Forwarder) Load() float64 {
	total := 0.0
	for _, c := range f.Portfolio {
		total += c.Volume
	}
	return total
}

// Containers returns how many containers a load needs.
func Containers(load, containerCapacity float64) int {
	if load <= 0 || containerCapacity <= 0 {
		return 0
	}
	return int(math.Ceil(load / containerCapacity))
}

// MarginalContainerCost is the extra container spend caused by adding volume to the
// current load. Volume that fits into slack of an already committed container is free.
func (f *Forwarder) MarginalContainerCost(added, containerCapacity float64) float64 {
	load := f.Load()
	before := Containers(load, containerCapacity)
	after := Containers(load+added, containerCapacity)
	return float64(after-before) * f.ContainerCost
}

// BidPrimary appends a bid to c unless winning it would push the load past the
// overload limit. withSecondary selects margin-targeted pricing.
func (f *Forwarder) BidPrimary(c *Contract, withSecondary bool, r Rules) {
	if f.Load()+c.Volume > f.Capacity*r.OverloadFactor {
		return
	}

	profile := ProfileOf(f.Strategy)
	marginal := f.MarginalContainerCost(c.Volume, r.ContainerCapacity)
	perCBM := f.ContainerCost / r.ContainerCapacity

	var price float64
	if !withSecondary {
		base := marginal
		if marginal == 0 {
			base = c.Volume * perCBM * flatInflation
		}
		price = base * r.Rand.Uniform(profile.PrimaryMarkup.Lo, profile.PrimaryMarkup.Hi)
	} else {
		base := c.Volume * perCBM * flatInflationSecondary
		target := base * (1 + f.TargetMargin)
		floor := math.Max(marginal, target)
		price = floor * (1 - r.Confidence*r.Rand.Uniform(0, maxDiscount))
	}

	c.Bids = append(c.Bids, Bid{Bidder: f, Price: price})
}

// ListSurplus offers the least valuable contracts for resale once the load exceeds the
// strategy's sell trigger, until the listed volume covers the overload.
func (f *Forwarder) ListSurplus(l *Listing) {
	profile := ProfileOf(f.Strategy)
	load := f.Load()
	if load <= f.Capacity*profile.SellTrigger || len(f.Portfolio) == 0 {
		return
	}

	surplus := load - f.Capacity
	ranked := slices.Clone(f.Portfolio)
	slices.SortStableFunc(ranked, func(a, b *Contract) int {
		da, db := a.ValueDensity(), b.ValueDensity()
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})

	listed := 0.0
	for _, c := range ranked {
		if listed >= surplus {
			break
		}
		l.List(c, c.Revenue*profile.ReserveRatio, f)
		listed += c.Volume
	}
}

// BidSecondary bids on every listing the forwarder can absorb within nominal capacity
// and values above its reserve.
func (f *Forwarder) BidSecondary(l *Listing, r Rules) {
	profile := ProfileOf(f.Strategy)
	for _, item := range l.Items {
		c := item.Contract
		if item.Seller == f || f.Load()+c.Volume > f.Capacity {
			continue
		}

		marginal := f.MarginalContainerCost(c.Volume, r.ContainerCapacity)
		wtp := c.Revenue - marginal
		if wtp <= 0 {
			continue
		}
		if profile.FreeCapacityOnly && marginal > 0 {
			continue
		}

		price := wtp * r.Rand.Uniform(profile.ResaleBid.Lo, profile.ResaleBid.Hi)
		if price >= item.Reserve {
			l.PlaceBid(item, price, f)
		}
	}
}
