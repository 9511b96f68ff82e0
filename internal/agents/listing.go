package agents

// SaleItem is a contract offered on the secondary market for one round.
type SaleItem struct {
	Contract *Contract
	Seller   *Forwarder
	Reserve  float64
	Bids     []Bid
}

// HighestBid returns the best bid. Among equal prices the earliest submission wins.
func (i *SaleItem) HighestBid() (Bid, bool) {
	if len(i.Bids) == 0 {
		return Bid{}, false
	}
	best := i.Bids[0]
	for _, b := range i.Bids[1:] {
		if b.Price > best.Price {
			best = b
		}
	}
	return best, true
}

// Listing is the secondary market order board. A fresh Listing is built every round.
type Listing struct {
	Items []*SaleItem
}

// List offers a contract for resale at a reserve price.
func (l *Listing) List(c *Contract, reserve float64, seller *Forwarder) *SaleItem {
	item := &SaleItem{Contract: c, Seller: seller, Reserve: reserve}
	l.Items = append(l.Items, item)
	return item
}

// PlaceBid attaches a buyer's bid to a listed item.
func (l *Listing) PlaceBid(item *SaleItem, price float64, buyer *Forwarder) {
	item.Bids = append(item.Bids, Bid{Bidder: buyer, Price: price})
}
