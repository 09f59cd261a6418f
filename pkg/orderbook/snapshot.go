package orderbook

import (
	"marketfeed/pkg/book"
	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// Snapshot is an immutable point-in-time copy of an orderbook's state,
// suitable for history retention and for atomic-pointer-swap style
// concurrent reads.
type Snapshot struct {
	Symbol   market.Symbol
	Bids     []book.Level
	Asks     []book.Level
	Checksum uint32
	Sequence uint64
	State    State
}

// BestBid returns the highest bid price in the snapshot, if any.
func (s Snapshot) BestBid() (book.Level, bool) {
	if len(s.Bids) == 0 {
		return book.Level{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask price in the snapshot, if any.
func (s Snapshot) BestAsk() (book.Level, bool) {
	if len(s.Asks) == 0 {
		return book.Level{}, false
	}
	return s.Asks[0], true
}

// Spread returns best ask minus best bid.
func (s Snapshot) Spread() (mdecimal.Decimal, bool) {
	bid, ok1 := s.BestBid()
	ask, ok2 := s.BestAsk()
	if !ok1 || !ok2 {
		return mdecimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// MidPrice returns (best bid + best ask) / 2.
func (s Snapshot) MidPrice() (mdecimal.Decimal, bool) {
	bid, ok1 := s.BestBid()
	ask, ok2 := s.BestAsk()
	if !ok1 || !ok2 {
		return mdecimal.Zero, false
	}
	return ask.Price.Add(bid.Price).Div(mdecimal.Two), true
}
