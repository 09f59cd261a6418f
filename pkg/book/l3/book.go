package l3

import (
	"sort"

	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// Book is the L3 orderbook for a single symbol: per-side price ladders of
// FIFO order queues, plus an order-ID index for O(1) lookup.
type Book struct {
	symbol  market.Symbol
	bids    []*priceLevel // descending by price
	asks    []*priceLevel // ascending by price
	index   map[string]orderLocation
	nextSeq uint64
}

// NewBook creates an empty L3 book for symbol.
func NewBook(symbol market.Symbol) *Book {
	return &Book{
		symbol: symbol,
		index:  make(map[string]orderLocation),
	}
}

func (b *Book) ladder(side market.Side) *[]*priceLevel {
	if side == market.Bid {
		return &b.bids
	}
	return &b.asks
}

func less(side market.Side, a, c mdecimal.Decimal) bool {
	if side == market.Bid {
		return a.GreaterThan(c)
	}
	return a.LessThan(c)
}

func (b *Book) search(side market.Side, price mdecimal.Decimal) int {
	ladder := *b.ladder(side)
	return sort.Search(len(ladder), func(i int) bool {
		return !less(side, ladder[i].price, price)
	})
}

func (b *Book) levelAt(side market.Side, price mdecimal.Decimal) (*priceLevel, int, bool) {
	ladder := *b.ladder(side)
	i := b.search(side, price)
	if i < len(ladder) && ladder[i].price.Equal(price) {
		return ladder[i], i, true
	}
	return nil, i, false
}

// NextArrivalSeq allocates the next monotonic arrival sequence for a
// newly-inserted order. Exposed so the session's L3 routing can stamp
// orders consistently with book insertion order.
func (b *Book) NextArrivalSeq() uint64 {
	b.nextSeq++
	return b.nextSeq
}

// AddOrder inserts a new order. Returns false if order_id already exists.
func (b *Book) AddOrder(o OrderEntry, side market.Side) bool {
	if _, exists := b.index[o.OrderID]; exists {
		return false
	}

	level, i, found := b.levelAt(side, o.Price)
	if !found {
		level = newPriceLevel(o.Price)
		ladderPtr := b.ladder(side)
		*ladderPtr = append(*ladderPtr, nil)
		copy((*ladderPtr)[i+1:], (*ladderPtr)[i:])
		(*ladderPtr)[i] = level
	}

	entry := o
	level.add(&entry)
	b.index[o.OrderID] = orderLocation{price: o.Price, side: side}
	return true
}

// RemoveOrder removes an order by ID, returning it if found. Empty levels
// are pruned from the ladder.
func (b *Book) RemoveOrder(orderID string) (OrderEntry, bool) {
	loc, ok := b.index[orderID]
	if !ok {
		return OrderEntry{}, false
	}
	delete(b.index, orderID)

	level, i, found := b.levelAt(loc.side, loc.price)
	if !found {
		return OrderEntry{}, false
	}
	o, ok := level.remove(orderID)
	if !ok {
		return OrderEntry{}, false
	}
	if level.isEmpty() {
		ladderPtr := b.ladder(loc.side)
		*ladderPtr = append((*ladderPtr)[:i], (*ladderPtr)[i+1:]...)
	}
	return *o, true
}

// ModifyOrder updates an order's quantity, preserving its ArrivalSeq (and
// therefore its queue position).
func (b *Book) ModifyOrder(orderID string, newQty mdecimal.Decimal) bool {
	loc, ok := b.index[orderID]
	if !ok {
		return false
	}
	level, _, found := b.levelAt(loc.side, loc.price)
	if !found {
		return false
	}
	_, ok = level.modify(orderID, newQty)
	return ok
}

// QueuePosition returns the order's position within its price level.
func (b *Book) QueuePosition(orderID string) (QueuePosition, bool) {
	loc, ok := b.index[orderID]
	if !ok {
		return QueuePosition{}, false
	}
	level, _, found := b.levelAt(loc.side, loc.price)
	if !found {
		return QueuePosition{}, false
	}
	return level.queuePosition(orderID)
}

// HasOrder reports whether orderID is currently resting in the book.
func (b *Book) HasOrder(orderID string) bool {
	_, ok := b.index[orderID]
	return ok
}

// OrderSide returns the side an order rests on.
func (b *Book) OrderSide(orderID string) (market.Side, bool) {
	loc, ok := b.index[orderID]
	return loc.side, ok
}

// Clear removes all orders and levels.
func (b *Book) Clear() {
	b.bids = nil
	b.asks = nil
	b.index = make(map[string]orderLocation)
}

// OrderCount returns the total number of resting orders.
func (b *Book) OrderCount() int {
	return len(b.index)
}

// BestPrice returns the best price on a side, if any.
func (b *Book) BestPrice(side market.Side) (mdecimal.Decimal, bool) {
	ladder := *b.ladder(side)
	if len(ladder) == 0 {
		return mdecimal.Zero, false
	}
	return ladder[0].price, true
}

// Spread returns best ask minus best bid.
func (b *Book) Spread() (mdecimal.Decimal, bool) {
	bid, ok1 := b.BestPrice(market.Bid)
	ask, ok2 := b.BestPrice(market.Ask)
	if !ok1 || !ok2 {
		return mdecimal.Zero, false
	}
	return ask.Sub(bid), true
}

// MidPrice returns (best bid + best ask) / 2.
func (b *Book) MidPrice() (mdecimal.Decimal, bool) {
	bid, ok1 := b.BestPrice(market.Bid)
	ask, ok2 := b.BestPrice(market.Ask)
	if !ok1 || !ok2 {
		return mdecimal.Zero, false
	}
	return ask.Add(bid).Div(mdecimal.Two), true
}

// Aggregated collapses the L3 side into its L2 view: one price/qty pair
// per level, ordered the same way as the L3 ladder.
func (b *Book) Aggregated(side market.Side) []book2Level {
	ladder := *b.ladder(side)
	out := make([]book2Level, len(ladder))
	for i, lvl := range ladder {
		price, qty := lvl.aggregated()
		out[i] = book2Level{Price: price, Qty: qty}
	}
	return out
}

// book2Level mirrors book.Level without importing pkg/book, to avoid a
// dependency cycle (pkg/book does not need to know about L3).
type book2Level struct {
	Price mdecimal.Decimal
	Qty   mdecimal.Decimal
}

func (l book2Level) Unpack() (mdecimal.Decimal, mdecimal.Decimal) { return l.Price, l.Qty }

// TopAggregated returns up to n aggregated levels from the best.
func (b *Book) TopAggregated(side market.Side, n int) []book2Level {
	all := b.Aggregated(side)
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Truncate drops levels (and their orders) beyond maxDepth on each side.
func (b *Book) Truncate(maxDepth int) {
	for _, side := range []market.Side{market.Bid, market.Ask} {
		ladderPtr := b.ladder(side)
		if len(*ladderPtr) <= maxDepth {
			continue
		}
		dropped := (*ladderPtr)[maxDepth:]
		for _, lvl := range dropped {
			for _, e := range lvl.entries() {
				delete(b.index, e.OrderID)
			}
		}
		*ladderPtr = (*ladderPtr)[:maxDepth]
	}
}

// TotalQty sums quantity across all levels on a side.
func (b *Book) TotalQty(side market.Side) mdecimal.Decimal {
	total := mdecimal.Zero
	for _, lvl := range *b.ladder(side) {
		total = total.Add(lvl.totalQty)
	}
	return total
}

// Imbalance returns (bidQty-askQty)/(bidQty+askQty) in [-1, 1], or false if
// the book is empty on both sides.
func (b *Book) Imbalance() (mdecimal.Decimal, bool) {
	bidQty := b.TotalQty(market.Bid)
	askQty := b.TotalQty(market.Ask)
	total := bidQty.Add(askQty)
	if total.IsZero() {
		return mdecimal.Zero, false
	}
	return bidQty.Sub(askQty).Div(total), true
}

// VWAP returns the volume-weighted average price to fill targetQty on the
// given side, walking the book from the best price outward.
func (b *Book) VWAP(side market.Side, targetQty mdecimal.Decimal) (mdecimal.Decimal, bool) {
	remaining := targetQty
	totalValue := mdecimal.Zero
	totalQty := mdecimal.Zero

	for _, lvl := range *b.ladder(side) {
		if remaining.IsZero() || remaining.IsNegative() {
			break
		}
		fillQty := remaining
		if lvl.totalQty.LessThan(fillQty) {
			fillQty = lvl.totalQty
		}
		totalValue = totalValue.Add(lvl.price.Mul(fillQty))
		totalQty = totalQty.Add(fillQty)
		remaining = remaining.Sub(fillQty)
	}

	if totalQty.IsZero() {
		return mdecimal.Zero, false
	}
	return totalValue.Div(totalQty), true
}
