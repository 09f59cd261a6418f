// Package l3 implements the Level 3 (order-identified) per-symbol
// orderbook: FIFO order queues per price level, an order index for O(1)
// lookup by order ID, and queue-position / VWAP / imbalance analytics.
package l3

import (
	"github.com/gammazero/deque"

	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// OrderEntry is a single resting order. ArrivalSeq is set once on insert
// and preserved across Modify so queue position never changes under a
// quantity-only edit.
type OrderEntry struct {
	OrderID    string
	Price      mdecimal.Decimal
	Qty        mdecimal.Decimal
	ArrivalSeq uint64
}

// QueuePosition describes where an order sits within its price level.
type QueuePosition struct {
	Position    int
	TotalOrders int
	QtyAhead    mdecimal.Decimal
	TotalQty    mdecimal.Decimal
}

// priceLevel is the FIFO queue of orders resting at one price. Backed by a
// deque so both front access and the common add-to-back path are O(1);
// removal by ID is O(level_order_count), matching the complexity target in
// the book-storage spec for queue_position.
type priceLevel struct {
	price    mdecimal.Decimal
	orders   deque.Deque[*OrderEntry]
	totalQty mdecimal.Decimal
}

func newPriceLevel(price mdecimal.Decimal) *priceLevel {
	return &priceLevel{price: price}
}

func (l *priceLevel) add(o *OrderEntry) {
	l.orders.PushBack(o)
	l.totalQty = l.totalQty.Add(o.Qty)
}

// indexOf returns the deque index of the order with the given ID, or -1.
func (l *priceLevel) indexOf(orderID string) int {
	for i := 0; i < l.orders.Len(); i++ {
		if l.orders.At(i).OrderID == orderID {
			return i
		}
	}
	return -1
}

func (l *priceLevel) remove(orderID string) (*OrderEntry, bool) {
	i := l.indexOf(orderID)
	if i < 0 {
		return nil, false
	}
	o := l.orders.At(i)
	l.orders.Remove(i)
	l.totalQty = l.totalQty.Sub(o.Qty)
	return o, true
}

func (l *priceLevel) modify(orderID string, newQty mdecimal.Decimal) (*OrderEntry, bool) {
	i := l.indexOf(orderID)
	if i < 0 {
		return nil, false
	}
	o := l.orders.At(i)
	l.totalQty = l.totalQty.Sub(o.Qty).Add(newQty)
	o.Qty = newQty
	return o, true
}

func (l *priceLevel) queuePosition(orderID string) (QueuePosition, bool) {
	qtyAhead := mdecimal.Zero
	for i := 0; i < l.orders.Len(); i++ {
		o := l.orders.At(i)
		if o.OrderID == orderID {
			return QueuePosition{
				Position:    i,
				TotalOrders: l.orders.Len(),
				QtyAhead:    qtyAhead,
				TotalQty:    l.totalQty,
			}, true
		}
		qtyAhead = qtyAhead.Add(o.Qty)
	}
	return QueuePosition{}, false
}

func (l *priceLevel) isEmpty() bool { return l.orders.Len() == 0 }

func (l *priceLevel) aggregated() (mdecimal.Decimal, mdecimal.Decimal) {
	return l.price, l.totalQty
}

func (l *priceLevel) entries() []OrderEntry {
	out := make([]OrderEntry, l.orders.Len())
	for i := 0; i < l.orders.Len(); i++ {
		out[i] = *l.orders.At(i)
	}
	return out
}

// orderLocation is the index entry used for O(1) lookup by order ID.
type orderLocation struct {
	price mdecimal.Decimal
	side  market.Side
}
