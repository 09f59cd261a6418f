// Package client is the consumer-facing handle: construct one, subscribe to
// symbols, read best bid/ask/spread/mid off the managed books, and drain
// Events() for everything else. It is a thin layer over pkg/session, so a
// caller doesn't have to wire session, restclient, and eventbus together
// itself.
package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"marketfeed/pkg/book"
	"marketfeed/pkg/book/l3"
	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/eventbus"
	"marketfeed/pkg/market"
	"marketfeed/pkg/orderbook"
	"marketfeed/pkg/reconnect"
	"marketfeed/pkg/restclient"
	"marketfeed/pkg/session"
	"marketfeed/pkg/stats"
)

// Config configures a Client. Endpoint and RESTBaseURL point at the same
// venue; RESTBaseURL may be left empty to skip the startup precision fetch
// and rely solely on the instrument channel.
type Config struct {
	Endpoint        string
	RESTBaseURL     string
	Depth           int
	HistoryCapacity int
	DeadTimeout     time.Duration
	EventBufferSize int
	Token           string

	Backoff        reconnect.BackoffConfig
	CircuitBreaker reconnect.CircuitBreakerConfig
}

func (c Config) toSessionConfig() session.Config {
	return session.Config{
		Endpoint:        c.Endpoint,
		Depth:           c.Depth,
		HistoryCapacity: c.HistoryCapacity,
		DeadTimeout:     c.DeadTimeout,
		EventBufferSize: c.EventBufferSize,
		Token:           c.Token,
		Backoff:         c.Backoff,
		CircuitBreaker:  c.CircuitBreaker,
	}
}

// Client is one venue connection plus the set of managed orderbooks it
// feeds. Each Client gets a random correlation ID, exposed through ID so
// callers can tag their logs and tell multiple Clients in one process
// apart; the Client itself does not log it.
type Client struct {
	id      string
	session *session.Session
	rest    *restclient.Client
}

// New constructs a Client. Call Run to start the connection; call
// Subscribe before or after Run — subscriptions persist across reconnects.
func New(cfg Config) *Client {
	c := &Client{
		id:      uuid.New().String(),
		session: session.New(cfg.toSessionConfig()),
	}
	if cfg.RESTBaseURL != "" {
		c.rest = restclient.New(cfg.RESTBaseURL)
	}
	return c
}

// ID is this Client's correlation ID, generated once at construction.
func (c *Client) ID() string { return c.id }

// Run seeds instrument precision over REST (if configured) and then drives
// the session's connect/serve/reconnect loop until ctx is canceled or
// Shutdown is called.
func (c *Client) Run(ctx context.Context) error {
	if c.rest != nil {
		instruments, err := c.rest.Instruments(ctx)
		if err == nil {
			c.session.SeedPrecision(restclient.PrecisionMap(instruments))
		}
		// A failed precision seed is not fatal: the instrument channel push
		// over the WS session will fill it in once connected.
	}
	return c.session.Run(ctx)
}

// Shutdown stops Run and clears all managed book state. Idempotent.
func (c *Client) Shutdown() { c.session.Shutdown() }

// Events returns the channel to drain for market data, connection,
// subscription and buffer-overflow notifications.
func (c *Client) Events() <-chan eventbus.Event { return c.session.Events() }

// DroppedEventCount returns how many events the bus has dropped because
// the consumer fell behind.
func (c *Client) DroppedEventCount() uint64 { return c.session.DroppedEventCount() }

// FeedHealth returns rolling frame-gap and checksum-latency statistics.
func (c *Client) FeedHealth() stats.Snapshot { return c.session.FeedHealth() }

// Subscribe adds a channel/symbol subscription, persisted across reconnects.
func (c *Client) Subscribe(channel market.Channel, symbols []market.Symbol, depth market.Depth) error {
	return c.session.Subscribe(channel, symbols, depth)
}

// Unsubscribe removes a channel/symbol subscription.
func (c *Client) Unsubscribe(channel market.Channel, symbols []market.Symbol) error {
	return c.session.Unsubscribe(channel, symbols)
}

// BestBid returns the best bid level for symbol's L2 book.
func (c *Client) BestBid(symbol market.Symbol) (price, qty mdecimal.Decimal, ok bool) {
	ob, found := c.session.Orderbook(symbol)
	if !found {
		return price, qty, false
	}
	level, has := ob.BestBid()
	if !has {
		return price, qty, false
	}
	return level.Price, level.Qty, true
}

// BestAsk returns the best ask level for symbol's L2 book.
func (c *Client) BestAsk(symbol market.Symbol) (price, qty mdecimal.Decimal, ok bool) {
	ob, found := c.session.Orderbook(symbol)
	if !found {
		return price, qty, false
	}
	level, has := ob.BestAsk()
	if !has {
		return price, qty, false
	}
	return level.Price, level.Qty, true
}

// Spread returns best-ask minus best-bid for symbol's L2 book.
func (c *Client) Spread(symbol market.Symbol) (mdecimal.Decimal, bool) {
	ob, found := c.session.Orderbook(symbol)
	if !found {
		return mdecimal.Decimal{}, false
	}
	return ob.Spread()
}

// MidPrice returns the midpoint between best bid and best ask for symbol's
// L2 book.
func (c *Client) MidPrice(symbol market.Symbol) (mdecimal.Decimal, bool) {
	ob, found := c.session.Orderbook(symbol)
	if !found {
		return mdecimal.Decimal{}, false
	}
	return ob.MidPrice()
}

// L3BestBid returns the best L3 bid price for symbol, if an L3 book for it
// is being maintained.
func (c *Client) L3BestBid(symbol market.Symbol) (mdecimal.Decimal, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return mdecimal.Decimal{}, false
	}
	return b.BestPrice(market.Bid)
}

// L3BestAsk returns the best L3 ask price for symbol, if an L3 book for it
// is being maintained.
func (c *Client) L3BestAsk(symbol market.Symbol) (mdecimal.Decimal, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return mdecimal.Decimal{}, false
	}
	return b.BestPrice(market.Ask)
}

// OrderbookState reports where symbol's L2 book currently sits in its
// state machine (Uninitialized, AwaitingSnapshot, Synced, Desynchronized).
func (c *Client) OrderbookState(symbol market.Symbol) (string, bool) {
	ob, ok := c.session.Orderbook(symbol)
	if !ok {
		return "", false
	}
	return ob.State().String(), true
}

// Orderbook returns an immutable point-in-time copy of symbol's L2 book,
// if a book-channel subscription for it has been made. Safe to call from
// any goroutine; the returned Snapshot is never mutated after return.
func (c *Client) Orderbook(symbol market.Symbol) (orderbook.Snapshot, bool) {
	ob, ok := c.session.Orderbook(symbol)
	if !ok {
		return orderbook.Snapshot{}, false
	}
	return ob.Current(), true
}

// AddOrder inserts a resting order into symbol's managed L3 book. Returns
// false if no L3 subscription for symbol exists, or if order.OrderID
// already rests in the book.
func (c *Client) AddOrder(symbol market.Symbol, order l3.OrderEntry, side market.Side) bool {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return false
	}
	return b.AddOrder(order, side)
}

// RemoveOrder removes a resting order by ID from symbol's managed L3 book.
func (c *Client) RemoveOrder(symbol market.Symbol, orderID string) (l3.OrderEntry, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return l3.OrderEntry{}, false
	}
	return b.RemoveOrder(orderID)
}

// ModifyOrder updates a resting order's quantity in symbol's managed L3
// book, preserving its queue position.
func (c *Client) ModifyOrder(symbol market.Symbol, orderID string, newQty mdecimal.Decimal) bool {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return false
	}
	return b.ModifyOrder(orderID, newQty)
}

// QueuePosition reports where an order sits within its price level in
// symbol's managed L3 book.
func (c *Client) QueuePosition(symbol market.Symbol, orderID string) (l3.QueuePosition, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return l3.QueuePosition{}, false
	}
	return b.QueuePosition(orderID)
}

// AggregatedBids collapses symbol's L3 bid side into its L2 view: one
// price/qty pair per level, best first.
func (c *Client) AggregatedBids(symbol market.Symbol) ([]book.Level, bool) {
	return c.aggregated(symbol, market.Bid)
}

// AggregatedAsks collapses symbol's L3 ask side into its L2 view: one
// price/qty pair per level, best first.
func (c *Client) AggregatedAsks(symbol market.Symbol) ([]book.Level, bool) {
	return c.aggregated(symbol, market.Ask)
}

func (c *Client) aggregated(symbol market.Symbol, side market.Side) ([]book.Level, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return nil, false
	}
	raw := b.Aggregated(side)
	out := make([]book.Level, len(raw))
	for i, lvl := range raw {
		price, qty := lvl.Unpack()
		out[i] = book.Level{Price: price, Qty: qty}
	}
	return out, true
}

// VWAPBid returns the volume-weighted average price to fill qty against
// symbol's L3 bid side, walking the book from the best price outward.
func (c *Client) VWAPBid(symbol market.Symbol, qty mdecimal.Decimal) (mdecimal.Decimal, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return mdecimal.Decimal{}, false
	}
	return b.VWAP(market.Bid, qty)
}

// VWAPAsk returns the volume-weighted average price to fill qty against
// symbol's L3 ask side, walking the book from the best price outward.
func (c *Client) VWAPAsk(symbol market.Symbol, qty mdecimal.Decimal) (mdecimal.Decimal, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return mdecimal.Decimal{}, false
	}
	return b.VWAP(market.Ask, qty)
}

// Imbalance returns (bidQty-askQty)/(bidQty+askQty) for symbol's L3 book,
// in [-1, 1], or false if no L3 subscription exists or the book is empty
// on both sides.
func (c *Client) Imbalance(symbol market.Symbol) (mdecimal.Decimal, bool) {
	b, ok := c.session.L3Book(symbol)
	if !ok {
		return mdecimal.Decimal{}, false
	}
	return b.Imbalance()
}
