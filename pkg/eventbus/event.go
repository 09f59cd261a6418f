// Package eventbus defines the engine's closed event vocabulary and a
// bounded single-producer/single-consumer channel with drop-newest
// backpressure.
package eventbus

import (
	"time"

	"marketfeed/pkg/book"
	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// Category is the top-level event tag. The variant set is closed by
// design: a tagged struct, not an interface, so callers switch on Category
// and read the one populated payload field instead of type-asserting.
type Category uint8

const (
	CategoryMarket Category = iota
	CategoryConnection
	CategorySubscription
	CategoryPrivate
	CategoryBufferOverflow
)

func (c Category) String() string {
	switch c {
	case CategoryMarket:
		return "Market"
	case CategoryConnection:
		return "Connection"
	case CategorySubscription:
		return "Subscription"
	case CategoryPrivate:
		return "Private"
	case CategoryBufferOverflow:
		return "BufferOverflow"
	default:
		return "Unknown"
	}
}

// MarketKind enumerates the Market category's sub-variants.
type MarketKind uint8

const (
	MarketOrderbookSnapshot MarketKind = iota
	MarketOrderbookUpdate
	MarketChecksumMismatch
	MarketHeartbeat
	MarketStatus
	MarketTrade
	MarketTicker
	MarketOhlc
	// MarketStateRestored fires once, right after MarketOrderbookSnapshot,
	// when a fresh snapshot resynchronizes a book that was Desynchronized.
	MarketStateRestored
)

// ConnectionKind enumerates the Connection category's sub-variants.
type ConnectionKind uint8

const (
	ConnConnected ConnectionKind = iota
	ConnDisconnected
	ConnReconnecting
	ConnReconnectFailed
	ConnSubscriptionsRestored
)

// SubscriptionKind enumerates the Subscription category's sub-variants.
type SubscriptionKind uint8

const (
	SubSubscribed SubscriptionKind = iota
	SubUnsubscribed
	SubError
)

func (k SubscriptionKind) String() string {
	switch k {
	case SubSubscribed:
		return "Subscribed"
	case SubUnsubscribed:
		return "Unsubscribed"
	case SubError:
		return "Error"
	default:
		return "Unknown"
	}
}

// PrivateKind enumerates the Private category's sub-variants.
type PrivateKind uint8

const (
	PrivateExecution PrivateKind = iota
	PrivateBalanceUpdate
)

// Event is the engine's one and only outbound event type. Exactly the
// field(s) matching Category/sub-kind are populated; the rest are zero
// values. All payloads are owned copies, never references into live
// engine state.
type Event struct {
	Category Category
	At       time.Time

	Market       MarketEvent
	Connection   ConnectionEvent
	Subscription SubscriptionEvent
	Private      PrivateEvent

	// Populated only when Category == CategoryBufferOverflow.
	DroppedCount uint64
}

// MarketEvent carries one of the Market sub-variants.
type MarketEvent struct {
	Kind   MarketKind
	Symbol market.Symbol

	// OrderbookSnapshot / OrderbookUpdate
	Bids     []book.Level
	Asks     []book.Level
	Checksum uint32
	Sequence uint64

	// ChecksumMismatch
	Expected uint32
	Computed uint32

	// Status
	SystemStatus string
	Version      string

	// Trade
	Price mdecimal.Decimal
	Qty   mdecimal.Decimal
	Side  market.Side

	// Ticker
	Bid mdecimal.Decimal
	Ask mdecimal.Decimal
}

// ConnectionEvent carries one of the Connection sub-variants.
type ConnectionEvent struct {
	Kind ConnectionKind

	// Connected
	APIVersion   string
	ConnectionID string

	// Disconnected / ReconnectFailed
	Reason string

	// Reconnecting
	Attempt int
	Delay   time.Duration

	// SubscriptionsRestored
	Count int
}

// SubscriptionEvent carries one of the Subscription sub-variants.
type SubscriptionEvent struct {
	Kind    SubscriptionKind
	Channel market.Channel
	Symbol  market.Symbol
	Reason  string
}

// PrivateEvent carries one of the Private sub-variants.
type PrivateEvent struct {
	Kind         PrivateKind
	OrderID      string
	ExecutionQty mdecimal.Decimal
	ExecutionPx  mdecimal.Decimal
	Asset        string
	Balance      mdecimal.Decimal
}
