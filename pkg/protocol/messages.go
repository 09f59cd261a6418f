// Package protocol parses the venue's inbound JSON messages into typed
// values and builds outbound subscribe/unsubscribe/ping/order frames.
// Inbound frames are routed by peeking at "method" then "channel" before
// fanning out to a typed struct; outbound frames share a common envelope
// carrying a monotonic request ID.
package protocol

import (
	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// Level is a single wire price/qty pair, used by book snapshot and update
// messages.
// This is the hot-path type: see easyjson.go for hand-written
// MarshalEasyJSON/UnmarshalEasyJSON methods.
type Level struct {
	Price mdecimal.Decimal `json:"price"`
	Qty   mdecimal.Decimal `json:"qty"`
}

// MethodEnvelope is the shape of a method response (subscribe, unsubscribe,
// pong): {"method": ..., "success": ..., "req_id": ...}.
type MethodEnvelope struct {
	Method  string  `json:"method"`
	Success bool    `json:"success"`
	ReqID   *uint64 `json:"req_id,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// SnapshotData is the per-symbol payload of a book snapshot message.
type SnapshotData struct {
	Symbol   market.Symbol `json:"symbol"`
	Bids     []Level       `json:"bids"`
	Asks     []Level       `json:"asks"`
	Checksum uint32        `json:"checksum"`
	Sequence uint64        `json:"sequence,omitempty"`
}

// UpdateData is the per-symbol payload of a book delta message. Timestamp
// is kept verbatim as the venue's ISO-8601 string; the engine never
// normalizes it.
type UpdateData struct {
	Symbol    market.Symbol `json:"symbol"`
	Bids      []Level       `json:"bids"`
	Asks      []Level       `json:"asks"`
	Checksum  uint32        `json:"checksum"`
	Sequence  uint64        `json:"sequence,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
}

// L3EventKind enumerates the L3 order-event types.
type L3EventKind uint8

const (
	L3Add L3EventKind = iota
	L3Modify
	L3Delete
)

// L3Event is a single order-level event on the level3 channel.
type L3Event struct {
	Kind     L3EventKind
	OrderID  string
	Side     market.Side
	Price    mdecimal.Decimal
	HasPrice bool
	Qty      mdecimal.Decimal
	HasQty   bool
	Sequence uint64
}

// HeartbeatMessage carries no payload; its receipt alone resets the
// session's dead-man's-switch.
type HeartbeatMessage struct{}

// StatusData is the per-message payload of the status channel.
type StatusData struct {
	SystemStatus string `json:"system"`
	APIVersion   string `json:"api_version"`
	Version      string `json:"version"`
	ConnectionID uint64 `json:"connection_id"`
}

// InstrumentPrecision is one symbol's entry in an instrument message.
type InstrumentPrecision struct {
	Symbol       market.Symbol           `json:"symbol"`
	PriceScale   int32                   `json:"price_precision"`
	QtyScale     int32                   `json:"qty_precision"`
	MinOrderSize string                  `json:"qty_min,omitempty"`
	TickSize     string                  `json:"price_increment,omitempty"`
	Status       market.InstrumentStatus `json:"status,omitempty"`
}

// InstrumentData wraps the set of instruments carried in one instrument
// channel message.
type InstrumentData struct {
	Pairs []InstrumentPrecision `json:"pairs"`
}

// SubscriptionAck acknowledges (or rejects) a subscribe/unsubscribe
// request.
type SubscriptionAck struct {
	Channel market.Channel  `json:"channel"`
	Symbols []market.Symbol `json:"symbols"`
	OK      bool            `json:"-"`
	Error   string          `json:"error,omitempty"`
}

// ErrorMessage is a venue-reported error not tied to a specific method
// response.
type ErrorMessage struct {
	Code          string `json:"code"`
	Reason        string `json:"reason"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// TickerData is the best bid/ask snapshot on the ticker channel. The
// engine passes this through to consumers via events without further
// interpretation.
type TickerData struct {
	Symbol market.Symbol    `json:"symbol"`
	Bid    mdecimal.Decimal `json:"bid"`
	Ask    mdecimal.Decimal `json:"ask"`
	Last   mdecimal.Decimal `json:"last"`
}

// TradeData is a single executed trade on the trade channel.
type TradeData struct {
	Symbol    market.Symbol    `json:"symbol"`
	Side      market.Side      `json:"-"`
	RawSide   string           `json:"side"`
	Price     mdecimal.Decimal `json:"price"`
	Qty       mdecimal.Decimal `json:"qty"`
	Timestamp string           `json:"timestamp"`
}

// OhlcData is a single candle on the ohlc channel.
type OhlcData struct {
	Symbol string           `json:"symbol"`
	Open   mdecimal.Decimal `json:"open"`
	High   mdecimal.Decimal `json:"high"`
	Low    mdecimal.Decimal `json:"low"`
	Close  mdecimal.Decimal `json:"close"`
	Volume mdecimal.Decimal `json:"volume"`
}
