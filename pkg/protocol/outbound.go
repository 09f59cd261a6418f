package protocol

import (
	"encoding/json"
	"sync/atomic"

	"marketfeed/pkg/market"
)

// reqID is the process-wide monotonic outbound request counter, attached
// to every outbound envelope so its ack can be correlated back.
var reqID uint64

// NextReqID returns the next monotonically increasing request ID.
func NextReqID() uint64 {
	return atomic.AddUint64(&reqID, 1)
}

// SubscribeParams describes a subscribe/unsubscribe request's payload.
type SubscribeParams struct {
	Channel  market.Channel  `json:"channel"`
	Symbol   []market.Symbol `json:"symbol,omitempty"`
	Depth    *uint32         `json:"depth,omitempty"`
	Snapshot *bool           `json:"snapshot,omitempty"`
	Token    string          `json:"token,omitempty"`
}

type request struct {
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
	ReqID  uint64      `json:"req_id"`
}

func boolPtr(b bool) *bool { return &b }

// BuildSubscribe serializes a subscribe request for the given channel,
// symbols and depth (depth is ignored for non-book channels).
func BuildSubscribe(channel market.Channel, symbols []market.Symbol, depth market.Depth) ([]byte, uint64, error) {
	id := NextReqID()
	params := SubscribeParams{Channel: channel, Symbol: symbols, Snapshot: boolPtr(true)}
	if channel == market.ChannelBook {
		d := uint32(depth)
		params.Depth = &d
	}
	b, err := json.Marshal(request{Method: "subscribe", Params: params, ReqID: id})
	return b, id, err
}

// BuildUnsubscribe serializes an unsubscribe request for the given
// channel and symbols.
func BuildUnsubscribe(channel market.Channel, symbols []market.Symbol) ([]byte, uint64, error) {
	id := NextReqID()
	params := SubscribeParams{Channel: channel, Symbol: symbols}
	b, err := json.Marshal(request{Method: "unsubscribe", Params: params, ReqID: id})
	return b, id, err
}

// BuildPing serializes a keepalive ping frame.
func BuildPing() ([]byte, uint64, error) {
	id := NextReqID()
	b, err := json.Marshal(request{Method: "ping", ReqID: id})
	return b, id, err
}

// AddOrderParams mirrors the venue's add_order request payload. Building
// this frame is supported so callers can construct it; actually sending
// authenticated trading requests is out of scope for this client.
type AddOrderParams struct {
	OrderType  string        `json:"order_type"`
	Side       market.Side   `json:"-"`
	RawSide    string        `json:"side"`
	Symbol     market.Symbol `json:"symbol"`
	OrderQty   string        `json:"order_qty"`
	LimitPrice string        `json:"limit_price,omitempty"`
	Token      string        `json:"token"`
}

// BuildAddOrder serializes an add_order request. OrderQty/LimitPrice are
// pre-rendered strings (never float64) to preserve exact decimal digits
// over the wire.
func BuildAddOrder(params AddOrderParams, token string) ([]byte, uint64, error) {
	id := NextReqID()
	params.RawSide = params.Side.String()
	params.Token = token
	b, err := json.Marshal(request{Method: "add_order", Params: params, ReqID: id})
	return b, id, err
}

// AmendOrderParams mirrors the venue's amend_order request payload: it
// changes an existing resting order's quantity and/or limit price without
// losing its place in the queue the way a cancel+replace would.
type AmendOrderParams struct {
	OrderID    string `json:"order_id"`
	OrderQty   string `json:"order_qty,omitempty"`
	LimitPrice string `json:"limit_price,omitempty"`
	Token      string `json:"token"`
}

// BuildAmendOrder serializes an amend_order request.
func BuildAmendOrder(params AmendOrderParams, token string) ([]byte, uint64, error) {
	id := NextReqID()
	params.Token = token
	b, err := json.Marshal(request{Method: "amend_order", Params: params, ReqID: id})
	return b, id, err
}

// CancelOrderParams mirrors the venue's cancel_order request payload.
type CancelOrderParams struct {
	OrderID string `json:"order_id"`
	Token   string `json:"token"`
}

// BuildCancelOrder serializes a cancel_order request for a single resting
// order.
func BuildCancelOrder(orderID string, token string) ([]byte, uint64, error) {
	id := NextReqID()
	params := CancelOrderParams{OrderID: orderID, Token: token}
	b, err := json.Marshal(request{Method: "cancel_order", Params: params, ReqID: id})
	return b, id, err
}

// BatchOrderParams mirrors the venue's batch_add request payload: a list
// of add_order entries for one symbol submitted and acknowledged together.
type BatchOrderParams struct {
	Symbol market.Symbol    `json:"symbol"`
	Orders []AddOrderParams `json:"orders"`
	Token  string           `json:"token"`
}

// BuildBatchOrder serializes a batch_add request covering multiple
// add_order entries for the same symbol. Each entry's side is rendered the
// same way a standalone BuildAddOrder call would.
func BuildBatchOrder(symbol market.Symbol, orders []AddOrderParams, token string) ([]byte, uint64, error) {
	id := NextReqID()
	rendered := make([]AddOrderParams, len(orders))
	for i, o := range orders {
		o.RawSide = o.Side.String()
		o.Token = ""
		rendered[i] = o
	}
	params := BatchOrderParams{Symbol: symbol, Orders: rendered, Token: token}
	b, err := json.Marshal(request{Method: "batch_add", Params: params, ReqID: id})
	return b, id, err
}
