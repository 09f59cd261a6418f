package protocol

import (
	"encoding/json"

	"github.com/pkg/errors"

	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// rawMessage is an alias kept separate from messages.go so that file's
// import list stays focused on wire shapes.
type rawMessage = json.RawMessage

// Message is the closed set of values Decode can produce. Exactly one
// field is populated, selected by Kind — the same tagged-struct
// discipline used by eventbus.Event, since the inbound vocabulary is
// just as closed as the outbound one.
type Kind uint8

const (
	KindSnapshot Kind = iota
	KindUpdate
	KindL3Snapshot
	KindL3Update
	KindHeartbeat
	KindStatus
	KindInstrument
	KindSubscriptionAck
	KindError
	KindTicker
	KindTrade
	KindOhlc
	KindMethod
	KindUnknown
)

// Message is a decoded inbound frame. Only the field matching Kind is
// populated.
type Message struct {
	Kind Kind

	Snapshots  []SnapshotData
	Updates    []UpdateData
	L3Events   []L3Event
	Status     *StatusData
	Instrument *InstrumentData
	Ack        *SubscriptionAck
	Err        *ErrorMessage
	Tickers    []TickerData
	Trades     []TradeData
	Ohlc       []OhlcData
	Method     *MethodEnvelope
}

// peek is the minimal shape needed to route a raw frame before decoding
// the rest of it.
type peek struct {
	Method  *string `json:"method"`
	Channel *string `json:"channel"`
	Type    string  `json:"type"`
}

// Decode parses a single inbound text frame and routes it by method/
// channel using a two-step peek-then-decode.
func Decode(raw []byte) (Message, error) {
	var p peek
	if err := json.Unmarshal(raw, &p); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode envelope")
	}

	if p.Method != nil {
		var m MethodEnvelope
		if err := json.Unmarshal(raw, &m); err != nil {
			return Message{}, errors.Wrap(err, "protocol: decode method response")
		}
		return Message{Kind: KindMethod, Method: &m}, nil
	}

	if p.Channel == nil {
		var errMsg ErrorMessage
		if err := json.Unmarshal(raw, &errMsg); err == nil && errMsg.Reason != "" {
			return Message{Kind: KindError, Err: &errMsg}, nil
		}
		return Message{Kind: KindUnknown}, nil
	}

	switch market.Channel(*p.Channel) {
	case market.ChannelHeartbeat:
		return Message{Kind: KindHeartbeat}, nil

	case market.ChannelBook:
		return decodeBook(raw, p.Type)

	case market.ChannelLevel3:
		return decodeL3(raw, p.Type)

	case market.ChannelStatus:
		return decodeStatus(raw)

	case market.ChannelInstrument:
		return decodeInstrument(raw)

	case market.ChannelTicker:
		return decodeTicker(raw)

	case market.ChannelTrade:
		return decodeTrade(raw)

	case market.ChannelOhlc:
		return decodeOhlc(raw)

	default:
		return Message{Kind: KindUnknown}, nil
	}
}

func decodeBook(raw []byte, msgType string) (Message, error) {
	var env struct {
		Data []SnapshotData `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode book data")
	}

	if msgType == "snapshot" {
		return Message{Kind: KindSnapshot, Snapshots: env.Data}, nil
	}

	var upd struct {
		Data []UpdateData `json:"data"`
	}
	if err := json.Unmarshal(raw, &upd); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode book update")
	}
	return Message{Kind: KindUpdate, Updates: upd.Data}, nil
}

// wireL3Order mirrors a single L3 order entry as the venue sends it; kind
// is a field on the order itself rather than the envelope. Price/Qty use
// json.Number rather than float64 so no precision is lost before
// mdecimal.Parse gets the original digits.
type wireL3Order struct {
	OrderID string       `json:"order_id"`
	Price   *json.Number `json:"limit_price"`
	Qty     *json.Number `json:"order_qty"`
	Event   string       `json:"event"`
}

type wireL3Data struct {
	Symbol   string        `json:"symbol"`
	Bids     []wireL3Order `json:"bids"`
	Asks     []wireL3Order `json:"asks"`
	Checksum *uint32       `json:"checksum"`
	Sequence uint64        `json:"sequence"`
}

func decodeL3(raw []byte, msgType string) (Message, error) {
	var env struct {
		Data []wireL3Data `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode l3 data")
	}

	var events []L3Event
	for _, d := range env.Data {
		events = append(events, l3EventsFromSide(d.Bids, market.Bid, d.Sequence)...)
		events = append(events, l3EventsFromSide(d.Asks, market.Ask, d.Sequence)...)
	}

	if msgType == "snapshot" {
		return Message{Kind: KindL3Snapshot, L3Events: events}, nil
	}
	return Message{Kind: KindL3Update, L3Events: events}, nil
}

func l3EventsFromSide(orders []wireL3Order, side market.Side, sequence uint64) []L3Event {
	out := make([]L3Event, 0, len(orders))
	for _, o := range orders {
		ev := L3Event{
			OrderID:  o.OrderID,
			Side:     side,
			Sequence: sequence,
			Kind:     l3KindFromString(o.Event),
		}
		if o.Price != nil {
			if d, err := mdecimal.Parse(o.Price.String()); err == nil {
				ev.Price, ev.HasPrice = d, true
			}
		}
		if o.Qty != nil {
			if d, err := mdecimal.Parse(o.Qty.String()); err == nil {
				ev.Qty, ev.HasQty = d, true
			}
		}
		out = append(out, ev)
	}
	return out
}

func l3KindFromString(s string) L3EventKind {
	switch s {
	case "modify":
		return L3Modify
	case "delete":
		return L3Delete
	default:
		return L3Add
	}
}

func decodeStatus(raw []byte) (Message, error) {
	var env struct {
		Data []StatusData `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode status")
	}
	if len(env.Data) == 0 {
		return Message{Kind: KindStatus, Status: &StatusData{}}, nil
	}
	return Message{Kind: KindStatus, Status: &env.Data[0]}, nil
}

func decodeInstrument(raw []byte) (Message, error) {
	var env struct {
		Data struct {
			Pairs []InstrumentPrecision `json:"pairs"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode instrument")
	}
	return Message{Kind: KindInstrument, Instrument: &InstrumentData{Pairs: env.Data.Pairs}}, nil
}

func decodeTicker(raw []byte) (Message, error) {
	var env struct {
		Data []TickerData `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode ticker")
	}
	return Message{Kind: KindTicker, Tickers: env.Data}, nil
}

func decodeTrade(raw []byte) (Message, error) {
	var env struct {
		Data []TradeData `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode trade")
	}
	for i := range env.Data {
		if side, ok := market.ParseSide(env.Data[i].RawSide); ok {
			env.Data[i].Side = side
		}
	}
	return Message{Kind: KindTrade, Trades: env.Data}, nil
}

func decodeOhlc(raw []byte) (Message, error) {
	var env struct {
		Data []OhlcData `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.Wrap(err, "protocol: decode ohlc")
	}
	return Message{Kind: KindOhlc, Ohlc: env.Data}, nil
}
