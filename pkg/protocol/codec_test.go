package protocol

import (
	"testing"

	"marketfeed/pkg/market"
)

func TestDecodeSnapshotRoutesToKindSnapshot(t *testing.T) {
	raw := []byte(`{
		"channel": "book",
		"type": "snapshot",
		"data": [{
			"symbol": "BTC/USD",
			"bids": [{"price": 50000.1, "qty": 1.5}],
			"asks": [{"price": 50000.2, "qty": 2.0}],
			"checksum": 123456,
			"sequence": 1
		}]
	}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindSnapshot {
		t.Fatalf("Kind = %v, want KindSnapshot", msg.Kind)
	}
	if len(msg.Snapshots) != 1 {
		t.Fatalf("len(Snapshots) = %d, want 1", len(msg.Snapshots))
	}
	snap := msg.Snapshots[0]
	if snap.Symbol != market.Symbol("BTC/USD") {
		t.Errorf("Symbol = %q", snap.Symbol)
	}
	if len(snap.Bids) != 1 || len(snap.Asks) != 1 {
		t.Fatalf("unexpected level counts: bids=%d asks=%d", len(snap.Bids), len(snap.Asks))
	}
	if snap.Checksum != 123456 {
		t.Errorf("Checksum = %d", snap.Checksum)
	}
}

func TestDecodeUpdateRoutesToKindUpdate(t *testing.T) {
	raw := []byte(`{
		"channel": "book",
		"type": "update",
		"data": [{
			"symbol": "BTC/USD",
			"bids": [{"price": 50000.1, "qty": 0}],
			"asks": [],
			"checksum": 999,
			"timestamp": "2026-08-02T00:00:00.000000Z"
		}]
	}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindUpdate {
		t.Fatalf("Kind = %v, want KindUpdate", msg.Kind)
	}
	if msg.Updates[0].Timestamp != "2026-08-02T00:00:00.000000Z" {
		t.Errorf("Timestamp not preserved verbatim: %q", msg.Updates[0].Timestamp)
	}
}

func TestDecodeHeartbeat(t *testing.T) {
	msg, err := Decode([]byte(`{"channel":"heartbeat"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindHeartbeat {
		t.Fatalf("Kind = %v, want KindHeartbeat", msg.Kind)
	}
}

func TestDecodeMethodResponse(t *testing.T) {
	raw := []byte(`{"method":"subscribe","success":true,"req_id":42}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindMethod {
		t.Fatalf("Kind = %v, want KindMethod", msg.Kind)
	}
	if msg.Method == nil || msg.Method.Method != "subscribe" || !msg.Method.Success {
		t.Fatalf("unexpected method envelope: %+v", msg.Method)
	}
	if msg.Method.ReqID == nil || *msg.Method.ReqID != 42 {
		t.Fatalf("ReqID not decoded")
	}
}

func TestDecodeErrorWithoutChannel(t *testing.T) {
	raw := []byte(`{"error":{},"reason":"malformed request","code":"EGeneral:Invalid arguments"}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindError {
		t.Fatalf("Kind = %v, want KindError", msg.Kind)
	}
	if msg.Err.Reason != "malformed request" {
		t.Errorf("Reason = %q", msg.Err.Reason)
	}
}

func TestDecodeUnknownChannelFallsBackToUnknown(t *testing.T) {
	msg, err := Decode([]byte(`{"channel":"some-new-channel","type":"snapshot","data":[]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", msg.Kind)
	}
}

func TestDecodeL3EventKinds(t *testing.T) {
	raw := []byte(`{
		"channel": "level3",
		"type": "update",
		"data": [{
			"symbol": "BTC/USD",
			"sequence": 7,
			"bids": [
				{"order_id": "A", "limit_price": 100, "order_qty": 1, "event": "add"},
				{"order_id": "B", "limit_price": 101, "order_qty": 2, "event": "modify"},
				{"order_id": "C", "event": "delete"}
			],
			"asks": []
		}]
	}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindL3Update {
		t.Fatalf("Kind = %v, want KindL3Update", msg.Kind)
	}
	if len(msg.L3Events) != 3 {
		t.Fatalf("len(L3Events) = %d, want 3", len(msg.L3Events))
	}
	if msg.L3Events[0].Kind != L3Add || msg.L3Events[0].Side != market.Bid {
		t.Errorf("event 0 = %+v", msg.L3Events[0])
	}
	if msg.L3Events[1].Kind != L3Modify || !msg.L3Events[1].HasPrice || !msg.L3Events[1].HasQty {
		t.Errorf("event 1 = %+v", msg.L3Events[1])
	}
	if msg.L3Events[2].Kind != L3Delete || msg.L3Events[2].HasPrice || msg.L3Events[2].HasQty {
		t.Errorf("event 2 = %+v", msg.L3Events[2])
	}
}

func TestDecodeTradeResolvesSide(t *testing.T) {
	raw := []byte(`{
		"channel": "trade",
		"type": "update",
		"data": [{"symbol": "BTC/USD", "side": "buy", "price": 50000, "qty": 0.1, "timestamp": "2026-08-02T00:00:00Z"}]
	}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindTrade {
		t.Fatalf("Kind = %v, want KindTrade", msg.Kind)
	}
	if msg.Trades[0].Side != market.Bid {
		t.Errorf("Side = %v, want Bid (buy)", msg.Trades[0].Side)
	}
}

func TestDecodeInstrument(t *testing.T) {
	raw := []byte(`{
		"channel": "instrument",
		"type": "snapshot",
		"data": {"pairs": [{"symbol": "BTC/USD", "price_precision": 1, "qty_precision": 8}]}
	}`)
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != KindInstrument {
		t.Fatalf("Kind = %v, want KindInstrument", msg.Kind)
	}
	if len(msg.Instrument.Pairs) != 1 || msg.Instrument.Pairs[0].PriceScale != 1 {
		t.Fatalf("unexpected instrument data: %+v", msg.Instrument)
	}
}
