package orderbook

import (
	"testing"

	"marketfeed/pkg/book"
	"marketfeed/pkg/checksum"
	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

func d(t *testing.T, s string) mdecimal.Decimal {
	t.Helper()
	v, err := mdecimal.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func levels(t *testing.T, pairs ...string) []book.Level {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("levels requires price/qty pairs")
	}
	out := make([]book.Level, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, book.Level{Price: d(t, pairs[i]), Qty: d(t, pairs[i+1])})
	}
	return out
}

func validChecksum(t *testing.T, bids, asks []book.Level, precision market.Precision) uint32 {
	t.Helper()
	toCk := func(ls []book.Level) []checksum.Level {
		out := make([]checksum.Level, len(ls))
		for i, l := range ls {
			out[i] = checksum.Level{Price: l.Price, Qty: l.Qty}
		}
		return out
	}
	return checksum.Compute(toCk(asks), toCk(bids), precision)
}

func TestApplySnapshotTransitionsToSynced(t *testing.T) {
	ob := New("BTC/USD")
	ob.SetPrecision(market.Precision{PriceScale: 1, QtyScale: 8})

	bids := levels(t, "100", "1.0", "99", "2.0")
	asks := levels(t, "101", "1.0", "102", "2.0")
	ck := validChecksum(t, bids, asks, market.Precision{PriceScale: 1, QtyScale: 8})

	res, restored, err := ob.ApplySnapshot(bids, asks, ck, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != ResultSnapshot {
		t.Fatalf("expected ResultSnapshot, got %v", res)
	}
	if restored {
		t.Fatal("expected restored=false for a first snapshot from Uninitialized")
	}
	if ob.State() != Synced {
		t.Fatalf("expected Synced, got %v", ob.State())
	}
}

func TestApplyDeltaUpdatesBestLevels(t *testing.T) {
	ob := New("BTC/USD")
	precision := market.Precision{PriceScale: 1, QtyScale: 8}
	ob.SetPrecision(precision)

	bids := levels(t, "100", "1.0")
	asks := levels(t, "101", "1.0")
	ck := validChecksum(t, bids, asks, precision)
	if _, _, err := ob.ApplySnapshot(bids, asks, ck, 1); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	newBids := levels(t, "100", "2.0")
	newAsks := levels(t, "101", "2.0")
	ck2 := validChecksum(t, newBids, newAsks, precision)

	res, err := ob.ApplyDelta(newBids, newAsks, ck2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != ResultUpdate {
		t.Fatalf("expected ResultUpdate, got %v", res)
	}

	bb, _ := ob.BestBid()
	ba, _ := ob.BestAsk()
	if !bb.Qty.Equal(d(t, "2.0")) || !ba.Qty.Equal(d(t, "2.0")) {
		t.Fatalf("expected updated quantities, got bid=%+v ask=%+v", bb, ba)
	}
}

func TestSpreadAndMidPrice(t *testing.T) {
	ob := New("BTC/USD")
	precision := market.Precision{PriceScale: 0, QtyScale: 0}
	ob.SetPrecision(precision)

	bids := levels(t, "100", "1")
	asks := levels(t, "102", "1")
	ck := validChecksum(t, bids, asks, precision)
	if _, _, err := ob.ApplySnapshot(bids, asks, ck, 1); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	spread, ok := ob.Spread()
	if !ok || !spread.Equal(d(t, "2")) {
		t.Fatalf("expected spread 2, got %v", spread)
	}
	mid, ok := ob.MidPrice()
	if !ok || !mid.Equal(d(t, "101")) {
		t.Fatalf("expected mid 101, got %v", mid)
	}
}

func TestChecksumMismatchDesyncsBook(t *testing.T) {
	ob := New("BTC/USD")
	ob.SetPrecision(market.Precision{PriceScale: 0, QtyScale: 0})

	bids := levels(t, "100", "1")
	asks := levels(t, "101", "1")

	_, _, err := ob.ApplySnapshot(bids, asks, 0xDEADBEEF, 1)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if err.Kind != market.KindChecksumMismatch {
		t.Fatalf("expected KindChecksumMismatch, got %v", err.Kind)
	}
	if ob.State() != Desynchronized {
		t.Fatalf("expected Desynchronized, got %v", ob.State())
	}
}

func TestFreshSnapshotAfterDesyncReportsRestored(t *testing.T) {
	ob := New("BTC/USD")
	precision := market.Precision{PriceScale: 0, QtyScale: 0}
	ob.SetPrecision(precision)

	bids := levels(t, "100", "1")
	asks := levels(t, "101", "1")

	if _, _, err := ob.ApplySnapshot(bids, asks, 0xDEADBEEF, 1); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if ob.State() != Desynchronized {
		t.Fatalf("expected Desynchronized, got %v", ob.State())
	}

	ck := validChecksum(t, bids, asks, precision)
	res, restored, err := ob.ApplySnapshot(bids, asks, ck, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != ResultSnapshot {
		t.Fatalf("expected ResultSnapshot, got %v", res)
	}
	if !restored {
		t.Fatal("expected restored=true for a snapshot that resynchronizes a Desynchronized book")
	}
	if ob.State() != Synced {
		t.Fatalf("expected Synced, got %v", ob.State())
	}
}

func TestDeltaRollbackOnMismatchLeavesBookUntouched(t *testing.T) {
	ob := New("BTC/USD")
	precision := market.Precision{PriceScale: 0, QtyScale: 0}
	ob.SetPrecision(precision)

	bids := levels(t, "100", "1")
	asks := levels(t, "101", "1")
	ck := validChecksum(t, bids, asks, precision)
	if _, _, err := ob.ApplySnapshot(bids, asks, ck, 1); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	badBids := levels(t, "100", "5")
	_, err := ob.ApplyDelta(badBids, nil, 0xBAD, 2)
	if err == nil {
		t.Fatal("expected checksum mismatch")
	}

	// The live book should not reflect the rejected delta's quantity.
	bb, _ := ob.BestBid()
	if !bb.Qty.Equal(d(t, "1")) {
		t.Fatalf("expected rollback to qty 1, got %v", bb.Qty)
	}
	if ob.State() != Desynchronized {
		t.Fatalf("expected Desynchronized after mismatch, got %v", ob.State())
	}
}

func TestDeltaIgnoredWhenNotSynced(t *testing.T) {
	ob := New("BTC/USD")
	res, err := ob.ApplyDelta(nil, nil, 0, 1)
	if res != ResultIgnored {
		t.Fatalf("expected ResultIgnored, got %v", res)
	}
	if err == nil || err.Kind != market.KindOutOfOrder {
		t.Fatalf("expected KindOutOfOrder, got %v", err)
	}
}

func TestValidationDeferredWithoutPrecision(t *testing.T) {
	ob := New("BTC/USD") // precision never set

	bids := levels(t, "100", "1")
	asks := levels(t, "101", "1")

	// Any checksum value is accepted while precision is unknown.
	res, _, err := ob.ApplySnapshot(bids, asks, 0x12345678, 1)
	if err != nil {
		t.Fatalf("expected deferred validation to accept, got %v", err)
	}
	if res != ResultSnapshot || ob.State() != Synced {
		t.Fatalf("expected synced snapshot, got %v state=%v", res, ob.State())
	}
}

func TestResetReturnsToUninitialized(t *testing.T) {
	ob := New("BTC/USD")
	precision := market.Precision{PriceScale: 0, QtyScale: 0}
	ob.SetPrecision(precision)

	bids := levels(t, "100", "1")
	asks := levels(t, "101", "1")
	ck := validChecksum(t, bids, asks, precision)
	ob.ApplySnapshot(bids, asks, ck, 1)

	ob.Reset()
	if ob.State() != Uninitialized {
		t.Fatalf("expected Uninitialized, got %v", ob.State())
	}
	if ob.BidCount() != 0 || ob.AskCount() != 0 {
		t.Fatalf("expected empty book after reset")
	}
}

func TestHistoryRetainsSuccessfulApplies(t *testing.T) {
	ob := NewWithOptions("BTC/USD", DefaultDepth, 10)
	precision := market.Precision{PriceScale: 0, QtyScale: 0}
	ob.SetPrecision(precision)

	bids := levels(t, "100", "1")
	asks := levels(t, "101", "1")
	ck := validChecksum(t, bids, asks, precision)
	ob.ApplySnapshot(bids, asks, ck, 1)

	if ob.History().Len() != 1 {
		t.Fatalf("expected 1 history entry, got %d", ob.History().Len())
	}

	newBids := levels(t, "100", "2")
	ck2 := validChecksum(t, newBids, asks, precision)
	ob.ApplyDelta(newBids, nil, ck2, 2)

	if ob.History().Len() != 2 {
		t.Fatalf("expected 2 history entries, got %d", ob.History().Len())
	}
	latest, ok := ob.History().Latest()
	if !ok || latest.Sequence != 2 {
		t.Fatalf("expected latest sequence 2, got %+v", latest)
	}
}
