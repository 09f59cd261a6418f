package checksum

import (
	"hash/crc32"
	"testing"

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

func TestRenderCoefficientStripsPointAndZeros(t *testing.T) {
	got := renderCoefficient(d(t, "88000.5"), 1)
	if got != "880005" {
		t.Fatalf("got %q", got)
	}

	got = renderCoefficient(d(t, "0.001"), 3)
	if got != "1" {
		t.Fatalf("got %q", got)
	}
}

func TestComputeMatchesManualConcatenation(t *testing.T) {
	precision := market.Precision{PriceScale: 1, QtyScale: 8}
	asks := []Level{{Price: d(t, "88000.1"), Qty: d(t, "5.00000000")}}
	bids := []Level{{Price: d(t, "87999.9"), Qty: d(t, "2.50000000")}}

	got := Compute(asks, bids, precision)

	want := crc32.ChecksumIEEE([]byte("880001500000000879999250000000"))
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestComputeRespectsDepthCap(t *testing.T) {
	precision := market.Precision{PriceScale: 0, QtyScale: 0}
	var asks []Level
	for i := 0; i < 20; i++ {
		asks = append(asks, Level{Price: d(t, "1"), Qty: d(t, "1")})
	}

	withExtra := Compute(asks, nil, precision)
	withCap := Compute(asks[:Depth], nil, precision)
	if withExtra != withCap {
		t.Fatal("checksum should ignore levels beyond Depth")
	}
}

func TestValidateDeferredWhenPrecisionUnknown(t *testing.T) {
	res := Validate(nil, nil, market.Precision{}, false, 12345)
	if !res.Deferred || !res.Valid {
		t.Fatalf("expected deferred+valid result, got %+v", res)
	}
}

func TestValidateDetectsMismatch(t *testing.T) {
	precision := market.Precision{PriceScale: 1, QtyScale: 8}
	asks := []Level{{Price: d(t, "100"), Qty: d(t, "1")}}

	res := Validate(asks, nil, precision, true, 0xDEADBEEF)
	if res.Valid {
		t.Fatal("expected mismatch")
	}
	if res.Expected != 0xDEADBEEF {
		t.Fatalf("expected field not preserved: %+v", res)
	}
}
