// Package checksum computes and validates the venue's per-book CRC32
// checksum: the top 10 levels of each side, rendered at per-instrument
// precision as an integer coefficient with the decimal point and
// insignificant zeros stripped, concatenated asks-then-bids, and run through
// the IEEE CRC32 polynomial.
//
// This package uses the standard library hash/crc32, which implements the
// exact IEEE polynomial the venue's checksum scheme calls for.
package checksum

import (
	"hash/crc32"
	"strings"

	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// Depth is the number of levels per side included in the checksum input.
const Depth = 10

// Level is the minimal price/qty pair the checksum needs; callers pass in
// whichever book-level type they have (book.Level, l3's aggregated view).
type Level struct {
	Price mdecimal.Decimal
	Qty   mdecimal.Decimal
}

// Compute renders asks then bids (venue order) at the given precision and
// returns the resulting CRC32. Fewer than Depth levels on either side is
// not an error; only what's present is included, matching the venue's own
// behavior on thin books.
func Compute(asks, bids []Level, precision market.Precision) uint32 {
	var sb strings.Builder

	n := Depth
	for i := 0; i < n && i < len(asks); i++ {
		writeLevel(&sb, asks[i], precision)
	}
	for i := 0; i < n && i < len(bids); i++ {
		writeLevel(&sb, bids[i], precision)
	}

	return crc32.ChecksumIEEE([]byte(sb.String()))
}

func writeLevel(sb *strings.Builder, lvl Level, precision market.Precision) {
	sb.WriteString(renderCoefficient(lvl.Price, precision.PriceScale))
	sb.WriteString(renderCoefficient(lvl.Qty, precision.QtyScale))
}

// renderCoefficient renders d at the given fixed scale, strips the decimal
// point, and strips leading zeros (but keeps at least one digit, and
// preserves a leading '-' for negative values — the venue never sends
// negative levels, but a defensive render is cheap).
func renderCoefficient(d mdecimal.Decimal, scale int32) string {
	fixed := mdecimal.RenderFixed(d, scale)

	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}

	fixed = strings.Replace(fixed, ".", "", 1)
	fixed = strings.TrimLeft(fixed, "0")
	if fixed == "" {
		fixed = "0"
	}

	if neg {
		return "-" + fixed
	}
	return fixed
}

// Result is the outcome of validating a venue-supplied checksum against a
// locally-computed one.
type Result struct {
	Expected uint32
	Computed uint32
	Valid    bool
	Deferred bool
}

// Validate compares the venue-supplied checksum to the locally computed
// one. When precisionKnown is false, validation is deferred: the venue
// value is trusted and Result.Deferred is set so callers can log and skip
// the Desynchronized transition.
func Validate(asks, bids []Level, precision market.Precision, precisionKnown bool, expected uint32) Result {
	if !precisionKnown {
		return Result{Expected: expected, Deferred: true, Valid: true}
	}

	computed := Compute(asks, bids, precision)
	return Result{
		Expected: expected,
		Computed: computed,
		Valid:    computed == expected,
	}
}
