// Package decimal wraps shopspring/decimal with the exact parsing and
// fixed-scale rendering the orderbook engine needs: canonical and
// scientific-notation string parsing, overflow-checked arithmetic, and a
// checksum-ready integer-coefficient renderer.
package decimal

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Decimal is an exact base-10 rational. All prices, quantities and sums in
// the engine flow through this type; no float64 ever touches the price or
// quantity path.
type Decimal = decimal.Decimal

// Zero is the additive identity.
var Zero = decimal.Zero

// Two is used by mid-price and similar two-way averages.
var Two = decimal.NewFromInt(2)

// overflowExponent bounds the absolute exponent accepted from the wire.
// Kraken-style feeds never need more than this; beyond it we treat the
// value as a hostile or corrupt frame rather than building an
// arbitrary-precision monster.
const overflowExponent = 1 << 16

// ParseError reports a malformed decimal string from the wire.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return "decimal.Parse: invalid input " + strconvQuote(e.Input) + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

func strconvQuote(s string) string {
	return "\"" + s + "\""
}

// OverflowError reports that a value's exponent exceeds what the engine is
// willing to represent.
type OverflowError struct {
	Input string
}

func (e *OverflowError) Error() string {
	return "decimal.Parse: exponent out of range in " + strconvQuote(e.Input)
}

// Parse accepts canonical decimal strings ("88000.5") and scientific
// notation ("1.5e-8") and returns an exact Decimal. It never truncates.
func Parse(s string) (Decimal, error) {
	if s == "" {
		return Zero, &ParseError{Input: s, Err: errors.New("empty input")}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, &ParseError{Input: s, Err: err}
	}

	if exp := d.Exponent(); exp > overflowExponent || exp < -overflowExponent {
		return Zero, &OverflowError{Input: s}
	}

	return d, nil
}

// ParseJSONNumber parses a JSON-encoded numeric or string token (the wire
// sends both forms depending on the field and venue mood) into a Decimal.
func ParseJSONNumber(raw []byte) (Decimal, error) {
	s := strings.Trim(string(raw), `"`)
	return Parse(s)
}

// Add returns a+b, or an OverflowError if the result's exponent would
// exceed the engine's representable range.
func Add(a, b Decimal) (Decimal, error) {
	return checkedOp(a, b, Decimal.Add)
}

// Sub returns a-b with the same overflow discipline as Add.
func Sub(a, b Decimal) (Decimal, error) {
	return checkedOp(a, b, Decimal.Sub)
}

// Mul returns a*b with the same overflow discipline as Add.
func Mul(a, b Decimal) (Decimal, error) {
	return checkedOp(a, b, Decimal.Mul)
}

func checkedOp(a, b Decimal, op func(Decimal, Decimal) Decimal) (Decimal, error) {
	r := op(a, b)
	if exp := r.Exponent(); exp > overflowExponent || exp < -overflowExponent {
		return Zero, &OverflowError{Input: a.String() + " op " + b.String()}
	}
	return r, nil
}

// RenderFixed renders d at exactly scale decimal places, e.g. RenderFixed(d,
// 8) on 0.001 yields "0.00100000". Used as the canonical pre-checksum
// representation; see pkg/checksum.
func RenderFixed(d Decimal, scale int32) string {
	return d.StringFixed(scale)
}
