package market

// Symbol is an opaque venue-canonical instrument identifier, e.g. "BTC/USD".
// Equality is byte-identical; the engine never normalises case or format.
type Symbol string

// String implements fmt.Stringer.
func (s Symbol) String() string { return string(s) }
