package market

// InstrumentStatus mirrors the venue's trading-status field for a symbol.
// Carried for consumers layered on top of this client (e.g. an order
// validator); this module never acts on it itself since trading is out of
// scope.
type InstrumentStatus string

const (
	StatusOnline      InstrumentStatus = "online"
	StatusCancelOnly  InstrumentStatus = "cancel_only"
	StatusPostOnly    InstrumentStatus = "post_only"
	StatusLimitOnly   InstrumentStatus = "limit_only"
	StatusReduceOnly  InstrumentStatus = "reduce_only"
	StatusMaintenance InstrumentStatus = "maintenance"
)

// Precision is the per-instrument scale the venue guarantees for price and
// quantity, used both for checksum rendering and for display.
type Precision struct {
	PriceScale int32
	QtyScale   int32

	// MinOrderSize and TickSize are reference data carried from the
	// instrument channel for callers layered above this client.
	MinOrderSize string
	TickSize     string
	Status       InstrumentStatus
}

// DefaultPrecision matches the venue's documented default for pairs whose
// instrument metadata has not yet arrived.
var DefaultPrecision = Precision{PriceScale: 1, QtyScale: 8}
