// Package orderbook implements the L2 orderbook state machine:
// Uninitialized → AwaitingSnapshot → Synced ↔ Desynchronized, with
// transactional delta application, CRC32 checksum validation, and a
// history ring for replay.
//
// A single background goroutine is the sole writer; readers never take a
// lock on the hot path because each apply swaps in a fresh snapshot via
// atomic.Pointer instead of mutating shared state in place.
package orderbook

import (
	"sync/atomic"

	"marketfeed/pkg/book"
	"marketfeed/pkg/checksum"
	mdecimal "marketfeed/pkg/decimal"
	"marketfeed/pkg/market"
)

// State is the orderbook's synchronization state.
type State uint8

const (
	Uninitialized State = iota
	AwaitingSnapshot
	Synced
	Desynchronized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case AwaitingSnapshot:
		return "AwaitingSnapshot"
	case Synced:
		return "Synced"
	case Desynchronized:
		return "Desynchronized"
	default:
		return "Unknown"
	}
}

// ApplyResult reports what a call to ApplySnapshot/ApplyDelta actually did.
type ApplyResult uint8

const (
	ResultSnapshot ApplyResult = iota
	ResultUpdate
	ResultIgnored
)

// DefaultDepth is the default subscribed depth, matching the venue's
// default book subscription.
const DefaultDepth = 10

// DefaultHistoryCapacity is a history ring size callers may pass to
// NewWithOptions. No constructor applies it on its own: a capacity of 0
// disables history.
const DefaultHistoryCapacity = 100

// Orderbook is a single symbol's managed L2 book: state machine, checksum
// validation, history ring, and a published immutable Snapshot for
// lock-free reads.
type Orderbook struct {
	symbol market.Symbol
	depth  int

	bids *book.Side
	asks *book.Side

	state        State
	lastChecksum uint32
	sequence     uint64

	precision      market.Precision
	precisionKnown bool

	history *History

	published atomic.Pointer[Snapshot]
}

// New creates an orderbook for symbol at the default depth with history
// retention disabled.
func New(symbol market.Symbol) *Orderbook {
	return NewWithOptions(symbol, DefaultDepth, 0)
}

// NewWithOptions creates an orderbook with an explicit subscribed depth and
// history ring capacity (0 disables history).
func NewWithOptions(symbol market.Symbol, depth int, historyCapacity int) *Orderbook {
	ob := &Orderbook{
		symbol:  symbol,
		depth:   depth,
		bids:    book.NewSide(true),
		asks:    book.NewSide(false),
		state:   Uninitialized,
		history: NewHistory(historyCapacity),
	}
	ob.publish()
	return ob
}

// Symbol returns the book's symbol.
func (ob *Orderbook) Symbol() market.Symbol { return ob.symbol }

// State returns the current synchronization state.
func (ob *Orderbook) State() State { return ob.state }

// IsSynced reports whether the book is currently Synced.
func (ob *Orderbook) IsSynced() bool { return ob.state == Synced }

// Depth returns the subscribed depth.
func (ob *Orderbook) Depth() int { return ob.depth }

// SetPrecision installs the per-instrument price/qty scale used for
// checksum rendering. Until this is called, checksum validation is
// deferred (per the venue's instrument-channel timing).
func (ob *Orderbook) SetPrecision(p market.Precision) {
	ob.precision = p
	ob.precisionKnown = true
}

// Precision returns the currently installed precision and whether it has
// been set.
func (ob *Orderbook) Precision() (market.Precision, bool) {
	return ob.precision, ob.precisionKnown
}

// SetAwaitingSnapshot marks the book as subscribed and waiting for its
// first snapshot. Call this immediately after issuing a subscribe.
func (ob *Orderbook) SetAwaitingSnapshot() {
	ob.state = AwaitingSnapshot
}

// Current returns the most recently published immutable snapshot. Safe to
// call concurrently with ApplySnapshot/ApplyDelta from any goroutine;
// never blocks and never observes a torn state.
func (ob *Orderbook) Current() Snapshot {
	return *ob.published.Load()
}

// ApplySnapshot installs a full book image, replacing any existing state.
// Accepted from Uninitialized, AwaitingSnapshot, Synced or Desynchronized
// alike — a snapshot always wins. The second return value reports whether
// the book was Desynchronized immediately before this call and the
// snapshot brought it back to Synced, so the caller can emit a distinct
// restore notification in addition to the ordinary snapshot event.
func (ob *Orderbook) ApplySnapshot(bids, asks []book.Level, wireChecksum uint32, sequence uint64) (ApplyResult, bool, *market.Error) {
	ob.bids.Clear()
	ob.asks.Clear()

	for _, l := range bids {
		ob.bids.Set(l.Price, l.Qty)
	}
	for _, l := range asks {
		ob.asks.Set(l.Price, l.Qty)
	}
	ob.bids.Truncate(ob.depth)
	ob.asks.Truncate(ob.depth)

	wasDesynced := ob.state == Desynchronized

	if err := ob.validate(wireChecksum); err != nil {
		return ResultIgnored, false, err
	}

	ob.state = Synced
	ob.sequence = sequence
	ob.publish()
	ob.pushHistory()

	return ResultSnapshot, wasDesynced, nil
}

// ApplyDelta applies an incremental update transactionally: bids/asks are
// staged on scratch copies, checksum is validated against the would-be
// post-delta state, and only on success is the result committed. A
// checksum mismatch leaves the live book untouched and transitions the
// state to Desynchronized.
func (ob *Orderbook) ApplyDelta(bids, asks []book.Level, wireChecksum uint32, sequence uint64) (ApplyResult, *market.Error) {
	if ob.state != Synced {
		return ResultIgnored, market.NewError(market.KindOutOfOrder, ob.symbol, "delta received while not synced", nil)
	}

	stagedBids := ob.bids.Clone()
	stagedAsks := ob.asks.Clone()

	for _, l := range bids {
		stagedBids.Set(l.Price, l.Qty)
	}
	for _, l := range asks {
		stagedAsks.Set(l.Price, l.Qty)
	}
	stagedBids.Truncate(ob.depth)
	stagedAsks.Truncate(ob.depth)

	res := checksum.Validate(
		toChecksumLevels(stagedAsks.Iter()),
		toChecksumLevels(stagedBids.Iter()),
		ob.precision,
		ob.precisionKnown,
		wireChecksum,
	)

	if !res.Valid {
		ob.state = Desynchronized
		return ResultIgnored, &market.Error{
			Kind:     market.KindChecksumMismatch,
			Symbol:   ob.symbol,
			Message:  "checksum mismatch applying delta",
			Expected: res.Expected,
			Computed: res.Computed,
			Sequence: sequence,
		}
	}

	// Commit: swap in the staged sides.
	ob.bids = stagedBids
	ob.asks = stagedAsks
	ob.lastChecksum = wireChecksum
	ob.sequence = sequence
	ob.publish()
	ob.pushHistory()

	return ResultUpdate, nil
}

// validate checks the live (just-installed) book state against
// wireChecksum, transitioning to Desynchronized and returning an error on
// mismatch, or recording lastChecksum on success. Used by ApplySnapshot,
// where there is no staged/committed split since a snapshot always
// replaces the book outright.
func (ob *Orderbook) validate(wireChecksum uint32) *market.Error {
	res := checksum.Validate(
		toChecksumLevels(ob.asks.Iter()),
		toChecksumLevels(ob.bids.Iter()),
		ob.precision,
		ob.precisionKnown,
		wireChecksum,
	)

	if !res.Valid {
		ob.state = Desynchronized
		return &market.Error{
			Kind:     market.KindChecksumMismatch,
			Symbol:   ob.symbol,
			Message:  "checksum mismatch applying snapshot",
			Expected: res.Expected,
			Computed: res.Computed,
		}
	}

	ob.lastChecksum = wireChecksum
	return nil
}

func toChecksumLevels(levels []book.Level) []checksum.Level {
	out := make([]checksum.Level, len(levels))
	for i, l := range levels {
		out[i] = checksum.Level{Price: l.Price, Qty: l.Qty}
	}
	return out
}

// BestBid returns the best bid level of the published snapshot, if any.
func (ob *Orderbook) BestBid() (book.Level, bool) { return ob.Current().BestBid() }

// BestAsk returns the best ask level of the published snapshot, if any.
func (ob *Orderbook) BestAsk() (book.Level, bool) { return ob.Current().BestAsk() }

// Spread returns best ask minus best bid.
func (ob *Orderbook) Spread() (mdecimal.Decimal, bool) {
	bid, ok1 := ob.BestBid()
	ask, ok2 := ob.BestAsk()
	if !ok1 || !ok2 {
		return mdecimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// MidPrice returns (best bid + best ask) / 2.
func (ob *Orderbook) MidPrice() (mdecimal.Decimal, bool) {
	bid, ok1 := ob.BestBid()
	ask, ok2 := ob.BestAsk()
	if !ok1 || !ok2 {
		return mdecimal.Zero, false
	}
	return ask.Price.Add(bid.Price).Div(mdecimal.Two), true
}

// TopBids returns up to n bid levels from the best.
func (ob *Orderbook) TopBids(n int) []book.Level { return ob.bids.TopN(n) }

// TopAsks returns up to n ask levels from the best.
func (ob *Orderbook) TopAsks(n int) []book.Level { return ob.asks.TopN(n) }

// BidCount returns the number of bid levels.
func (ob *Orderbook) BidCount() int { return ob.bids.Size() }

// AskCount returns the number of ask levels.
func (ob *Orderbook) AskCount() int { return ob.asks.Size() }

// LastChecksum returns the last successfully validated checksum.
func (ob *Orderbook) LastChecksum() uint32 { return ob.lastChecksum }

// Sequence returns the last applied sequence number, if the venue supplied
// one.
func (ob *Orderbook) Sequence() uint64 { return ob.sequence }

// History returns the book's history ring. With retention disabled the
// ring has capacity 0 and stays empty.
func (ob *Orderbook) History() *History { return ob.history }

// Reset clears all storage and history and returns the book to
// Uninitialized. Idempotent.
func (ob *Orderbook) Reset() {
	ob.bids.Clear()
	ob.asks.Clear()
	ob.lastChecksum = 0
	ob.sequence = 0
	ob.state = Uninitialized
	ob.history.Clear()
	ob.publish()
}

func (ob *Orderbook) publish() {
	snap := &Snapshot{
		Symbol:   ob.symbol,
		Bids:     append([]book.Level(nil), ob.bids.Iter()...),
		Asks:     append([]book.Level(nil), ob.asks.Iter()...),
		Checksum: ob.lastChecksum,
		Sequence: ob.sequence,
		State:    ob.state,
	}
	ob.published.Store(snap)
}

func (ob *Orderbook) pushHistory() {
	ob.history.Push(ob.Current())
}
