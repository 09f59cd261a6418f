// Package book implements the Level 2 (price-aggregated) per-side
// orderbook storage: an ordered price->quantity mapping, descending for
// bids and ascending for asks.
//
// Levels are kept in a slice sorted with the standard library sort
// package rather than a tree or ordered map: book depths are small and
// bounded, so a linear insert/scan is simpler and fast enough.
package book

import (
	"sort"

	mdecimal "marketfeed/pkg/decimal"
)

// Level is a single price/quantity pair. Invariant: Qty > 0 whenever stored
// in a Side; a delta with Qty == 0 means "remove this level".
type Level struct {
	Price mdecimal.Decimal
	Qty   mdecimal.Decimal
}

// Side is an ordered price->qty mapping for one side of the book.
// Bid sides are kept descending by price; ask sides ascending.
type Side struct {
	levels     []Level
	descending bool
}

// NewSide creates an empty Side. descending selects bid ordering (true) or
// ask ordering (false).
func NewSide(descending bool) *Side {
	return &Side{descending: descending}
}

func (s *Side) less(a, b mdecimal.Decimal) bool {
	if s.descending {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// search returns the index at which price is, or would be inserted to keep
// the slice ordered.
func (s *Side) search(price mdecimal.Decimal) int {
	return sort.Search(len(s.levels), func(i int) bool {
		return !s.less(s.levels[i].Price, price)
	})
}

func (s *Side) find(price mdecimal.Decimal) (int, bool) {
	i := s.search(price)
	if i < len(s.levels) && s.levels[i].Price.Equal(price) {
		return i, true
	}
	return i, false
}

// Set inserts or replaces the level at price. qty == 0 removes the level.
func (s *Side) Set(price, qty mdecimal.Decimal) {
	i, found := s.find(price)
	if qty.IsZero() {
		if found {
			s.levels = append(s.levels[:i], s.levels[i+1:]...)
		}
		return
	}

	if found {
		s.levels[i].Qty = qty
		return
	}

	s.levels = append(s.levels, Level{})
	copy(s.levels[i+1:], s.levels[i:])
	s.levels[i] = Level{Price: price, Qty: qty}
}

// ApplyDeltaBatch applies a batch of (price, qty) pairs atomically: either
// all are applied or none are (errors never occur here since Set cannot
// fail, but the method exists so callers can stage-then-commit against a
// cloned Side, per the orderbook state machine's transactional discipline).
func (s *Side) ApplyDeltaBatch(deltas []Level) {
	for _, d := range deltas {
		s.Set(d.Price, d.Qty)
	}
}

// Best returns the best (first-ordered) level, if any.
func (s *Side) Best() (Level, bool) {
	if len(s.levels) == 0 {
		return Level{}, false
	}
	return s.levels[0], true
}

// TopN returns up to n levels from the best.
func (s *Side) TopN(n int) []Level {
	if n > len(s.levels) {
		n = len(s.levels)
	}
	out := make([]Level, n)
	copy(out, s.levels[:n])
	return out
}

// Iter returns all levels in order. The returned slice must not be mutated.
func (s *Side) Iter() []Level {
	return s.levels
}

// Size returns the number of price levels.
func (s *Side) Size() int {
	return len(s.levels)
}

// Clear removes all levels.
func (s *Side) Clear() {
	s.levels = s.levels[:0]
}

// Clone returns a deep-enough copy (Level values are themselves immutable
// decimal pairs, so a slice copy suffices) safe to mutate independently.
func (s *Side) Clone() *Side {
	clone := &Side{descending: s.descending, levels: make([]Level, len(s.levels))}
	copy(clone.levels, s.levels)
	return clone
}

// Truncate keeps only the best maxDepth levels.
func (s *Side) Truncate(maxDepth int) {
	if maxDepth >= 0 && len(s.levels) > maxDepth {
		s.levels = s.levels[:maxDepth]
	}
}
