package book

import (
	"strconv"
	"testing"

	mdecimal "marketfeed/pkg/decimal"
)

func d(s string) mdecimal.Decimal {
	v, err := mdecimal.Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestBidOrderingDescending(t *testing.T) {
	s := NewSide(true)
	s.Set(d("100"), d("1"))
	s.Set(d("101"), d("2"))
	s.Set(d("99"), d("3"))

	levels := s.Iter()
	if len(levels) != 3 {
		t.Fatalf("got %d levels", len(levels))
	}
	if !levels[0].Price.Equal(d("101")) || !levels[1].Price.Equal(d("100")) || !levels[2].Price.Equal(d("99")) {
		t.Fatalf("wrong order: %+v", levels)
	}
}

func TestAskOrderingAscending(t *testing.T) {
	s := NewSide(false)
	s.Set(d("100"), d("1"))
	s.Set(d("101"), d("2"))
	s.Set(d("99"), d("3"))

	levels := s.Iter()
	if !levels[0].Price.Equal(d("99")) || !levels[1].Price.Equal(d("100")) || !levels[2].Price.Equal(d("101")) {
		t.Fatalf("wrong order: %+v", levels)
	}
}

func TestZeroQtyRemovesLevel(t *testing.T) {
	s := NewSide(true)
	s.Set(d("100"), d("1"))
	if s.Size() != 1 {
		t.Fatalf("expected 1 level")
	}
	s.Set(d("100"), d("0"))
	if s.Size() != 0 {
		t.Fatalf("expected level removed, got %d", s.Size())
	}
}

func TestBestBidAsk(t *testing.T) {
	bids := NewSide(true)
	bids.Set(d("99"), d("1"))
	bids.Set(d("100"), d("1"))

	asks := NewSide(false)
	asks.Set(d("101"), d("1"))
	asks.Set(d("102"), d("1"))

	bb, ok := bids.Best()
	if !ok || !bb.Price.Equal(d("100")) {
		t.Fatalf("got %+v", bb)
	}
	ba, ok := asks.Best()
	if !ok || !ba.Price.Equal(d("101")) {
		t.Fatalf("got %+v", ba)
	}
}

func TestTruncate(t *testing.T) {
	s := NewSide(true)
	for i := 1; i <= 20; i++ {
		s.Set(d(strconv.Itoa(i)), d("1"))
	}
	if s.Size() != 20 {
		t.Fatalf("got %d", s.Size())
	}
	s.Truncate(10)
	if s.Size() != 10 {
		t.Fatalf("got %d", s.Size())
	}
	best, _ := s.Best()
	if !best.Price.Equal(d("20")) {
		t.Fatalf("got %+v", best)
	}
}
