package session

import (
	"context"
	"log"
	"strconv"
	"time"

	"marketfeed/pkg/book"
	"marketfeed/pkg/book/l3"
	"marketfeed/pkg/eventbus"
	"marketfeed/pkg/market"
	"marketfeed/pkg/orderbook"
	"marketfeed/pkg/protocol"
	"marketfeed/pkg/transport"
)

// dispatch routes one decoded frame to the matching book(s) and/or emits
// the corresponding event, per the responsibilities laid out for the
// session manager: route by channel then by symbol, run the subscription
// ack bookkeeping, and keep the checksum-mismatch resync path independent
// of connection teardown.
func (s *Session) dispatch(ws *transport.WS, msg protocol.Message) {
	switch msg.Kind {
	case protocol.KindSnapshot:
		for _, d := range msg.Snapshots {
			s.applySnapshot(ws, d)
		}
	case protocol.KindUpdate:
		for _, d := range msg.Updates {
			s.applyUpdate(ws, d)
		}
	case protocol.KindL3Snapshot:
		s.applyL3Snapshot(msg.L3Events)
	case protocol.KindL3Update:
		s.applyL3Update(msg.L3Events)
	case protocol.KindHeartbeat:
		s.bus.Publish(eventbus.Event{Category: eventbus.CategoryMarket, At: time.Now(), Market: eventbus.MarketEvent{Kind: eventbus.MarketHeartbeat}})
	case protocol.KindStatus:
		s.handleStatus(msg.Status)
	case protocol.KindInstrument:
		s.handleInstrument(msg.Instrument)
	case protocol.KindTicker:
		for _, t := range msg.Tickers {
			s.bus.Publish(eventbus.Event{
				Category: eventbus.CategoryMarket,
				At:       time.Now(),
				Market: eventbus.MarketEvent{
					Kind: eventbus.MarketTicker, Symbol: t.Symbol,
					Bid: t.Bid, Ask: t.Ask,
				},
			})
		}
	case protocol.KindTrade:
		for _, tr := range msg.Trades {
			s.bus.Publish(eventbus.Event{
				Category: eventbus.CategoryMarket,
				At:       time.Now(),
				Market: eventbus.MarketEvent{
					Kind: eventbus.MarketTrade, Symbol: tr.Symbol,
					Price: tr.Price, Qty: tr.Qty, Side: tr.Side,
				},
			})
		}
	case protocol.KindOhlc:
		// Carried through without a dedicated payload shape: candle data
		// is not stored anywhere, and each candle's arrival is surfaced
		// only as a MarketOhlc event with no symbol or values.
		for range msg.Ohlc {
			s.bus.Publish(eventbus.Event{Category: eventbus.CategoryMarket, At: time.Now(), Market: eventbus.MarketEvent{Kind: eventbus.MarketOhlc}})
		}
	case protocol.KindMethod:
		s.handleMethod(msg.Method)
	case protocol.KindError:
		s.handleError(msg.Err)
	case protocol.KindUnknown:
		// ignored
	}
}

func (s *Session) applySnapshot(ws *transport.WS, d protocol.SnapshotData) {
	ob := s.bookFor(d.Symbol)
	bids := toBookLevels(d.Bids)
	asks := toBookLevels(d.Asks)

	start := time.Now()
	result, restored, err := ob.ApplySnapshot(bids, asks, d.Checksum, d.Sequence)
	s.health.ObserveChecksum(time.Since(start))
	if err != nil {
		s.handleBookError(ws, d.Symbol, err)
		return
	}
	if result == orderbook.ResultSnapshot {
		s.bus.Publish(eventbus.Event{
			Category: eventbus.CategoryMarket,
			At:       time.Now(),
			Market: eventbus.MarketEvent{
				Kind: eventbus.MarketOrderbookSnapshot, Symbol: d.Symbol,
				Bids: bids, Asks: asks, Checksum: d.Checksum, Sequence: d.Sequence,
			},
		})
		if restored {
			s.bus.Publish(eventbus.Event{
				Category: eventbus.CategoryMarket,
				At:       time.Now(),
				Market: eventbus.MarketEvent{
					Kind: eventbus.MarketStateRestored, Symbol: d.Symbol,
					Sequence: d.Sequence,
				},
			})
		}
	}
}

func (s *Session) applyUpdate(ws *transport.WS, d protocol.UpdateData) {
	ob := s.bookFor(d.Symbol)
	bids := toBookLevels(d.Bids)
	asks := toBookLevels(d.Asks)

	start := time.Now()
	result, err := ob.ApplyDelta(bids, asks, d.Checksum, d.Sequence)
	s.health.ObserveChecksum(time.Since(start))
	if err != nil {
		s.handleBookError(ws, d.Symbol, err)
		return
	}
	if result == orderbook.ResultUpdate {
		s.bus.Publish(eventbus.Event{
			Category: eventbus.CategoryMarket,
			At:       time.Now(),
			Market: eventbus.MarketEvent{
				Kind: eventbus.MarketOrderbookUpdate, Symbol: d.Symbol,
				Bids: bids, Asks: asks, Checksum: d.Checksum, Sequence: d.Sequence,
			},
		})
	}
}

func (s *Session) handleBookError(ws *transport.WS, symbol market.Symbol, err *market.Error) {
	switch err.Kind {
	case market.KindChecksumMismatch:
		s.bus.Publish(eventbus.Event{
			Category: eventbus.CategoryMarket,
			At:       time.Now(),
			Market: eventbus.MarketEvent{
				Kind: eventbus.MarketChecksumMismatch, Symbol: symbol,
				Expected: err.Expected, Computed: err.Computed, Sequence: err.Sequence,
			},
		})
		s.resyncBook(ws, symbol)
	case market.KindOutOfOrder:
		log.Printf("session: %v", err)
	default:
		log.Printf("session: book error: %v", err)
	}
}

// resyncBook issues unsubscribe+resubscribe for a single symbol's book
// channel to force a fresh snapshot, without tearing down the connection.
func (s *Session) resyncBook(ws *transport.WS, symbol market.Symbol) {
	if ws == nil {
		return
	}

	depth := market.Depth(s.cfg.Depth)
	s.mu.RLock()
	for _, sub := range s.subs {
		if sub.Channel != market.ChannelBook {
			continue
		}
		for _, sym := range sub.Symbols {
			if sym == symbol {
				depth = sub.Depth
			}
		}
	}
	s.mu.RUnlock()

	if raw, id, err := protocol.BuildUnsubscribe(market.ChannelBook, []market.Symbol{symbol}); err == nil {
		s.trackPending(id, "unsubscribe", market.ChannelBook, []market.Symbol{symbol})
		_ = ws.Write(context.Background(), raw)
	}
	if raw, id, err := protocol.BuildSubscribe(market.ChannelBook, []market.Symbol{symbol}, depth); err == nil {
		s.trackPending(id, "subscribe", market.ChannelBook, []market.Symbol{symbol})
		_ = ws.Write(context.Background(), raw)
	}

	s.mu.Lock()
	if ob, ok := s.books[symbol]; ok {
		ob.SetAwaitingSnapshot()
	}
	s.mu.Unlock()
}

func (s *Session) applyL3Snapshot(events []protocol.L3Event) {
	s.mu.RLock()
	for _, b := range s.l3Books {
		b.Clear()
	}
	s.mu.RUnlock()
	s.applyL3Update(events)
}

func (s *Session) applyL3Update(events []protocol.L3Event) {
	// L3Event does not carry its symbol (the wire groups by symbol one
	// level up); the caller is expected to have exactly one L3 book
	// subscribed per session in the common case. Multi-symbol L3 sessions
	// route correctly as long as order IDs are globally unique, since
	// HasOrder/OrderSide lookups are keyed by ID within each per-symbol
	// book; here we apply against every subscribed L3 book and rely on
	// AddOrder's duplicate-ID rejection to make the no-op case free.
	s.mu.RLock()
	books := make([]*l3.Book, 0, len(s.l3Books))
	for _, b := range s.l3Books {
		books = append(books, b)
	}
	s.mu.RUnlock()

	for _, b := range books {
		applyL3EventsToBook(b, events)
	}
}

func applyL3EventsToBook(b *l3.Book, events []protocol.L3Event) {
	for _, ev := range events {
		switch ev.Kind {
		case protocol.L3Add:
			if !ev.HasPrice || !ev.HasQty {
				continue
			}
			b.AddOrder(l3.OrderEntry{
				OrderID:    ev.OrderID,
				Price:      ev.Price,
				Qty:        ev.Qty,
				ArrivalSeq: b.NextArrivalSeq(),
			}, ev.Side)
		case protocol.L3Modify:
			if !ev.HasQty {
				continue
			}
			b.ModifyOrder(ev.OrderID, ev.Qty)
		case protocol.L3Delete:
			b.RemoveOrder(ev.OrderID)
		}
	}
}

func (s *Session) handleStatus(status *protocol.StatusData) {
	s.statusMu.Lock()
	already := s.connConfirmed
	s.connConfirmed = true
	s.statusMu.Unlock()

	if already || status == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Category: eventbus.CategoryConnection,
		At:       time.Now(),
		Connection: eventbus.ConnectionEvent{
			Kind:         eventbus.ConnConnected,
			APIVersion:   status.APIVersion,
			ConnectionID: formatConnectionID(status.ConnectionID),
		},
	})
}

func (s *Session) handleInstrument(data *protocol.InstrumentData) {
	if data == nil {
		return
	}
	s.mu.Lock()
	for _, p := range data.Pairs {
		precision := market.Precision{
			PriceScale:   p.PriceScale,
			QtyScale:     p.QtyScale,
			MinOrderSize: p.MinOrderSize,
			TickSize:     p.TickSize,
			Status:       p.Status,
		}
		s.precision[p.Symbol] = precision
		if ob, ok := s.books[p.Symbol]; ok {
			ob.SetPrecision(precision)
		}
	}
	s.mu.Unlock()
}

func (s *Session) handleMethod(m *protocol.MethodEnvelope) {
	if m == nil || m.ReqID == nil {
		return
	}
	req, ok := s.popPending(*m.ReqID)
	if !ok {
		return
	}

	kind := eventbus.SubSubscribed
	if req.method == "unsubscribe" {
		kind = eventbus.SubUnsubscribed
	}
	if !m.Success {
		kind = eventbus.SubError
	}

	for _, sym := range req.symbols {
		s.bus.Publish(eventbus.Event{
			Category: eventbus.CategorySubscription,
			At:       time.Now(),
			Subscription: eventbus.SubscriptionEvent{
				Kind: kind, Channel: req.channel, Symbol: sym, Reason: m.Error,
			},
		})
	}

	if req.method == "subscribe" {
		s.noteRestoreProgress(len(req.symbols))
	}
}

func (s *Session) handleError(e *protocol.ErrorMessage) {
	if e == nil {
		return
	}
	log.Printf("session: venue error: code=%s reason=%s", e.Code, e.Reason)
}

func (s *Session) beginRestore(target int) {
	s.restoreMu.Lock()
	s.restoring = target > 0
	s.restoreTarget = target
	s.restoreDone = 0
	s.restoreMu.Unlock()
}

func (s *Session) noteRestoreProgress(n int) {
	s.restoreMu.Lock()
	if !s.restoring {
		s.restoreMu.Unlock()
		return
	}
	s.restoreDone += n
	done := s.restoreDone >= s.restoreTarget
	count := s.restoreTarget
	if done {
		s.restoring = false
	}
	s.restoreMu.Unlock()

	if done {
		s.bus.Publish(eventbus.Event{
			Category:   eventbus.CategoryConnection,
			At:         time.Now(),
			Connection: eventbus.ConnectionEvent{Kind: eventbus.ConnSubscriptionsRestored, Count: count},
		})
	}
}

func (s *Session) bookFor(symbol market.Symbol) *orderbook.Orderbook {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, ok := s.books[symbol]
	if !ok {
		ob = orderbook.NewWithOptions(symbol, s.cfg.Depth, s.cfg.HistoryCapacity)
		if p, ok := s.precision[symbol]; ok {
			ob.SetPrecision(p)
		}
		s.books[symbol] = ob
	}
	return ob
}

func toBookLevels(levels []protocol.Level) []book.Level {
	out := make([]book.Level, len(levels))
	for i, l := range levels {
		out[i] = book.Level{Price: l.Price, Qty: l.Qty}
	}
	return out
}

func formatConnectionID(id uint64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(id, 10)
}
