// Package session owns the network side of a single venue connection: it
// dials, replays the persisted subscription set, routes inbound frames to
// the right per-symbol orderbook, runs a heartbeat watchdog, and drives
// reconnection through pkg/reconnect's backoff and circuit breaker.
//
// A single background goroutine is the sole writer to book state. A mutex
// guards the book maps, the subscription set and the current connection;
// readers take it only to look a book up, then read L2 book contents
// through that orderbook's atomically published snapshot.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"

	"marketfeed/pkg/book/l3"
	"marketfeed/pkg/eventbus"
	"marketfeed/pkg/market"
	"marketfeed/pkg/orderbook"
	"marketfeed/pkg/protocol"
	"marketfeed/pkg/reconnect"
	"marketfeed/pkg/stats"
	"marketfeed/pkg/transport"
)

// DefaultDeadTimeout is how long the session tolerates silence from the
// venue (no frames of any kind) before tearing down the connection and
// reconnecting.
const DefaultDeadTimeout = 60 * time.Second

// DefaultEventBufferSize is the event bus's default channel capacity.
const DefaultEventBufferSize = 1024

// Config configures a Session.
type Config struct {
	Endpoint        string
	Depth           int
	HistoryCapacity int
	DeadTimeout     time.Duration
	EventBufferSize int
	Token           string

	Backoff        reconnect.BackoffConfig
	CircuitBreaker reconnect.CircuitBreakerConfig
}

func (c Config) withDefaults() Config {
	if c.Depth <= 0 {
		c.Depth = orderbook.DefaultDepth
	}
	if c.DeadTimeout <= 0 {
		c.DeadTimeout = DefaultDeadTimeout
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = DefaultEventBufferSize
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = reconnect.DefaultBackoffConfig()
	}
	if c.CircuitBreaker.OpenThreshold <= 0 {
		c.CircuitBreaker = reconnect.DefaultCircuitBreakerConfig("session")
	}
	return c
}

// Subscription is a single persisted subscribe intent, replayed
// automatically on every reconnect.
type Subscription struct {
	Channel market.Channel
	Symbols []market.Symbol
	Depth   market.Depth
}

// Session manages one logical connection to the venue across however many
// physical reconnects it takes to stay up.
type Session struct {
	cfg Config

	bus *eventbus.Bus

	mu        sync.RWMutex
	books     map[market.Symbol]*orderbook.Orderbook
	l3Books   map[market.Symbol]*l3.Book
	precision map[market.Symbol]market.Precision
	subs      []Subscription
	ws        *transport.WS

	backoff *reconnect.Backoff
	breaker *reconnect.CircuitBreaker
	health  *stats.FeedHealth

	frameMu sync.Mutex
	lastAt  time.Time

	restoreMu     sync.Mutex
	restoring     bool
	restoreTarget int
	restoreDone   int

	pendingMu sync.Mutex
	pending   map[uint64]pendingRequest

	statusMu      sync.Mutex
	connConfirmed bool

	connectedOnce bool

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

type pendingRequest struct {
	method  string
	channel market.Channel
	symbols []market.Symbol
}

// New creates a Session. Call Run to start the connect/serve loop.
func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg:       cfg,
		bus:       eventbus.New(cfg.EventBufferSize),
		books:     make(map[market.Symbol]*orderbook.Orderbook),
		l3Books:   make(map[market.Symbol]*l3.Book),
		precision: make(map[market.Symbol]market.Precision),
		backoff:   reconnect.NewBackoff(cfg.Backoff),
		breaker:   reconnect.NewCircuitBreaker(cfg.CircuitBreaker),
		health:    stats.NewFeedHealth(),
		pending:   make(map[uint64]pendingRequest),
		shutdownCh: make(chan struct{}),
	}
}

// Events returns the channel consumers drain for market data, connection,
// subscription, private and buffer-overflow notifications.
func (s *Session) Events() <-chan eventbus.Event { return s.bus.Events() }

// DroppedEventCount returns the number of events dropped by the bus
// because the consumer was not keeping up.
func (s *Session) DroppedEventCount() uint64 { return s.bus.DroppedCount() }

// FeedHealth returns the rolling frame-gap and checksum-latency statistics
// for this session's connection.
func (s *Session) FeedHealth() stats.Snapshot { return s.health.Snapshot() }

// Orderbook returns the managed L2 book for symbol, if a book-channel
// subscription for it has been made.
func (s *Session) Orderbook(symbol market.Symbol) (*orderbook.Orderbook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ob, ok := s.books[symbol]
	return ob, ok
}

// L3Book returns the managed L3 book for symbol, if a level3 subscription
// for it has been made.
func (s *Session) L3Book(symbol market.Symbol) (*l3.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.l3Books[symbol]
	return b, ok
}

// SeedPrecision installs instrument precision fetched ahead of time (e.g.
// via pkg/restclient at startup) so checksum validation doesn't have to
// wait on the venue's own instrument channel push after the first connect.
// Call before Run.
func (s *Session) SeedPrecision(precision map[market.Symbol]market.Precision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for symbol, p := range precision {
		s.precision[symbol] = p
		if ob, ok := s.books[symbol]; ok {
			ob.SetPrecision(p)
		}
	}
}

// Subscribe adds channel/symbols to the session's persisted subscription
// set and, if currently connected, sends the subscribe request
// immediately. The subscription survives reconnects.
func (s *Session) Subscribe(channel market.Channel, symbols []market.Symbol, depth market.Depth) error {
	s.mu.Lock()
	sub := Subscription{Channel: channel, Symbols: append([]market.Symbol(nil), symbols...), Depth: depth}
	s.subs = append(s.subs, sub)
	for _, sym := range symbols {
		s.ensureBooksLocked(channel, sym)
	}
	ws := s.ws
	s.mu.Unlock()

	if ws == nil {
		return nil
	}
	return s.sendSubscribe(ws, sub)
}

// Unsubscribe removes channel/symbols from the persisted subscription set
// and, if connected, sends the unsubscribe request immediately.
func (s *Session) Unsubscribe(channel market.Channel, symbols []market.Symbol) error {
	s.mu.Lock()
	s.removeSubLocked(channel, symbols)
	ws := s.ws
	s.mu.Unlock()

	if ws == nil {
		return nil
	}
	raw, id, err := protocol.BuildUnsubscribe(channel, symbols)
	if err != nil {
		return errors.Wrap(err, "session: build unsubscribe")
	}
	s.trackPending(id, "unsubscribe", channel, symbols)
	return ws.Write(context.Background(), raw)
}

func (s *Session) removeSubLocked(channel market.Channel, symbols []market.Symbol) {
	remove := make(map[market.Symbol]bool, len(symbols))
	for _, sym := range symbols {
		remove[sym] = true
	}
	out := s.subs[:0]
	for _, sub := range s.subs {
		if sub.Channel != channel {
			out = append(out, sub)
			continue
		}
		var kept []market.Symbol
		for _, sym := range sub.Symbols {
			if !remove[sym] {
				kept = append(kept, sym)
			}
		}
		if len(kept) > 0 {
			sub.Symbols = kept
			out = append(out, sub)
		}
	}
	s.subs = out
}

// ensureBooksLocked creates (if absent) the per-symbol book(s) matching
// channel and marks them as awaiting a fresh snapshot. Caller holds s.mu.
func (s *Session) ensureBooksLocked(channel market.Channel, symbol market.Symbol) {
	switch channel {
	case market.ChannelBook:
		ob, ok := s.books[symbol]
		if !ok {
			ob = orderbook.NewWithOptions(symbol, s.cfg.Depth, s.cfg.HistoryCapacity)
			s.books[symbol] = ob
		}
		if p, ok := s.precision[symbol]; ok {
			ob.SetPrecision(p)
		}
		ob.SetAwaitingSnapshot()
	case market.ChannelLevel3:
		if _, ok := s.l3Books[symbol]; !ok {
			s.l3Books[symbol] = l3.NewBook(symbol)
		}
	}
}

func (s *Session) sendSubscribe(ws *transport.WS, sub Subscription) error {
	raw, id, err := protocol.BuildSubscribe(sub.Channel, sub.Symbols, sub.Depth)
	if err != nil {
		return errors.Wrap(err, "session: build subscribe")
	}
	s.trackPending(id, "subscribe", sub.Channel, sub.Symbols)
	return ws.Write(context.Background(), raw)
}

func (s *Session) trackPending(id uint64, method string, channel market.Channel, symbols []market.Symbol) {
	s.pendingMu.Lock()
	s.pending[id] = pendingRequest{method: method, channel: channel, symbols: symbols}
	s.pendingMu.Unlock()
}

func (s *Session) popPending(id uint64) (pendingRequest, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	req, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return req, ok
}

// Shutdown stops the session's Run loop and clears all managed book state.
// Idempotent.
func (s *Session) Shutdown() {
	first := false
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
		first = true
	})

	s.mu.Lock()
	for _, ob := range s.books {
		ob.Reset()
	}
	for _, b := range s.l3Books {
		b.Clear()
	}
	s.mu.Unlock()

	if first {
		s.bus.Close()
	}
}

// Run drives the connect/serve/reconnect loop until ctx is canceled or
// Shutdown is called. It returns nil on a clean stop.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.shutdownCh:
			return nil
		default:
		}

		if !s.breaker.Allow() {
			s.bus.Publish(eventbus.Event{
				Category: eventbus.CategoryConnection,
				At:       time.Now(),
				Connection: eventbus.ConnectionEvent{
					Kind:   eventbus.ConnReconnectFailed,
					Reason: "circuit breaker open",
				},
			})
			if !s.sleep(ctx, s.cfg.CircuitBreaker.ResetTimeout) {
				return nil
			}
			continue
		}

		err := s.connectAndServe(ctx)
		if err == nil {
			return nil
		}

		s.breaker.RecordFailure()
		delay := s.backoff.Next()
		log.Printf("session: connection lost: %v (retrying in %s)", err, delay)
		s.bus.Publish(eventbus.Event{
			Category: eventbus.CategoryConnection,
			At:       time.Now(),
			Connection: eventbus.ConnectionEvent{
				Kind:    eventbus.ConnReconnecting,
				Attempt: s.backoff.Attempt(),
				Delay:   delay,
				Reason:  err.Error(),
			},
		})
		if !s.sleep(ctx, delay) {
			return nil
		}
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-s.shutdownCh:
		return false
	}
}

func (s *Session) connectAndServe(parent context.Context) error {
	connCtx, cancel := context.WithCancel(parent)
	defer cancel()

	ws := &transport.WS{}
	if err := ws.Connect(connCtx, s.cfg.Endpoint); err != nil {
		return errors.Wrap(err, "session: connect")
	}
	defer ws.Close()

	s.breaker.RecordSuccess()
	s.backoff.Reset()
	s.touchLastFrame()

	s.statusMu.Lock()
	s.connConfirmed = false
	s.statusMu.Unlock()

	s.mu.Lock()
	s.ws = ws
	subs := append([]Subscription(nil), s.subs...)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ws = nil
		s.mu.Unlock()
	}()

	s.mu.Lock()
	isReconnect := s.connectedOnce
	s.connectedOnce = true
	s.mu.Unlock()

	if len(subs) > 0 {
		if isReconnect {
			s.beginRestore(countSymbols(subs))
		}
		for _, sub := range subs {
			s.mu.Lock()
			for _, sym := range sub.Symbols {
				s.ensureBooksLocked(sub.Channel, sym)
			}
			s.mu.Unlock()
			if err := s.sendSubscribe(ws, sub); err != nil {
				return err
			}
		}
	}

	rawCh := make(chan []byte, 256)
	listenErrCh := make(chan error, 1)
	go func() {
		listenErrCh <- ws.Listen(connCtx, rawCh)
	}()

	watchdogDone := make(chan struct{})
	go s.heartbeatWatchdog(connCtx, cancel, watchdogDone)

	for {
		select {
		case <-parent.Done():
			<-watchdogDone
			return nil
		case <-s.shutdownCh:
			cancel()
			<-watchdogDone
			return nil
		case err := <-listenErrCh:
			<-watchdogDone
			if err == nil && connCtx.Err() != nil && parent.Err() == nil {
				return errors.New("session: heartbeat watchdog timeout")
			}
			return err
		case raw := <-rawCh:
			s.touchLastFrame()
			s.handleFrame(ws, raw)
		}
	}
}

func countSymbols(subs []Subscription) int {
	n := 0
	for _, sub := range subs {
		n += len(sub.Symbols)
	}
	return n
}

func (s *Session) handleFrame(ws *transport.WS, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		log.Printf("session: decode error: %v", err)
		return
	}
	s.dispatch(ws, msg)
}
