package session

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"marketfeed/pkg/eventbus"
	"marketfeed/pkg/market"
	"marketfeed/pkg/reconnect"
)

// fakeVenue is a minimal venue simulator: on connect it sends a status
// message, then for every subscribe request it acks and, for book
// channels, follows up with a snapshot.
func fakeVenue(t *testing.T) (addr string, close func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		c.WriteJSON(map[string]interface{}{
			"channel": "status",
			"type":    "update",
			"data":    []map[string]interface{}{{"system": "online", "api_version": "v2", "connection_id": 99}},
		})

		for {
			var req map[string]interface{}
			if err := c.ReadJSON(&req); err != nil {
				return
			}
			method, _ := req["method"].(string)
			reqID := req["req_id"]
			params, _ := req["params"].(map[string]interface{})

			switch method {
			case "subscribe":
				c.WriteJSON(map[string]interface{}{"method": "subscribe", "success": true, "req_id": reqID})
				if params["channel"] == "book" {
					symbols, _ := params["symbol"].([]interface{})
					var sym interface{}
					if len(symbols) > 0 {
						sym = symbols[0]
					}
					c.WriteJSON(map[string]interface{}{
						"channel": "book",
						"type":    "snapshot",
						"data": []map[string]interface{}{{
							"symbol":   sym,
							"bids":     []map[string]interface{}{{"price": 100, "qty": 1}},
							"asks":     []map[string]interface{}{{"price": 101, "qty": 1}},
							"checksum": 0,
						}},
					})
				}
			case "unsubscribe":
				c.WriteJSON(map[string]interface{}{"method": "unsubscribe", "success": true, "req_id": reqID})
			}
		}
	})

	l, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: mux}
	go srv.Serve(l)
	return "ws://" + l.Addr().String() + "/", func() { srv.Close() }
}

func TestSessionConnectsSubscribesAndReceivesSnapshot(t *testing.T) {
	addr, closeSrv := fakeVenue(t)
	defer closeSrv()

	s := New(Config{
		Endpoint:        addr,
		EventBufferSize: 32,
		DeadTimeout:     time.Second,
	})

	if err := s.Subscribe(market.ChannelBook, []market.Symbol{"BTC/USD"}, market.Depth(10)); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	var sawConnected, sawSnapshot bool
	deadline := time.After(3 * time.Second)
	for !sawConnected || !sawSnapshot {
		select {
		case ev := <-s.Events():
			switch ev.Category {
			case eventbus.CategoryConnection:
				if ev.Connection.Kind == eventbus.ConnConnected {
					sawConnected = true
				}
			case eventbus.CategoryMarket:
				if ev.Market.Kind == eventbus.MarketOrderbookSnapshot {
					sawSnapshot = true
				}
			}
		case <-deadline:
			t.Fatalf("timed out: connected=%v snapshot=%v", sawConnected, sawSnapshot)
		}
	}

	ob, ok := s.Orderbook("BTC/USD")
	if !ok {
		t.Fatal("orderbook not present")
	}
	if !ob.IsSynced() {
		t.Fatalf("book state = %v, want Synced", ob.State())
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestSessionShutdownStopsRunLoop(t *testing.T) {
	addr, closeSrv := fakeVenue(t)
	defer closeSrv()

	s := New(Config{Endpoint: addr, EventBufferSize: 8})
	ctx := context.Background()

	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	s.Shutdown()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestSessionReconnectsAfterServerDrop(t *testing.T) {
	addr, closeSrv := fakeVenue(t)

	s := New(Config{
		Endpoint:        addr,
		EventBufferSize: 32,
		DeadTimeout:     time.Second,
		Backoff:         reconnect.DefaultBackoffConfig().WithInitialDelay(10 * time.Millisecond).WithMaxDelay(50 * time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()

	// Wait for the first Connected event, then yank the server out from
	// under the session and confirm it attempts to reconnect.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Category == eventbus.CategoryConnection && ev.Connection.Kind == eventbus.ConnConnected {
				goto connected
			}
		case <-deadline:
			t.Fatal("timed out waiting for initial connection")
		}
	}
connected:
	closeSrv()

	deadline = time.After(3 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Category == eventbus.CategoryConnection && ev.Connection.Kind == eventbus.ConnReconnecting {
				cancel()
				select {
				case <-runDone:
				case <-time.After(2 * time.Second):
					t.Fatal("Run did not return after context cancel")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reconnecting event")
		}
	}
}
