// Command marketfeed wires pkg/client into a runnable process: dial one
// venue, subscribe to the book and trade channels for a fixed symbol
// list, and print best bid/ask as they change.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"marketfeed/pkg/client"
	"marketfeed/pkg/eventbus"
	"marketfeed/pkg/market"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	endpoint := os.Getenv("MARKETFEED_WS_ENDPOINT")
	if endpoint == "" {
		endpoint = "wss://ws.example.com/v2"
	}

	symbols := parseSymbols(os.Getenv("MARKETFEED_SYMBOLS"), "BTC/USD", "ETH/USD")

	c := client.New(client.Config{
		Endpoint:    endpoint,
		RESTBaseURL: os.Getenv("MARKETFEED_REST_ENDPOINT"),
		Depth:       10,
	})
	log.Printf("marketfeed: client %s starting, endpoint=%s symbols=%v", c.ID(), endpoint, symbols)

	if err := c.Subscribe(market.ChannelBook, symbols, market.Depth(10)); err != nil {
		log.Fatalf("marketfeed: subscribe book: %v", err)
	}
	if err := c.Subscribe(market.ChannelTrade, symbols, 0); err != nil {
		log.Fatalf("marketfeed: subscribe trade: %v", err)
	}

	go func() {
		<-ctx.Done()
		c.Shutdown()
	}()

	go printEvents(c)

	if err := c.Run(ctx); err != nil {
		log.Fatalf("marketfeed: run: %v", err)
	}
}

func printEvents(c *client.Client) {
	for ev := range c.Events() {
		switch ev.Category {
		case eventbus.CategoryConnection:
			log.Printf("connection: %s", describeConnection(ev.Connection))
		case eventbus.CategorySubscription:
			log.Printf("subscription: %s %s %s", ev.Subscription.Kind.String(), ev.Subscription.Channel, ev.Subscription.Symbol)
		case eventbus.CategoryMarket:
			if ev.Market.Kind == eventbus.MarketOrderbookSnapshot || ev.Market.Kind == eventbus.MarketOrderbookUpdate {
				if bid, ask, ok := bestLevels(c, ev.Market.Symbol); ok {
					log.Printf("%s best bid=%s ask=%s", ev.Market.Symbol, bid, ask)
				}
			}
		case eventbus.CategoryBufferOverflow:
			log.Printf("event bus overflow: %d events dropped since the last overflow report", ev.DroppedCount)
		}
	}
}

func bestLevels(c *client.Client, symbol market.Symbol) (bid, ask string, ok bool) {
	bidPrice, _, bidOK := c.BestBid(symbol)
	askPrice, _, askOK := c.BestAsk(symbol)
	if !bidOK || !askOK {
		return "", "", false
	}
	return bidPrice.String(), askPrice.String(), true
}

func describeConnection(ev eventbus.ConnectionEvent) string {
	switch ev.Kind {
	case eventbus.ConnConnected:
		return "connected (api_version=" + ev.APIVersion + ")"
	case eventbus.ConnReconnecting:
		return "reconnecting: " + ev.Reason
	case eventbus.ConnReconnectFailed:
		return "reconnect failed: " + ev.Reason
	case eventbus.ConnSubscriptionsRestored:
		return "subscriptions restored"
	default:
		return "disconnected: " + ev.Reason
	}
}

func parseSymbols(raw string, fallback ...string) []market.Symbol {
	if raw == "" {
		out := make([]market.Symbol, len(fallback))
		for i, s := range fallback {
			out[i] = market.Symbol(s)
		}
		return out
	}
	parts := strings.Split(raw, ",")
	out := make([]market.Symbol, len(parts))
	for i, p := range parts {
		out[i] = market.Symbol(strings.TrimSpace(p))
	}
	return out
}
