package market

// Channel identifies a subscribable data stream.
type Channel string

const (
	ChannelBook       Channel = "book"
	ChannelLevel3     Channel = "level3"
	ChannelTicker     Channel = "ticker"
	ChannelTrade      Channel = "trade"
	ChannelOhlc       Channel = "ohlc"
	ChannelInstrument Channel = "instrument"
	ChannelHeartbeat  Channel = "heartbeat"
	ChannelExecutions Channel = "executions"
	ChannelBalances   Channel = "balances"
	ChannelStatus     Channel = "status"
)

// IsPrivate reports whether the channel requires an authenticated session.
func (c Channel) IsPrivate() bool {
	return c == ChannelExecutions || c == ChannelBalances
}

// IsL3 reports whether the channel carries order-identified (not
// price-aggregated) data.
func (c Channel) IsL3() bool {
	return c == ChannelLevel3
}

// Depth is a subscribable orderbook depth tag.
type Depth uint32

const (
	Depth10   Depth = 10
	Depth25   Depth = 25
	Depth100  Depth = 100
	Depth500  Depth = 500
	Depth1000 Depth = 1000
)

// Valid reports whether d is one of the venue's supported depth tags.
func (d Depth) Valid() bool {
	switch d {
	case Depth10, Depth25, Depth100, Depth500, Depth1000:
		return true
	default:
		return false
	}
}
