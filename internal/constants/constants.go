package constants

import "time"

// Redis keys
const (
	RedisKeyRecentTrades = "trades:recent"
)

// Redis Pub/Sub channels
const (
	PubSubChannelTrades   = "trades:all"
	PubSubPairPrefix      = "trades:pair:"
	PubSubVenuePrefix     = "trades:venue:"
	PubSubPatternAllPairs = PubSubPairPrefix + "*"
)

// Limits
const (
	MaxRecentTrades = 200
)

// Timeouts
const (
	EventPublishTimeout = 2 * time.Second
	DefaultSlotDuration = 400 * time.Millisecond
)

// Well-known mints
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// Token mint addresses to symbols
var TokenSymbols = map[string]string{
	MintSOL:  "SOL",
	MintUSDC: "USDC",
	MintUSDT: "USDT",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs": "ETH",
	"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": "BTC",
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": "RAY",
	"11111111111111111111111111111111":             "SOL (native)",
}

// Symbol returns the ticker for mint, or a shortened address when unknown.
func Symbol(mint string) string {
	if s, ok := TokenSymbols[mint]; ok {
		return s
	}
	if len(mint) > 8 {
		return mint[:4] + ".." + mint[len(mint)-4:]
	}
	return mint
}

// MintBySymbol resolves a ticker back to its mint.
func MintBySymbol(symbol string) (string, bool) {
	for mint, s := range TokenSymbols {
		if s == symbol {
			return mint, true
		}
	}
	return "", false
}
