package models

import "time"

// TradeEvent is published after a committed execution. Amounts are base-unit decimal strings
// so they survive JSON and ClickHouse without precision loss.
type TradeEvent struct {
	ExecutionID string    `json:"execution_id"`
	Timestamp   time.Time `json:"timestamp"`
	Block       uint64    `json:"block"`
	Origin      string    `json:"origin"`
	Recipient   string    `json:"recipient"`
	Pair        string    `json:"pair"` // e.g. "SOL/USDC"
	TokenIn     string    `json:"token_in"`
	TokenOut    string    `json:"token_out"`
	AmountIn    string    `json:"amount_in"`
	Fee         string    `json:"fee"`
	AmountOut   string    `json:"amount_out"`
	Venues      []string  `json:"venues"`
	Hops        int       `json:"hops"`
	NativeIn    bool      `json:"native_in,omitempty"`
	NativeOut   bool      `json:"native_out,omitempty"`
}
