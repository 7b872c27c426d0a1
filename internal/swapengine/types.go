package swapengine

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/swap-router/internal/router"
)

// SwapRequest is one caller's order.
//
// MinAmountOut is required by Execute. Swap derives it from the planned output and SlippageBps
// when it is nil. A zero Recipient means Origin.
type SwapRequest struct {
	Origin       solana.PublicKey `json:"origin"`
	TokenIn      solana.PublicKey `json:"token_in"`
	TokenOut     solana.PublicKey `json:"token_out"`
	AmountIn     *big.Int         `json:"amount_in"`
	MinAmountOut *big.Int         `json:"min_amount_out,omitempty"`
	SlippageBps  uint32           `json:"slippage_bps"`
	Recipient    solana.PublicKey `json:"recipient"`
	Deadline     time.Time        `json:"deadline"`

	// NativeIn pays with the native asset, wrapped in custody. TokenIn must be the wrapped mint.
	NativeIn bool `json:"native_in,omitempty"`
	// NativeOut unwraps the output before delivery. TokenOut must be the wrapped mint.
	NativeOut bool `json:"native_out,omitempty"`
}

func (r SwapRequest) recipient() solana.PublicKey {
	if r.Recipient.IsZero() {
		return r.Origin
	}
	return r.Recipient
}

// ExecutionResult describes a committed execution.
type ExecutionResult struct {
	ExecutionID  string        `json:"execution_id"`
	Block        uint64        `json:"block"`
	AmountIn     *big.Int      `json:"amount_in"`
	Fee          *big.Int      `json:"fee"`
	SwapAmount   *big.Int      `json:"swap_amount"`
	MinAmountOut *big.Int      `json:"min_amount_out"`
	AmountOut    *big.Int      `json:"amount_out"`
	HopOutputs   []*big.Int    `json:"hop_outputs"`
	Route        *router.Route `json:"route"`
	Recipient    string        `json:"recipient"`
	ExecutedAt   time.Time     `json:"executed_at"`
	Duration     time.Duration `json:"duration"`
}

// Limits groups the admin-tunable trade bounds.
type Limits struct {
	MaxHops        int      `json:"max_hops"`
	MaxRoutes      int      `json:"max_routes"`
	MinTradeSize   *big.Int `json:"min_trade_size"`
	MaxSlippageBps uint32   `json:"max_slippage_bps"`
}
