package router

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	// BpsDenominator is 100%.
	BpsDenominator = 10_000
	// MaxFeeBps is the hard ceiling on the protocol fee (10%).
	MaxFeeBps = 1_000
	// MaxHopsLimit bounds route length.
	MaxHopsLimit = 3
)

// Config drives planning and the execution limits derived from it.
type Config struct {
	MaxHops        int      `json:"max_hops"`
	MaxRoutes      int      `json:"max_routes"`
	MinTradeSize   *big.Int `json:"min_trade_size"`
	MaxSlippageBps uint32   `json:"max_slippage_bps"`
	FeeBps         uint32   `json:"fee_bps"`

	// GasPerHop maps route length to its gas estimate. Missing lengths scale GasPerHop[1].
	GasPerHop map[int]uint64 `json:"gas_per_hop"`
	// GasPrice converts gas into output-asset base units. GasPrices overrides it per output mint.
	GasPrice        decimal.Decimal            `json:"gas_price"`
	GasPrices       map[string]decimal.Decimal `json:"gas_prices,omitempty"`
	GasOptimization bool                       `json:"gas_optimization"`

	Intermediates []solana.PublicKey `json:"intermediates"`
}

func DefaultConfig() Config {
	return Config{
		MaxHops:        2,
		MaxRoutes:      8,
		MinTradeSize:   big.NewInt(1_000),
		MaxSlippageBps: 500,
		FeeBps:         10,
		GasPerHop: map[int]uint64{
			1: 150_000,
			2: 280_000,
			3: 400_000,
		},
		GasPrice: decimal.Zero,
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c Config) Clone() Config {
	out := c
	if c.MinTradeSize != nil {
		out.MinTradeSize = new(big.Int).Set(c.MinTradeSize)
	}
	out.GasPerHop = make(map[int]uint64, len(c.GasPerHop))
	for k, v := range c.GasPerHop {
		out.GasPerHop[k] = v
	}
	if c.GasPrices != nil {
		out.GasPrices = make(map[string]decimal.Decimal, len(c.GasPrices))
		for k, v := range c.GasPrices {
			out.GasPrices[k] = v
		}
	}
	out.Intermediates = append([]solana.PublicKey(nil), c.Intermediates...)
	return out
}

// Validate checks every bound. The first violation is returned as a *ValidationError.
func (c Config) Validate() error {
	switch {
	case c.MaxHops < 1 || c.MaxHops > MaxHopsLimit:
		return invalid("max_hops", fmt.Sprintf("must be in [1,%d], got %d", MaxHopsLimit, c.MaxHops))
	case c.MaxRoutes < 1:
		return invalid("max_routes", fmt.Sprintf("must be >= 1, got %d", c.MaxRoutes))
	case c.MinTradeSize == nil || c.MinTradeSize.Sign() <= 0:
		return invalid("min_trade_size", "must be > 0")
	case c.MaxSlippageBps > BpsDenominator:
		return invalid("max_slippage_bps", fmt.Sprintf("must be <= %d, got %d", BpsDenominator, c.MaxSlippageBps))
	case c.FeeBps > MaxFeeBps:
		return invalid("fee_bps", fmt.Sprintf("must be <= %d, got %d", MaxFeeBps, c.FeeBps))
	case c.GasPrice.IsNegative():
		return invalid("gas_price", "must be >= 0")
	}
	for mint, p := range c.GasPrices {
		if p.IsNegative() {
			return invalid("gas_prices", fmt.Sprintf("price for %s must be >= 0", mint))
		}
	}
	seen := make(map[solana.PublicKey]bool, len(c.Intermediates))
	for _, x := range c.Intermediates {
		if x.IsZero() {
			return invalid("intermediates", "zero address")
		}
		if seen[x] {
			return invalid("intermediates", fmt.Sprintf("duplicate %s", x))
		}
		seen[x] = true
	}
	return nil
}

// GasEstimate returns the gas for a route of the given length.
func (c Config) GasEstimate(hops int) uint64 {
	if g, ok := c.GasPerHop[hops]; ok {
		return g
	}
	return c.GasPerHop[1] * uint64(hops)
}

// GasCost converts gas into base units of tokenOut, rounded down.
func (c Config) GasCost(gas uint64, tokenOut solana.PublicKey) *big.Int {
	price := c.GasPrice
	if p, ok := c.GasPrices[tokenOut.String()]; ok {
		price = p
	}
	if !price.IsPositive() || gas == 0 {
		return new(big.Int)
	}
	cost := decimal.NewFromBigInt(new(big.Int).SetUint64(gas), 0).Mul(price)
	return cost.Floor().BigInt()
}

// ApplySlippage returns the minimum acceptable output for amount at slippageBps tolerance.
func ApplySlippage(amount *big.Int, slippageBps uint32) *big.Int {
	if slippageBps >= BpsDenominator || amount == nil {
		return new(big.Int)
	}

	// minOut = amount * (10000 - slippageBps) / 10000
	result := new(big.Int).Mul(amount, big.NewInt(int64(BpsDenominator-slippageBps)))
	return result.Div(result, big.NewInt(BpsDenominator))
}
