// Package venue holds the registry of liquidity venues the router may trade against and the
// adapter contract each venue implements.
package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/swap-router/internal/ledger"
)

var (
	ErrAlreadyExists = errors.New("venue already exists")
	ErrNotFound      = errors.New("venue not found")
	ErrInvalidVenue  = errors.New("invalid venue")
	// ErrNoPool is returned by adapters that have no pool for the requested pair or tier.
	ErrNoPool = errors.New("no pool for pair")
)

// Kind is the pricing model of a venue.
type Kind string

const (
	ConstantProduct       Kind = "constant_product"
	ConcentratedLiquidity Kind = "concentrated_liquidity"
)

// ParseKind accepts the JSON/HTTP spelling of a kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case ConstantProduct, ConcentratedLiquidity:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidVenue, s)
}

// QuoteCall asks a venue for a price. Amount is the input for Quote and the desired
// output for QuoteExactOutput. FeeTier is zero for constant-product venues.
type QuoteCall struct {
	TokenIn  solana.PublicKey
	TokenOut solana.PublicKey
	Amount   *big.Int
	FeeTier  uint32
}

// SwapCall executes a trade. The venue pulls AmountIn from Payer using the allowance granted
// to its Address and delivers the output to Recipient.
type SwapCall struct {
	TokenIn      solana.PublicKey
	TokenOut     solana.PublicKey
	AmountIn     *big.Int
	MinAmountOut *big.Int
	FeeTier      uint32
	Payer        solana.PublicKey
	Recipient    solana.PublicKey
}

// Adapter is the contract a venue exposes. Every call may fail independently.
// Swap runs inside the caller's ledger transaction so its transfers commit or roll back with it.
type Adapter interface {
	Quote(ctx context.Context, call QuoteCall) (*big.Int, error)
	QuoteExactOutput(ctx context.Context, call QuoteCall) (*big.Int, error)
	Swap(ctx context.Context, tx ledger.Tx, call SwapCall) (*big.Int, error)
}

// Stats are cumulative counters updated after each successful execution.
type Stats struct {
	SuccessCount uint64   `json:"success_count"`
	Volume       *big.Int `json:"volume"`
}

// Venue is one registered liquidity source.
type Venue struct {
	ID       string           `json:"id"`
	Address  solana.PublicKey `json:"address"`
	Kind     Kind             `json:"kind"`
	Active   bool             `json:"active"`
	FeeTiers []uint32         `json:"fee_tiers,omitempty"`
	Stats    Stats            `json:"stats"`
	Adapter  Adapter          `json:"-"`
}

// Tiers returns the fee tiers to quote. Constant-product venues have a single implicit tier 0.
func (v Venue) Tiers() []uint32 {
	if v.Kind == ConcentratedLiquidity {
		return v.FeeTiers
	}
	return []uint32{0}
}

func (v Venue) validate() error {
	switch {
	case v.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidVenue)
	case v.Address.IsZero():
		return fmt.Errorf("%w: %s has no address", ErrInvalidVenue, v.ID)
	case v.Adapter == nil:
		return fmt.Errorf("%w: %s has no adapter", ErrInvalidVenue, v.ID)
	}
	switch v.Kind {
	case ConstantProduct:
		if len(v.FeeTiers) > 0 {
			return fmt.Errorf("%w: %s is constant product but lists fee tiers", ErrInvalidVenue, v.ID)
		}
	case ConcentratedLiquidity:
		if len(v.FeeTiers) == 0 {
			return fmt.Errorf("%w: %s is concentrated liquidity without fee tiers", ErrInvalidVenue, v.ID)
		}
		seen := make(map[uint32]struct{}, len(v.FeeTiers))
		for _, tier := range v.FeeTiers {
			if _, dup := seen[tier]; dup {
				return fmt.Errorf("%w: %s repeats fee tier %d", ErrInvalidVenue, v.ID, tier)
			}
			seen[tier] = struct{}{}
		}
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidVenue, v.ID, v.Kind)
	}
	return nil
}
