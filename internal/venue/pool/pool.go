// Package pool provides ledger-settled reference venues: constant-product pools whose reserves
// are ledger balances owned by the pool account. Concentrated-liquidity venues are modelled as one
// pool per fee tier.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// ErrInsufficientOutput is returned by Swap when the pool cannot meet the caller's minimum.
var ErrInsufficientOutput = errors.New("insufficient output amount")

// Pool is one two-asset reserve account.
type Pool struct {
	Name    string
	Address solana.PublicKey
	MintA   solana.PublicKey
	MintB   solana.PublicKey
	Tier    uint32 // 0 for constant-product venues
	FeePPM  uint32
}

type poolKey struct {
	a, b solana.PublicKey
	tier uint32
}

func keyFor(x, y solana.PublicKey, tier uint32) poolKey {
	if x.String() > y.String() {
		x, y = y, x
	}
	return poolKey{a: x, b: y, tier: tier}
}

// Adapter implements venue.Adapter over a set of pools. The adapter's address is the spender
// that payers approve before Swap.
type Adapter struct {
	address solana.PublicKey
	reader  ledger.Reader
	pools   map[poolKey]Pool
}

var _ venue.Adapter = (*Adapter)(nil)

// NewAdapter indexes pools by pair and tier. Quotes read committed reserves from reader.
func NewAdapter(address solana.PublicKey, reader ledger.Reader, pools []Pool) (*Adapter, error) {
	a := &Adapter{address: address, reader: reader, pools: make(map[poolKey]Pool, len(pools))}
	for _, p := range pools {
		if p.MintA.Equals(p.MintB) {
			return nil, fmt.Errorf("pool %s: mints must differ", p.Name)
		}
		k := keyFor(p.MintA, p.MintB, p.Tier)
		if _, dup := a.pools[k]; dup {
			return nil, fmt.Errorf("pool %s: duplicate pair at tier %d", p.Name, p.Tier)
		}
		a.pools[k] = p
	}
	return a, nil
}

// Address returns the adapter's spender account.
func (a *Adapter) Address() solana.PublicKey { return a.address }

// Pools returns the configured pools in no particular order.
func (a *Adapter) Pools() []Pool {
	out := make([]Pool, 0, len(a.pools))
	for _, p := range a.pools {
		out = append(out, p)
	}
	return out
}

func (a *Adapter) lookup(tokenIn, tokenOut solana.PublicKey, tier uint32) (Pool, error) {
	p, ok := a.pools[keyFor(tokenIn, tokenOut, tier)]
	if !ok {
		return Pool{}, fmt.Errorf("%w: %s/%s tier %d", venue.ErrNoPool, tokenIn, tokenOut, tier)
	}
	return p, nil
}

type balanceReader interface {
	Balance(ctx context.Context, asset, owner solana.PublicKey) (*big.Int, error)
}

func reserves(ctx context.Context, r balanceReader, p Pool, tokenIn, tokenOut solana.PublicKey) (*big.Int, *big.Int, error) {
	rIn, err := r.Balance(ctx, tokenIn, p.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("read reserve %s: %w", tokenIn, err)
	}
	rOut, err := r.Balance(ctx, tokenOut, p.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("read reserve %s: %w", tokenOut, err)
	}
	return rIn, rOut, nil
}

func (a *Adapter) Quote(ctx context.Context, call venue.QuoteCall) (*big.Int, error) {
	p, err := a.lookup(call.TokenIn, call.TokenOut, call.FeeTier)
	if err != nil {
		return nil, err
	}
	rIn, rOut, err := reserves(ctx, a.reader, p, call.TokenIn, call.TokenOut)
	if err != nil {
		return nil, err
	}
	return AmountOut(call.Amount, rIn, rOut, p.FeePPM)
}

func (a *Adapter) QuoteExactOutput(ctx context.Context, call venue.QuoteCall) (*big.Int, error) {
	p, err := a.lookup(call.TokenIn, call.TokenOut, call.FeeTier)
	if err != nil {
		return nil, err
	}
	rIn, rOut, err := reserves(ctx, a.reader, p, call.TokenIn, call.TokenOut)
	if err != nil {
		return nil, err
	}
	return AmountIn(call.Amount, rIn, rOut, p.FeePPM)
}

// Swap prices against the reserves as seen inside tx, pulls the input from the payer and pays
// the output to the recipient.
func (a *Adapter) Swap(ctx context.Context, tx ledger.Tx, call venue.SwapCall) (*big.Int, error) {
	p, err := a.lookup(call.TokenIn, call.TokenOut, call.FeeTier)
	if err != nil {
		return nil, err
	}
	rIn, rOut, err := reserves(ctx, tx, p, call.TokenIn, call.TokenOut)
	if err != nil {
		return nil, err
	}
	out, err := AmountOut(call.AmountIn, rIn, rOut, p.FeePPM)
	if err != nil {
		return nil, err
	}
	if call.MinAmountOut != nil && out.Cmp(call.MinAmountOut) < 0 {
		return nil, fmt.Errorf("%w: %s < %s", ErrInsufficientOutput, out, call.MinAmountOut)
	}

	if err := tx.TransferFrom(ctx, call.TokenIn, a.address, call.Payer, p.Address, call.AmountIn); err != nil {
		return nil, fmt.Errorf("pull input: %w", err)
	}
	if err := tx.Transfer(ctx, call.TokenOut, p.Address, call.Recipient, out); err != nil {
		return nil, fmt.Errorf("pay output: %w", err)
	}
	return out, nil
}
