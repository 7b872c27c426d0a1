// Package venuetest provides a scriptable venue adapter for tests.
package venuetest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// ErrScripted is the default failure injected by Fail.
var ErrScripted = errors.New("scripted venue failure")

type key struct {
	in, out solana.PublicKey
	tier    uint32
}

type price struct {
	fixed    *big.Int
	num, den *big.Int
	err      error
}

func (p price) out(amount *big.Int) (*big.Int, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.fixed != nil {
		return new(big.Int).Set(p.fixed), nil
	}
	n := new(big.Int).Mul(amount, p.num)
	return n.Div(n, p.den), nil
}

func (p price) in(amount *big.Int) (*big.Int, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.fixed != nil || p.num.Sign() == 0 {
		return nil, venue.ErrNoPool
	}
	// ceil(amount*den/num)
	n := new(big.Int).Mul(amount, p.den)
	n.Add(n, new(big.Int).Sub(p.num, big.NewInt(1)))
	return n.Div(n, p.num), nil
}

// Adapter settles swaps from its own Address: it pulls input to Address and pays output from
// Address, so tests must fund Address with the output asset.
type Adapter struct {
	Address solana.PublicKey

	mu        sync.Mutex
	prices    map[key]price
	swapErr   error
	shortfall *big.Int
	swaps     int
	hook      func(ctx context.Context)
}

var _ venue.Adapter = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{Address: solana.NewWallet().PublicKey(), prices: make(map[key]price)}
}

// Venue wraps a as an active constant-product venue.
func (a *Adapter) Venue(id string) venue.Venue {
	return venue.Venue{ID: id, Address: a.Address, Kind: venue.ConstantProduct, Active: true, Adapter: a}
}

// TieredVenue wraps a as an active concentrated-liquidity venue.
func (a *Adapter) TieredVenue(id string, tiers ...uint32) venue.Venue {
	return venue.Venue{ID: id, Address: a.Address, Kind: venue.ConcentratedLiquidity, Active: true, FeeTiers: tiers, Adapter: a}
}

// SetFixed makes every quote for the pair and tier return amount regardless of input.
func (a *Adapter) SetFixed(in, out solana.PublicKey, tier uint32, amount int64) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[key{in, out, tier}] = price{fixed: big.NewInt(amount)}
	return a
}

// SetRate prices the pair as amount*num/den.
func (a *Adapter) SetRate(in, out solana.PublicKey, tier uint32, num, den int64) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[key{in, out, tier}] = price{num: big.NewInt(num), den: big.NewInt(den)}
	return a
}

// Fail makes quotes and swaps for the pair and tier return err (ErrScripted when nil).
func (a *Adapter) Fail(in, out solana.PublicKey, tier uint32, err error) *Adapter {
	if err == nil {
		err = ErrScripted
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prices[key{in, out, tier}] = price{err: err}
	return a
}

// FailSwaps makes every Swap fail with err while quotes keep working.
func (a *Adapter) FailSwaps(err error) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.swapErr = err
	return a
}

// ShortPay makes Swap deliver amount less than it reports.
func (a *Adapter) ShortPay(amount int64) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shortfall = big.NewInt(amount)
	return a
}

// OnSwap registers fn to run at the start of every Swap, e.g. to attempt a callback.
func (a *Adapter) OnSwap(fn func(ctx context.Context)) *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hook = fn
	return a
}

// Swaps returns the number of successful Swap calls.
func (a *Adapter) Swaps() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.swaps
}

func (a *Adapter) lookup(in, out solana.PublicKey, tier uint32) (price, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.prices[key{in, out, tier}]
	if !ok {
		return price{}, venue.ErrNoPool
	}
	return p, nil
}

func (a *Adapter) Quote(_ context.Context, call venue.QuoteCall) (*big.Int, error) {
	p, err := a.lookup(call.TokenIn, call.TokenOut, call.FeeTier)
	if err != nil {
		return nil, err
	}
	return p.out(call.Amount)
}

func (a *Adapter) QuoteExactOutput(_ context.Context, call venue.QuoteCall) (*big.Int, error) {
	p, err := a.lookup(call.TokenIn, call.TokenOut, call.FeeTier)
	if err != nil {
		return nil, err
	}
	return p.in(call.Amount)
}

func (a *Adapter) Swap(ctx context.Context, tx ledger.Tx, call venue.SwapCall) (*big.Int, error) {
	a.mu.Lock()
	hook, swapErr, shortfall := a.hook, a.swapErr, a.shortfall
	a.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if swapErr != nil {
		return nil, swapErr
	}
	out, err := a.Quote(ctx, venue.QuoteCall{TokenIn: call.TokenIn, TokenOut: call.TokenOut, Amount: call.AmountIn, FeeTier: call.FeeTier})
	if err != nil {
		return nil, err
	}
	if err := tx.TransferFrom(ctx, call.TokenIn, a.Address, call.Payer, a.Address, call.AmountIn); err != nil {
		return nil, err
	}
	paid := out
	if shortfall != nil {
		paid = new(big.Int).Sub(out, shortfall)
		if paid.Sign() < 0 {
			paid.SetInt64(0)
		}
	}
	if err := tx.Transfer(ctx, call.TokenOut, a.Address, call.Recipient, paid); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.swaps++
	a.mu.Unlock()
	return out, nil
}
