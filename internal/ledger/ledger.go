// Package ledger defines the fungible-asset ledger the swap engine settles against.
//
// The engine never owns balances; it opens a transaction, moves funds through it and either
// commits or rolls back. Venues that settle on the same ledger receive the open transaction so
// their transfers join the same unit of work.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrApproveNotReset is returned by assets that refuse changing a non-zero allowance
	// to another non-zero value without passing through zero first.
	ErrApproveNotReset = errors.New("allowance must be reset to zero before changing")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTxDone          = errors.New("transaction already committed or rolled back")
)

// Native is the chain's native asset (lamports). Wrapped is its ledger-tracked token form.
var (
	Native  = solana.SystemProgramID
	Wrapped = solana.WrappedSol
)

// Reader exposes committed balances.
type Reader interface {
	Balance(ctx context.Context, asset, owner solana.PublicKey) (*big.Int, error)
}

// Ledger opens transactions over balances and allowances.
type Ledger interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
}

// Seeder funds accounts outside of any transaction. Used for genesis balances and venue reserves.
type Seeder interface {
	Mint(ctx context.Context, asset, owner solana.PublicKey, amount *big.Int) error
	RequireApproveReset(ctx context.Context, asset solana.PublicKey) error
}

// Tx is one atomic unit of work. Reads observe the transaction's own uncommitted writes.
// Rollback after Commit is a no-op so callers can always defer it.
type Tx interface {
	Balance(ctx context.Context, asset, owner solana.PublicKey) (*big.Int, error)
	Allowance(ctx context.Context, asset, owner, spender solana.PublicKey) (*big.Int, error)

	Transfer(ctx context.Context, asset, from, to solana.PublicKey, amount *big.Int) error
	TransferFrom(ctx context.Context, asset, spender, from, to solana.PublicKey, amount *big.Int) error
	Approve(ctx context.Context, asset, owner, spender solana.PublicKey, amount *big.Int) error

	// Wrap converts native balance of owner into Wrapped; Unwrap is the reverse.
	Wrap(ctx context.Context, owner solana.PublicKey, amount *big.Int) error
	Unwrap(ctx context.Context, owner solana.PublicKey, amount *big.Int) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Kind labels entries in a transfer log.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindWrap     Kind = "wrap"
	KindUnwrap   Kind = "unwrap"
)

// Transfer is one committed balance movement.
type Transfer struct {
	Kind   Kind             `json:"kind"`
	Asset  solana.PublicKey `json:"asset"`
	From   solana.PublicKey `json:"from"`
	To     solana.PublicKey `json:"to"`
	Amount *big.Int         `json:"amount"`
}

// SafeApprove sets spender's allowance to amount, passing through zero when the current
// allowance is non-zero. Some assets reject a direct non-zero to non-zero change.
func SafeApprove(ctx context.Context, tx Tx, asset, owner, spender solana.PublicKey, amount *big.Int) error {
	current, err := tx.Allowance(ctx, asset, owner, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) == 0 {
		return nil
	}
	if current.Sign() > 0 && amount.Sign() > 0 {
		if err := tx.Approve(ctx, asset, owner, spender, new(big.Int)); err != nil {
			return err
		}
	}
	return tx.Approve(ctx, asset, owner, spender, amount)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
