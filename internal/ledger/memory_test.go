package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestMemory_CommitAppliesTransfers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	asset, alice, bob := newKey(), newKey(), newKey()
	require.NoError(t, m.Mint(ctx, asset, alice, big.NewInt(1000)))

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Transfer(ctx, asset, alice, bob, big.NewInt(400)))

	// uncommitted writes are visible inside the tx only
	inTx, err := tx.Balance(ctx, asset, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(400), inTx.Int64())

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

	bal, _ := m.Balance(ctx, asset, alice)
	assert.Equal(t, int64(600), bal.Int64())
	bal, _ = m.Balance(ctx, asset, bob)
	assert.Equal(t, int64(400), bal.Int64())
	assert.Len(t, m.Transfers(), 1)
}

func TestMemory_RollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	asset, alice, bob := newKey(), newKey(), newKey()
	require.NoError(t, m.Mint(ctx, asset, alice, big.NewInt(1000)))

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Transfer(ctx, asset, alice, bob, big.NewInt(999)))
	require.NoError(t, tx.Approve(ctx, asset, alice, bob, big.NewInt(1)))
	require.NoError(t, tx.Rollback(ctx))

	assert.ErrorIs(t, tx.Transfer(ctx, asset, alice, bob, big.NewInt(1)), ErrTxDone)

	bal, _ := m.Balance(ctx, asset, alice)
	assert.Equal(t, int64(1000), bal.Int64())
	assert.Empty(t, m.Transfers())

	// the ledger is usable again after rollback
	tx, err = m.Begin(ctx)
	require.NoError(t, err)
	allowed, err := tx.Allowance(ctx, asset, alice, bob)
	require.NoError(t, err)
	assert.Zero(t, allowed.Sign())
	require.NoError(t, tx.Rollback(ctx))
}

func TestMemory_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	asset, alice, bob := newKey(), newKey(), newKey()
	require.NoError(t, m.Mint(ctx, asset, alice, big.NewInt(10)))

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = tx.Transfer(ctx, asset, alice, bob, big.NewInt(11))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.ErrorIs(t, tx.Transfer(ctx, asset, alice, bob, big.NewInt(-1)), ErrInvalidAmount)
}

func TestMemory_TransferFromConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	asset, owner, spender, sink := newKey(), newKey(), newKey(), newKey()
	require.NoError(t, m.Mint(ctx, asset, owner, big.NewInt(100)))

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = tx.TransferFrom(ctx, asset, spender, owner, sink, big.NewInt(10))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, tx.Approve(ctx, asset, owner, spender, big.NewInt(30)))
	require.NoError(t, tx.TransferFrom(ctx, asset, spender, owner, sink, big.NewInt(10)))

	left, err := tx.Allowance(ctx, asset, owner, spender)
	require.NoError(t, err)
	assert.Equal(t, int64(20), left.Int64())
}

func TestSafeApprove_ResetsNonStandardAsset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	usdtLike, owner, spender := newKey(), newKey(), newKey()
	require.NoError(t, m.RequireApproveReset(ctx, usdtLike))

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.Approve(ctx, usdtLike, owner, spender, big.NewInt(5)))
	assert.ErrorIs(t, tx.Approve(ctx, usdtLike, owner, spender, big.NewInt(7)), ErrApproveNotReset)

	require.NoError(t, SafeApprove(ctx, tx, usdtLike, owner, spender, big.NewInt(7)))
	got, err := tx.Allowance(ctx, usdtLike, owner, spender)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Int64())
}

func TestMemory_WrapUnwrap(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	owner := newKey()
	require.NoError(t, m.Mint(ctx, Native, owner, big.NewInt(50)))

	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Wrap(ctx, owner, big.NewInt(30)))
	require.NoError(t, tx.Unwrap(ctx, owner, big.NewInt(10)))
	assert.ErrorIs(t, tx.Unwrap(ctx, owner, big.NewInt(100)), ErrInsufficientBalance)
	require.NoError(t, tx.Commit(ctx))

	native, _ := m.Balance(ctx, Native, owner)
	wrapped, _ := m.Balance(ctx, Wrapped, owner)
	assert.Equal(t, int64(30), native.Int64())
	assert.Equal(t, int64(20), wrapped.Int64())
}
