package pgledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aman-zulfiqar/swap-router/internal/ledger"
)

// setupTestLedger starts a disposable Postgres and applies the embedded migrations.
// Skips when Docker is not reachable.
func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres ledger test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("ledger"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("Docker not available, skipping test: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	l, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(l.Close)

	require.NoError(t, l.Migrate(ctx))
	require.NoError(t, l.Migrate(ctx), "migrations are idempotent")
	return l
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func TestLedger_CommitAndRollback(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()
	asset, alice, bob := newKey(), newKey(), newKey()

	big30, _ := new(big.Int).SetString("1000000000000000000000000000000", 10)
	require.NoError(t, l.Mint(ctx, asset, alice, big30))

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Transfer(ctx, asset, alice, bob, big.NewInt(7)))
	require.NoError(t, tx.Rollback(ctx))

	bal, err := l.Balance(ctx, asset, bob)
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())

	tx, err = l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Transfer(ctx, asset, alice, bob, big.NewInt(7)))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	bal, err = l.Balance(ctx, asset, alice)
	require.NoError(t, err)
	want := new(big.Int).Sub(big30, big.NewInt(7))
	assert.Equal(t, 0, want.Cmp(bal), "got %s", bal)

	transfers, err := l.Transfers(ctx)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, bob, transfers[0].To)
}

func TestLedger_InsufficientBalanceAndAllowance(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()
	asset, owner, spender := newKey(), newKey(), newKey()
	require.NoError(t, l.Mint(ctx, asset, owner, big.NewInt(10)))

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	assert.ErrorIs(t, tx.TransferFrom(ctx, asset, spender, owner, spender, big.NewInt(1)), ledger.ErrInsufficientAllowance)
}

func TestLedger_ApproveReset(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()
	asset, owner, spender := newKey(), newKey(), newKey()
	require.NoError(t, l.RequireApproveReset(ctx, asset))

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.Approve(ctx, asset, owner, spender, big.NewInt(5)))
	assert.ErrorIs(t, tx.Approve(ctx, asset, owner, spender, big.NewInt(6)), ledger.ErrApproveNotReset)
}

func TestLedger_WrapUnwrap(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()
	owner := newKey()
	require.NoError(t, l.Mint(ctx, ledger.Native, owner, big.NewInt(100)))

	tx, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Wrap(ctx, owner, big.NewInt(60)))
	require.NoError(t, tx.Unwrap(ctx, owner, big.NewInt(20)))
	require.NoError(t, tx.Commit(ctx))

	native, err := l.Balance(ctx, ledger.Native, owner)
	require.NoError(t, err)
	wrapped, err := l.Balance(ctx, ledger.Wrapped, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(60), native.Int64())
	assert.Equal(t, int64(40), wrapped.Int64())
}
