// Package pgledger implements ledger.Ledger on PostgreSQL. Every engine transaction maps to one
// database transaction, so a failed swap leaves no trace in the tables.
package pgledger

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aman-zulfiqar/swap-router/internal/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger is a Postgres-backed ledger.
type Ledger struct {
	pool *pgxpool.Pool
}

// Compile-time interface check.
var (
	_ ledger.Ledger = (*Ledger)(nil)
	_ ledger.Seeder = (*Ledger)(nil)
)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Ledger{pool: pool}, nil
}

// Close closes the connection pool.
func (l *Ledger) Close() {
	l.pool.Close()
}

// Migrate applies the embedded schema files in lexical order. Files are idempotent.
func (l *Ledger) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := l.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// Mint credits owner outside of an engine transaction.
func (l *Ledger) Mint(ctx context.Context, asset, owner solana.PublicKey, amount *big.Int) error {
	_, err := l.pool.Exec(ctx, creditSQL, owner.String(), asset.String(), numeric(amount))
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	return nil
}

// RequireApproveReset marks asset as rejecting non-zero to non-zero allowance changes.
func (l *Ledger) RequireApproveReset(ctx context.Context, asset solana.PublicKey) error {
	_, err := l.pool.Exec(ctx, `INSERT INTO ledger_reset_only_assets (asset) VALUES ($1) ON CONFLICT DO NOTHING`, asset.String())
	if err != nil {
		return fmt.Errorf("mark reset-only asset: %w", err)
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, asset, owner solana.PublicKey) (*big.Int, error) {
	return scanAmount(l.pool.QueryRow(ctx, `SELECT amount::text FROM ledger_balances WHERE owner = $1 AND asset = $2`, owner.String(), asset.String()))
}

// Transfers returns the committed transfer log, oldest first.
func (l *Ledger) Transfers(ctx context.Context) ([]ledger.Transfer, error) {
	rows, err := l.pool.Query(ctx, `SELECT kind, asset, from_owner, to_owner, amount::text FROM ledger_transfers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transfer
	for rows.Next() {
		var kind, asset, from, to, amount string
		if err := rows.Scan(&kind, &asset, &from, &to, &amount); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		n, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return nil, fmt.Errorf("bad amount %q", amount)
		}
		out = append(out, ledger.Transfer{
			Kind:   ledger.Kind(kind),
			Asset:  solana.MustPublicKeyFromBase58(asset),
			From:   solana.MustPublicKeyFromBase58(from),
			To:     solana.MustPublicKeyFromBase58(to),
			Amount: n,
		})
	}
	return out, rows.Err()
}

func (l *Ledger) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

const (
	creditSQL = `
		INSERT INTO ledger_balances (owner, asset, amount) VALUES ($1, $2, $3)
		ON CONFLICT (owner, asset) DO UPDATE SET amount = ledger_balances.amount + EXCLUDED.amount`
	debitSQL = `
		UPDATE ledger_balances SET amount = amount - $3
		WHERE owner = $1 AND asset = $2 AND amount >= $3`
	logSQL = `
		INSERT INTO ledger_transfers (kind, asset, from_owner, to_owner, amount) VALUES ($1, $2, $3, $4, $5)`
)

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Balance(ctx context.Context, asset, owner solana.PublicKey) (*big.Int, error) {
	return scanAmount(t.tx.QueryRow(ctx,
		`SELECT amount::text FROM ledger_balances WHERE owner = $1 AND asset = $2 FOR UPDATE`,
		owner.String(), asset.String()))
}

func (t *pgTx) Allowance(ctx context.Context, asset, owner, spender solana.PublicKey) (*big.Int, error) {
	return scanAmount(t.tx.QueryRow(ctx,
		`SELECT amount::text FROM ledger_allowances WHERE owner = $1 AND asset = $2 AND spender = $3 FOR UPDATE`,
		owner.String(), asset.String(), spender.String()))
}

func (t *pgTx) move(ctx context.Context, kind ledger.Kind, fromAsset, toAsset, from, to solana.PublicKey, amount *big.Int) error {
	tag, err := t.tx.Exec(ctx, debitSQL, from.String(), fromAsset.String(), numeric(amount))
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 && amount.Sign() > 0 {
		return fmt.Errorf("%w: %s lacks %s of %s", ledger.ErrInsufficientBalance, from, amount, fromAsset)
	}
	if _, err := t.tx.Exec(ctx, creditSQL, to.String(), toAsset.String(), numeric(amount)); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	if _, err := t.tx.Exec(ctx, logSQL, string(kind), fromAsset.String(), from.String(), to.String(), numeric(amount)); err != nil {
		return fmt.Errorf("log transfer: %w", err)
	}
	return nil
}

func (t *pgTx) Transfer(ctx context.Context, asset, from, to solana.PublicKey, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ledger.ErrInvalidAmount
	}
	return t.move(ctx, ledger.KindTransfer, asset, asset, from, to, amount)
}

func (t *pgTx) TransferFrom(ctx context.Context, asset, spender, from, to solana.PublicKey, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ledger.ErrInvalidAmount
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE ledger_allowances SET amount = amount - $4
		WHERE owner = $1 AND asset = $2 AND spender = $3 AND amount >= $4`,
		from.String(), asset.String(), spender.String(), numeric(amount))
	if err != nil {
		return fmt.Errorf("spend allowance: %w", err)
	}
	if tag.RowsAffected() == 0 && amount.Sign() > 0 {
		return fmt.Errorf("%w: %s by %s for %s", ledger.ErrInsufficientAllowance, spender, from, amount)
	}
	return t.move(ctx, ledger.KindTransfer, asset, asset, from, to, amount)
}

func (t *pgTx) Approve(ctx context.Context, asset, owner, spender solana.PublicKey, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ledger.ErrInvalidAmount
	}
	if amount.Sign() > 0 {
		var resetOnly bool
		err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_reset_only_assets WHERE asset = $1)`, asset.String()).Scan(&resetOnly)
		if err != nil {
			return fmt.Errorf("check reset-only asset: %w", err)
		}
		if resetOnly {
			current, err := t.Allowance(ctx, asset, owner, spender)
			if err != nil {
				return err
			}
			if current.Sign() > 0 {
				return ledger.ErrApproveNotReset
			}
		}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_allowances (owner, asset, spender, amount) VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, asset, spender) DO UPDATE SET amount = EXCLUDED.amount`,
		owner.String(), asset.String(), spender.String(), numeric(amount))
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	return nil
}

func (t *pgTx) Wrap(ctx context.Context, owner solana.PublicKey, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ledger.ErrInvalidAmount
	}
	return t.move(ctx, ledger.KindWrap, ledger.Native, ledger.Wrapped, owner, owner, amount)
}

func (t *pgTx) Unwrap(ctx context.Context, owner solana.PublicKey, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ledger.ErrInvalidAmount
	}
	return t.move(ctx, ledger.KindUnwrap, ledger.Wrapped, ledger.Native, owner, owner, amount)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return ledger.ErrTxDone
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

func numeric(n *big.Int) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(n), Exp: 0, Valid: true}
}

func scanAmount(row pgx.Row) (*big.Int, error) {
	var s string
	if err := row.Scan(&s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("scan amount: %w", err)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	return n, nil
}
