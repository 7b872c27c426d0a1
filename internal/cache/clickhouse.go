package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/aman-zulfiqar/swap-router/internal/models"
	"github.com/aman-zulfiqar/swap-router/internal/storage"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore is the trade history sink.
type ClickHouseStore struct {
	conn driver.Conn
}

var _ storage.TradeStore = (*ClickHouseStore)(nil)

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	username := cfg.Username
	if username == "" {
		username = "default"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

// EnsureSchema creates the trades table when missing.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	err := c.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			execution_id String,
			timestamp    DateTime64(3),
			block        UInt64,
			origin       String,
			recipient    String,
			pair         String,
			token_in     String,
			token_out    String,
			amount_in    Decimal(76, 0),
			fee          Decimal(76, 0),
			amount_out   Decimal(76, 0),
			venues       Array(String),
			hops         UInt8
		) ENGINE = MergeTree
		ORDER BY (timestamp, execution_id)
	`)
	if err != nil {
		return fmt.Errorf("create trades table: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) InsertTrade(ctx context.Context, trade *models.TradeEvent) error {
	query := `
		INSERT INTO trades (
			execution_id, timestamp, block, origin, recipient, pair,
			token_in, token_out, amount_in, fee, amount_out, venues, hops
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, toDecimal256(?, 0), toDecimal256(?, 0), toDecimal256(?, 0), ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		trade.ExecutionID,
		trade.Timestamp,
		trade.Block,
		trade.Origin,
		trade.Recipient,
		trade.Pair,
		trade.TokenIn,
		trade.TokenOut,
		trade.AmountIn,
		trade.Fee,
		trade.AmountOut,
		trade.Venues,
		uint8(trade.Hops),
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
