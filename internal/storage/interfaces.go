package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/swap-router/internal/models"
)

// TradeCache keeps recent trades and fans them out to subscribers
type TradeCache interface {
	// AddRecentTrade pushes a trade onto the bounded recent list
	AddRecentTrade(ctx context.Context, trade *models.TradeEvent) error

	// GetRecentTrades returns the newest trades first
	GetRecentTrades(ctx context.Context, limit int64) ([]*models.TradeEvent, error)

	// PublishTrade publishes a trade to the Pub/Sub channels
	PublishTrade(ctx context.Context, trade *models.TradeEvent) error

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// TradeStore is the append-only trade history
type TradeStore interface {
	InsertTrade(ctx context.Context, trade *models.TradeEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// TradeHandler processes a trade delivered by a subscription
type TradeHandler func(*models.TradeEvent)
