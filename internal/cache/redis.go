package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/models"
	"github.com/aman-zulfiqar/swap-router/internal/storage"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache keeps the recent-trade list and publishes trade events.
type RedisCache struct {
	client *redis.Client
}

var _ storage.TradeCache = (*RedisCache)(nil)

// NewRedisCache connects and pings.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client. Close closes the client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Client exposes the connection so the flag and throttle stores can share it.
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

func (r *RedisCache) AddRecentTrade(ctx context.Context, trade *models.TradeEvent) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentTrades, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentTrades, 0, constants.MaxRecentTrades-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add recent trade: %w", err)
	}
	return nil
}

func (r *RedisCache) GetRecentTrades(ctx context.Context, limit int64) ([]*models.TradeEvent, error) {
	if limit <= 0 {
		return []*models.TradeEvent{}, nil
	}
	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentTrades, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent trades: %w", err)
	}

	out := make([]*models.TradeEvent, 0, len(vals))
	for _, v := range vals {
		var t models.TradeEvent
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
