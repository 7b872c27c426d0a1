package mev

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mev:last:"

// DefaultTTL bounds how long an origin's entry survives without new trades.
const DefaultTTL = 10 * time.Minute

// RedisStore shares throttle state between engine replicas.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Last(ctx context.Context, origin solana.PublicKey) (uint64, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+origin.String()).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get last unit: %w", err)
	}
	unit, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse last unit %q: %w", val, err)
	}
	return unit, true, nil
}

func (s *RedisStore) Record(ctx context.Context, origin solana.PublicKey, unit uint64) error {
	if err := s.client.Set(ctx, keyPrefix+origin.String(), strconv.FormatUint(unit, 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("set last unit: %w", err)
	}
	return nil
}
