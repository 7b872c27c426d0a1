package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/models"
)

func setupTestRedis(t *testing.T) *RedisCache {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return NewRedisCacheFromClient(client)
}

func trade(id string) *models.TradeEvent {
	return &models.TradeEvent{
		ExecutionID: id,
		Timestamp:   time.Now().UTC(),
		Pair:        "SOL/USDC",
		AmountIn:    "1000000000000000000000000000000",
		AmountOut:   "1",
		Venues:      []string{"whirlpool"},
		Hops:        1,
	}
}

func TestTradeChannels(t *testing.T) {
	tr := trade("x")
	tr.Venues = []string{"a", "b"}
	assert.Equal(t, []string{
		constants.PubSubChannelTrades,
		"trades:pair:SOL/USDC",
		"trades:venue:a",
		"trades:venue:b",
	}, TradeChannels(tr))
}

func TestRedisCache_RecentTradesAreBounded(t *testing.T) {
	c := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < constants.MaxRecentTrades+5; i++ {
		require.NoError(t, c.AddRecentTrade(ctx, trade(fmt.Sprintf("exec-%d", i))))
	}

	got, err := c.GetRecentTrades(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, got, constants.MaxRecentTrades)
	assert.Equal(t, fmt.Sprintf("exec-%d", constants.MaxRecentTrades+4), got[0].ExecutionID, "newest first")
	assert.Equal(t, "1000000000000000000000000000000", got[0].AmountIn)
}

func TestRedisCache_PublishSubscribe(t *testing.T) {
	c := setupTestRedis(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *models.TradeEvent, 1)
	go func() {
		_ = c.PSubscribe(ctx, logger, constants.PubSubPatternAllPairs, func(tr *models.TradeEvent) {
			select {
			case received <- tr:
			default:
			}
		})
	}()

	// the subscription is asynchronous; publish until it lands
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case tr := <-received:
			assert.Equal(t, "exec-pub", tr.ExecutionID)
			return
		case <-tick.C:
			require.NoError(t, c.PublishTrade(ctx, trade("exec-pub")))
		case <-ctx.Done():
			t.Fatal("trade not received")
		}
	}
}
