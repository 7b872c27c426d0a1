package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/models"
	"github.com/aman-zulfiqar/swap-router/internal/storage"
)

// TradeChannels lists every channel a trade is published to.
func TradeChannels(trade *models.TradeEvent) []string {
	channels := []string{
		constants.PubSubChannelTrades,
		constants.PubSubPairPrefix + trade.Pair,
	}
	for _, v := range trade.Venues {
		channels = append(channels, constants.PubSubVenuePrefix+v)
	}
	return channels
}

// PublishTrade fans the trade out to the all, pair and per-venue channels.
func (r *RedisCache) PublishTrade(ctx context.Context, trade *models.TradeEvent) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}

	pipe := r.client.Pipeline()
	for _, channel := range TradeChannels(trade) {
		pipe.Publish(ctx, channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish trade: %w", err)
	}
	return nil
}

// Subscribe delivers trades from channel to handler until ctx is done.
func (r *RedisCache) Subscribe(ctx context.Context, logger *logrus.Logger, channel string, handler storage.TradeHandler) error {
	ps := r.client.Subscribe(ctx, channel)
	defer ps.Close()
	logger.WithField("channel", channel).Info("subscribed")
	return consume(ctx, logger, ps, handler)
}

// PSubscribe is Subscribe for a channel pattern such as "trades:pair:*".
func (r *RedisCache) PSubscribe(ctx context.Context, logger *logrus.Logger, pattern string, handler storage.TradeHandler) error {
	ps := r.client.PSubscribe(ctx, pattern)
	defer ps.Close()
	logger.WithField("pattern", pattern).Info("subscribed")
	return consume(ctx, logger, ps, handler)
}

func consume(ctx context.Context, logger *logrus.Logger, ps *redis.PubSub, handler storage.TradeHandler) error {
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var trade models.TradeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &trade); err != nil {
				logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed trade event")
				continue
			}
			handler(&trade)
		}
	}
}
