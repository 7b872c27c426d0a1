// Command subscriber tails executed trades from Redis pub/sub.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/cache"
	"github.com/aman-zulfiqar/swap-router/internal/config"
	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/models"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	pair := flag.String("pair", "", "also follow one pair channel, e.g. SOL/USDC")
	venueID := flag.String("venue", "", "also follow one venue channel")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	cfg := config.Load()
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer rc.Close()

	var wg sync.WaitGroup
	follow := func(name string, run func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).WithField("subscription", name).Error("subscription ended")
			}
		}()
	}

	follow("all", func() error {
		return rc.Subscribe(ctx, logger, constants.PubSubChannelTrades, func(t *models.TradeEvent) {
			logger.WithFields(logrus.Fields{
				"execution": t.ExecutionID,
				"block":     t.Block,
				"pair":      t.Pair,
				"amount_in": t.AmountIn,
				"fee":       t.Fee,
				"out":       t.AmountOut,
				"venues":    t.Venues,
			}).Info("trade")
		})
	})
	if *pair != "" {
		follow("pair", func() error {
			return rc.Subscribe(ctx, logger, constants.PubSubPairPrefix+*pair, func(t *models.TradeEvent) {
				logger.WithFields(logrus.Fields{"pair": t.Pair, "in": t.AmountIn, "out": t.AmountOut}).Info("pair trade")
			})
		})
	}
	if *venueID != "" {
		follow("venue", func() error {
			return rc.Subscribe(ctx, logger, constants.PubSubVenuePrefix+*venueID, func(t *models.TradeEvent) {
				logger.WithFields(logrus.Fields{"venue": *venueID, "execution": t.ExecutionID, "hops": t.Hops}).Info("venue trade")
			})
		})
	}
	follow("pairs", func() error {
		return rc.PSubscribe(ctx, logger, constants.PubSubPatternAllPairs, func(t *models.TradeEvent) {
			logger.WithField("pair", t.Pair).Debug("pattern match")
		})
	})

	logger.Info("subscriber running, press Ctrl+C to stop")
	<-sigCh
	logger.Info("shutting down subscriber")
	cancel()
	wg.Wait()
}
