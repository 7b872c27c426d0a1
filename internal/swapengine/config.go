package swapengine

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/auth"
	"github.com/aman-zulfiqar/swap-router/internal/cache"
	"github.com/aman-zulfiqar/swap-router/internal/config"
	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/flags"
	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/ledger/pgledger"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/storage"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
	"github.com/aman-zulfiqar/swap-router/internal/venue/pool"
)

// EngineConfig holds configuration for the swap engine
type EngineConfig struct {
	// Venue configuration
	VenuesPath string

	// Accounts
	Custody      solana.PublicKey
	FeeCollector solana.PublicKey

	// Ledger: empty DSN uses the in-memory ledger
	PostgresDSN string

	// Storage
	Redis      cache.RedisConfig
	ClickHouse cache.ClickHouseConfig

	Router router.Config
	MEV    mev.Params
	MEVTTL time.Duration

	Genesis      time.Time
	SlotDuration time.Duration

	Authorizer auth.Authorizer
	Logger     *logrus.Logger
}

// DefaultEngineConfig returns sensible defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		VenuesPath:   "config/venues.json",
		Router:       router.DefaultConfig(),
		MEV:          mev.DefaultParams(),
		MEVTTL:       mev.DefaultTTL,
		Genesis:      time.Now().UTC(),
		SlotDuration: constants.DefaultSlotDuration,
	}
}

// NewEngine creates a new swap engine with all dependencies
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	var closers []func() error
	fail := func(err error) (*Engine, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	// 1. Ledger
	var (
		led   ledger.Ledger
		store pool.Store
	)
	if cfg.PostgresDSN != "" {
		pg, err := pgledger.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fail(fmt.Errorf("failed to open postgres ledger: %w", err))
		}
		closers = append(closers, func() error { pg.Close(); return nil })
		if err := pg.Migrate(ctx); err != nil {
			return fail(fmt.Errorf("failed to migrate postgres ledger: %w", err))
		}
		led, store = pg, pg
	} else {
		mem := ledger.NewMemory()
		led, store = mem, mem
	}

	// 2. Venues
	venuesCfg, err := pool.LoadConfig(cfg.VenuesPath)
	if err != nil {
		return fail(fmt.Errorf("failed to load venues: %w", err))
	}
	venues, err := pool.Build(ctx, venuesCfg, store)
	if err != nil {
		return fail(fmt.Errorf("failed to build venues: %w", err))
	}
	registry := venue.NewRegistry()
	for _, v := range venues {
		if err := registry.Add(v); err != nil {
			return fail(fmt.Errorf("failed to register venue: %w", err))
		}
	}

	// 3. Redis: trade cache, MEV state and the pause flag
	var (
		tradeCache storage.TradeCache
		mevStore   mev.Store = mev.NewMemoryStore()
		pause      flags.PauseSwitch = &flags.MemorySwitch{}
	)
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to Redis: %w", err))
		}
		closers = append(closers, rc.Close)
		tradeCache = rc

		rs, err := mev.NewRedisStore(rc.Client(), cfg.MEVTTL)
		if err != nil {
			return fail(err)
		}
		mevStore = rs

		ps, err := flags.NewRedisSwitch(rc.Client())
		if err != nil {
			return fail(err)
		}
		pause = ps
	}

	// 4. ClickHouse
	var tradeStore storage.TradeStore
	if cfg.ClickHouse.Addr != "" && cfg.ClickHouse.Database != "" {
		ch, err := cache.NewClickHouseStore(ctx, cfg.ClickHouse)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to ClickHouse: %w", err))
		}
		closers = append(closers, ch.Close)
		if err := ch.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("failed to create trades table: %w", err))
		}
		tradeStore = ch
	}

	throttle, err := mev.NewThrottle(mevStore, cfg.MEV)
	if err != nil {
		return fail(fmt.Errorf("invalid mev params: %w", err))
	}

	e, err := New(Deps{
		Ledger:       led,
		Registry:     registry,
		Custody:      cfg.Custody,
		FeeCollector: cfg.FeeCollector,
		Config:       cfg.Router,
		Throttle:     throttle,
		Pause:        pause,
		Clock:        NewSlotClock(cfg.Genesis, cfg.SlotDuration),
		Authorizer:   cfg.Authorizer,
		Logger:       logger,
	})
	if err != nil {
		return fail(err)
	}
	e.executor.events.cache = tradeCache
	e.executor.events.store = tradeStore
	e.cache = tradeCache
	e.closers = closers

	logger.WithFields(logrus.Fields{
		"venues":     registry.Len(),
		"ledger":     ledgerKind(cfg.PostgresDSN),
		"redis":      cfg.Redis.Addr != "",
		"clickhouse": tradeStore != nil,
	}).Info("swap engine ready")
	return e, nil
}

// NewEngineFromEnv creates an engine using environment variables
func NewEngineFromEnv(ctx context.Context, logger *logrus.Logger) (*Engine, error) {
	env := config.Load()
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	keys, err := auth.ParseKeys(env.APIKeys)
	if err != nil {
		return nil, fmt.Errorf("API_KEYS: %w", err)
	}
	return NewEngine(ctx, EngineConfigFromEnv(env, keys, logger))
}

// EngineConfigFromEnv maps a validated environment config onto EngineConfig.
func EngineConfigFromEnv(env *config.Config, authz auth.Authorizer, logger *logrus.Logger) EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.VenuesPath = env.VenuesPath
	cfg.Custody, _ = config.ParseAccount(env.Custody)
	cfg.FeeCollector, _ = config.ParseAccount(env.FeeCollector)
	cfg.PostgresDSN = env.PostgresDSN
	cfg.Redis = cache.RedisConfig{Addr: env.RedisAddr, Password: env.RedisPassword, DB: env.RedisDB}
	cfg.ClickHouse = cache.ClickHouseConfig{
		Addr:     env.ClickHouseAddr,
		Database: env.ClickHouseDatabase,
		Username: env.ClickHouseUsername,
		Password: env.ClickHousePassword,
	}
	if rc, err := env.Router(); err == nil {
		cfg.Router = rc
	}
	cfg.MEV = env.MEV()
	cfg.MEVTTL = env.MEVTTL
	cfg.Genesis = env.Genesis
	cfg.SlotDuration = env.SlotDuration
	cfg.Authorizer = authz
	cfg.Logger = logger
	return cfg
}

func ledgerKind(dsn string) string {
	if dsn == "" {
		return "memory"
	}
	return "postgres"
}
