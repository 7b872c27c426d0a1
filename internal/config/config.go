package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/router"
)

type Config struct {
	// HTTP settings
	HTTPAddr      string
	APIKeys       string
	SwapRateLimit float64
	SwapBurst     int

	// Venues and accounts
	VenuesPath   string
	Custody      string
	FeeCollector string

	// Ledger: empty DSN keeps balances in memory
	PostgresDSN string

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Router
	MaxHops         int
	MaxRoutes       int
	MinTradeSize    string
	MaxSlippageBps  int
	FeeBps          int
	GasPrice        string
	GasOptimization bool
	Intermediates   string

	// MEV throttle
	MEVEnabled    bool
	MEVMinUnitGap int
	MEVTTL        time.Duration

	// Block clock
	Genesis      time.Time
	SlotDuration time.Duration

	LogLevel string
}

func Load() *Config {
	def := router.DefaultConfig()
	return &Config{
		// HTTP
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		APIKeys:       getEnv("API_KEYS", ""),
		SwapRateLimit: getFloatEnv("SWAP_RATE_LIMIT", 20),
		SwapBurst:     getIntEnv("SWAP_RATE_BURST", 40),

		// Venues
		VenuesPath:   getEnv("VENUES_CONFIG_PATH", "config/venues.json"),
		Custody:      getEnv("CUSTODY_ACCOUNT", ""),
		FeeCollector: getEnv("FEE_COLLECTOR", ""),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "swaps"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// Router
		MaxHops:         getIntEnv("ROUTER_MAX_HOPS", def.MaxHops),
		MaxRoutes:       getIntEnv("ROUTER_MAX_ROUTES", def.MaxRoutes),
		MinTradeSize:    getEnv("ROUTER_MIN_TRADE_SIZE", def.MinTradeSize.String()),
		MaxSlippageBps:  getIntEnv("ROUTER_MAX_SLIPPAGE_BPS", int(def.MaxSlippageBps)),
		FeeBps:          getIntEnv("ROUTER_FEE_BPS", int(def.FeeBps)),
		GasPrice:        getEnv("ROUTER_GAS_PRICE", "0"),
		GasOptimization: getBoolEnv("ROUTER_GAS_OPTIMIZATION", false),
		Intermediates:   getEnv("ROUTER_INTERMEDIATES", "USDC,SOL"),

		// MEV
		MEVEnabled:    getBoolEnv("MEV_ENABLED", true),
		MEVMinUnitGap: getIntEnv("MEV_MIN_UNIT_GAP", 1),
		MEVTTL:        getDurationEnv("MEV_TTL", mev.DefaultTTL),

		// Clock
		Genesis:      getTimeEnv("CHAIN_GENESIS", time.Now().UTC().Truncate(time.Second)),
		SlotDuration: getDurationEnv("SLOT_DURATION", constants.DefaultSlotDuration),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if _, err := ParseAccount(c.Custody); err != nil {
		return fmt.Errorf("CUSTODY_ACCOUNT: %w", err)
	}
	if _, err := ParseAccount(c.FeeCollector); err != nil {
		return fmt.Errorf("FEE_COLLECTOR: %w", err)
	}
	if c.VenuesPath == "" {
		return fmt.Errorf("VENUES_CONFIG_PATH is required")
	}
	if c.SwapRateLimit <= 0 || c.SwapBurst <= 0 {
		return fmt.Errorf("SWAP_RATE_LIMIT and SWAP_RATE_BURST must be > 0")
	}
	if c.MEVMinUnitGap < 0 || c.MaxSlippageBps < 0 || c.FeeBps < 0 {
		return fmt.Errorf("negative router or mev setting")
	}
	if c.SlotDuration <= 0 {
		return fmt.Errorf("SLOT_DURATION must be > 0")
	}
	if _, err := c.Router(); err != nil {
		return err
	}
	return nil
}

// Router builds the router configuration from the ROUTER_* settings.
func (c *Config) Router() (router.Config, error) {
	cfg := router.DefaultConfig()
	cfg.MaxHops = c.MaxHops
	cfg.MaxRoutes = c.MaxRoutes
	cfg.MaxSlippageBps = uint32(c.MaxSlippageBps)
	cfg.FeeBps = uint32(c.FeeBps)
	cfg.GasOptimization = c.GasOptimization

	minTrade, ok := new(big.Int).SetString(c.MinTradeSize, 10)
	if !ok {
		return router.Config{}, fmt.Errorf("ROUTER_MIN_TRADE_SIZE: invalid integer %q", c.MinTradeSize)
	}
	cfg.MinTradeSize = minTrade

	price, err := decimal.NewFromString(c.GasPrice)
	if err != nil {
		return router.Config{}, fmt.Errorf("ROUTER_GAS_PRICE: %w", err)
	}
	cfg.GasPrice = price

	for _, s := range strings.Split(c.Intermediates, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		asset, err := ParseAsset(s)
		if err != nil {
			return router.Config{}, fmt.Errorf("ROUTER_INTERMEDIATES: %w", err)
		}
		cfg.Intermediates = append(cfg.Intermediates, asset)
	}

	if err := cfg.Validate(); err != nil {
		return router.Config{}, err
	}
	return cfg, nil
}

func (c *Config) MEV() mev.Params {
	return mev.Params{Enabled: c.MEVEnabled, MinUnitGap: uint64(c.MEVMinUnitGap)}
}

// ParseAsset accepts a ticker from constants.TokenSymbols or a base58 mint.
func ParseAsset(s string) (solana.PublicKey, error) {
	if mint, ok := constants.MintBySymbol(s); ok {
		s = mint
	} else if mint, ok := constants.MintBySymbol(strings.ToUpper(s)); ok {
		s = mint
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid asset %q: %w", s, err)
	}
	return pk, nil
}

// ParseAccount parses a non-zero base58 account.
func ParseAccount(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("required")
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid account %q: %w", s, err)
	}
	if pk.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("zero account")
	}
	return pk, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getTimeEnv(key string, defaultVal time.Time) time.Time {
	if val := os.Getenv(key); val != "" {
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t
		}
	}
	return defaultVal
}
