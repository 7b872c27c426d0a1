package swapengine

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/swap-router/internal/config"
	"github.com/aman-zulfiqar/swap-router/internal/venue/pool"
)

func writeVenues(t *testing.T, a, b solana.PublicKey) string {
	t.Helper()
	cfg := pool.Config{Venues: []pool.VenueConfig{{
		ID:      "amm",
		Kind:    "constant_product",
		Address: solana.NewWallet().PublicKey().String(),
		Pools: []pool.PoolConfig{{
			Name: "A/B", Address: solana.NewWallet().PublicKey().String(),
			MintA: a.String(), MintB: b.String(), FeePPM: 3000,
			ReserveA: "1000000000", ReserveB: "2000000000",
		}},
	}}}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "venues.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestNewEngine_InMemory(t *testing.T) {
	ctx := context.Background()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := DefaultEngineConfig()
	cfg.VenuesPath = writeVenues(t, a, b)
	cfg.Custody = solana.NewWallet().PublicKey()
	cfg.FeeCollector = solana.NewWallet().PublicKey()
	cfg.Logger = logger

	e, err := NewEngine(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, e.Close()) }()

	require.Len(t, e.Venues(), 1)
	route, err := e.Route(ctx, a, b, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, []string{"amm"}, route.VenueIDs())
	// 1e6 in against 1e9/2e9 reserves at 0.3%
	assert.Equal(t, "1992013", route.ExpectedOutput.String())

	trades, err := e.RecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, trades, "no cache configured")
}

func TestNewEngine_BadVenuesPath(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.VenuesPath = filepath.Join(t.TempDir(), "missing.json")
	cfg.Custody = solana.NewWallet().PublicKey()
	cfg.FeeCollector = solana.NewWallet().PublicKey()

	_, err := NewEngine(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to load venues")
}

func TestEngineConfigFromEnv(t *testing.T) {
	custody := solana.NewWallet().PublicKey()
	collector := solana.NewWallet().PublicKey()
	t.Setenv("CUSTODY_ACCOUNT", custody.String())
	t.Setenv("FEE_COLLECTOR", collector.String())
	t.Setenv("ROUTER_FEE_BPS", "25")
	t.Setenv("ROUTER_INTERMEDIATES", "USDC")
	t.Setenv("MEV_MIN_UNIT_GAP", "3")
	t.Setenv("SLOT_DURATION", "1s")
	t.Setenv("REDIS_ADDR", "redis:6379")

	env := config.Load()
	require.NoError(t, env.Validate())

	cfg := EngineConfigFromEnv(env, nil, nil)
	assert.Equal(t, custody, cfg.Custody)
	assert.Equal(t, collector, cfg.FeeCollector)
	assert.Equal(t, uint32(25), cfg.Router.FeeBps)
	require.Len(t, cfg.Router.Intermediates, 1)
	assert.Equal(t, uint64(3), cfg.MEV.MinUnitGap)
	assert.Equal(t, time.Second, cfg.SlotDuration)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.PostgresDSN)
}

func TestSlotClock(t *testing.T) {
	genesis := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSlotClock(genesis, 400*time.Millisecond)

	assert.Equal(t, uint64(0), c.Block(genesis.Add(-time.Hour)))
	assert.Equal(t, uint64(0), c.Block(genesis.Add(399*time.Millisecond)))
	assert.Equal(t, uint64(1), c.Block(genesis.Add(400*time.Millisecond)))
	assert.Equal(t, uint64(9000), c.Block(genesis.Add(time.Hour)))

	m := NewManualClock(genesis, 7)
	m.Advance(time.Second, 2)
	assert.Equal(t, uint64(9), m.Block(time.Time{}))
	assert.Equal(t, genesis.Add(time.Second), m.Now())
}
