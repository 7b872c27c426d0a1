package router

import (
	"context"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/swap-router/internal/quote"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
	"github.com/aman-zulfiqar/swap-router/internal/venue/venuetest"
)

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

func newPlanner(r *venue.Registry) *Planner {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return NewPlanner(quote.NewEngine(r, l), l)
}

func testConfig(intermediates ...solana.PublicKey) Config {
	cfg := DefaultConfig()
	cfg.MinTradeSize = big.NewInt(1)
	cfg.Intermediates = intermediates
	return cfg
}

func TestPlan_NoVenues(t *testing.T) {
	_, err := newPlanner(venue.NewRegistry()).Plan(context.Background(), newKey(), newKey(), big.NewInt(100), testConfig())
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

func TestPlan_BelowMinTradeSize(t *testing.T) {
	cfg := testConfig()
	cfg.MinTradeSize = big.NewInt(1000)

	_, err := newPlanner(venue.NewRegistry()).Plan(context.Background(), newKey(), newKey(), big.NewInt(999), cfg)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount_in", verr.Field)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlan_SameToken(t *testing.T) {
	a := newKey()
	_, err := newPlanner(venue.NewRegistry()).Plan(context.Background(), a, a, big.NewInt(100), testConfig())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlan_TwoHopWhenNoDirectPool(t *testing.T) {
	a, x, c := newKey(), newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, x, 0, 500).Venue("ax")))
	require.NoError(t, r.Add(venuetest.New().SetFixed(x, c, 0, 480).Venue("xc")))

	route, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), testConfig(x))
	require.NoError(t, err)
	assert.Equal(t, int64(480), route.ExpectedOutput.Int64())
	assert.Equal(t, []solana.PublicKey{a, x, c}, route.Tokens)
	assert.Equal(t, []string{"ax", "xc"}, route.VenueIDs())
	assert.Len(t, route.Tokens, len(route.Hops)+1)
	assert.Equal(t, int64(500), route.Hops[0].ExpectedOut.Int64())
}

func TestPlan_TieFavorsFewerHops(t *testing.T) {
	a, x, c := newKey(), newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().
		SetFixed(a, c, 0, 480).
		SetFixed(a, x, 0, 500).
		SetFixed(x, c, 0, 480).
		Venue("v")))

	route, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), testConfig(x))
	require.NoError(t, err)
	assert.True(t, route.Direct())
}

func TestPlan_MultiHopWinsOnStrictlyBetterOutput(t *testing.T) {
	a, x, c := newKey(), newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().
		SetFixed(a, c, 0, 480).
		SetFixed(a, x, 0, 500).
		SetFixed(x, c, 0, 481).
		Venue("v")))

	route, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), testConfig(x))
	require.NoError(t, err)
	assert.Len(t, route.Hops, 2)
}

func TestPlan_GasOptimizationPrefersCheaperRoute(t *testing.T) {
	a, x, c := newKey(), newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().
		SetFixed(a, c, 0, 1_000).
		SetFixed(a, x, 0, 500).
		SetFixed(x, c, 0, 1_050).
		Venue("v")))

	cfg := testConfig(x)
	cfg.GasOptimization = true
	cfg.GasPerHop = map[int]uint64{1: 100, 2: 300}
	cfg.GasPrice = decimal.RequireFromString("0.25")

	route, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), cfg)
	require.NoError(t, err)
	// direct: 1000 - 25 = 975; two-hop: 1050 - 75 = 975; tie keeps the direct route
	assert.True(t, route.Direct())
	assert.Equal(t, int64(975), route.Score.Int64())
	assert.Equal(t, int64(25), route.GasCost.Int64())

	cfg.GasOptimization = false
	route, err = newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), cfg)
	require.NoError(t, err)
	assert.Len(t, route.Hops, 2)
}

func TestPlan_ScoreFlooredAtZero(t *testing.T) {
	a, c := newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, c, 0, 10).Venue("v")))

	cfg := testConfig()
	cfg.GasOptimization = true
	cfg.GasPrice = decimal.NewFromInt(1)

	route, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), cfg)
	require.NoError(t, err, "positive output still yields a route")
	assert.Zero(t, route.Score.Sign())
}

func TestPlan_PerAssetGasPrice(t *testing.T) {
	c := newKey()
	cfg := testConfig()
	cfg.GasPrice = decimal.NewFromInt(1)
	cfg.GasPrices = map[string]decimal.Decimal{c.String(): decimal.RequireFromString("0.001")}
	assert.Equal(t, int64(150), cfg.GasCost(150_000, c).Int64())
	assert.Equal(t, int64(150_000), cfg.GasCost(150_000, newKey()).Int64())
}

func TestPlan_ThreeHops(t *testing.T) {
	a, x, y, c := newKey(), newKey(), newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().
		SetFixed(a, x, 0, 10).
		SetFixed(x, y, 0, 20).
		SetFixed(y, c, 0, 30).
		Venue("v")))

	cfg := testConfig(x, y)
	_, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), cfg)
	assert.ErrorIs(t, err, ErrRouteNotFound, "two hops cannot reach c")

	cfg.MaxHops = 3
	route, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), cfg)
	require.NoError(t, err)
	assert.Equal(t, []solana.PublicKey{a, x, y, c}, route.Tokens)
	assert.Equal(t, uint64(400_000), route.GasEstimate)
}

func TestPlan_MaxRoutesCapsCandidates(t *testing.T) {
	a, x1, x2, c := newKey(), newKey(), newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().
		SetFixed(a, x2, 0, 10).
		SetFixed(x2, c, 0, 10).
		Venue("v")))

	cfg := testConfig(x1, x2)
	cfg.MaxRoutes = 2 // direct + x1 only
	_, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), cfg)
	assert.ErrorIs(t, err, ErrRouteNotFound)

	cfg.MaxRoutes = 3
	_, err = newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), cfg)
	assert.NoError(t, err)
}

func TestPlan_SkipsEndpointIntermediates(t *testing.T) {
	a, c := newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, c, 0, 7).Venue("v")))

	route, err := newPlanner(r).Plan(context.Background(), a, c, big.NewInt(100), testConfig(a, c))
	require.NoError(t, err)
	assert.True(t, route.Direct())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"max_hops":         func(c *Config) { c.MaxHops = 4 },
		"max_routes":       func(c *Config) { c.MaxRoutes = 0 },
		"min_trade_size":   func(c *Config) { c.MinTradeSize = big.NewInt(0) },
		"max_slippage_bps": func(c *Config) { c.MaxSlippageBps = 10_001 },
		"fee_bps":          func(c *Config) { c.FeeBps = MaxFeeBps + 1 },
		"gas_price":        func(c *Config) { c.GasPrice = decimal.NewFromInt(-1) },
		"intermediates":    func(c *Config) { c.Intermediates = []solana.PublicKey{{}} },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			var verr *ValidationError
			require.ErrorAs(t, cfg.Validate(), &verr)
			assert.Equal(t, field, verr.Field)
		})
	}
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, int64(995), ApplySlippage(big.NewInt(1000), 50).Int64())
	assert.Equal(t, int64(0), ApplySlippage(big.NewInt(1000), 10_000).Int64())
	assert.Equal(t, int64(1000), ApplySlippage(big.NewInt(1000), 0).Int64())
}
