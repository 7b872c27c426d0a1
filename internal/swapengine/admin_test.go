package swapengine

import (
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/swap-router/internal/auth"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
	"github.com/aman-zulfiqar/swap-router/internal/venue/venuetest"
)

func TestAdmin_Authorization(t *testing.T) {
	f := newFixture(t, router.DefaultConfig())

	_, err := f.engine.Admin(f.ctx, auth.Principal{ID: "mallory", Capabilities: []auth.Capability{auth.CapAdmin}})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	oncall := f.admin("k-pause")
	assert.ErrorIs(t, oncall.SetFeeBps(20), auth.ErrUnauthorized)
	assert.ErrorIs(t, oncall.RemoveVenue("v1"), auth.ErrUnauthorized)
	assert.NoError(t, oncall.Pause(f.ctx))
	assert.NoError(t, oncall.Unpause(f.ctx))
}

func TestAdmin_PauseBlocksExecution(t *testing.T) {
	v := venuetest.New()
	f := newFixture(t, router.DefaultConfig(), v.Venue("v1"))
	v.SetRate(f.a, f.b, 0, 1, 1)
	f.fund(f.b, v.Address, liquidity)
	f.fund(f.a, f.origin, big.NewInt(10_000))
	f.approve(f.a, big.NewInt(10_000))

	admin := f.admin("k-pause")
	require.NoError(t, admin.Pause(f.ctx))
	paused, err := f.engine.Paused(f.ctx)
	require.NoError(t, err)
	assert.True(t, paused)
	st, err := f.engine.PauseState(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "oncall", st.UpdatedBy)

	_, err = f.engine.Swap(f.ctx, f.request(f.a, f.b, 10_000))
	assert.ErrorIs(t, err, ErrPaused)

	req := f.request(f.a, f.b, 10_000)
	req.MinAmountOut = new(big.Int)
	route, err := f.engine.Route(f.ctx, f.a, f.b, big.NewInt(9_990))
	require.NoError(t, err, "planning works while paused")
	_, err = f.engine.Execute(f.ctx, req, route)
	assert.ErrorIs(t, err, ErrPaused)

	require.NoError(t, admin.Unpause(f.ctx))
	_, err = f.engine.Swap(f.ctx, f.request(f.a, f.b, 10_000))
	assert.NoError(t, err)

	hist, err := f.engine.PauseHistory(f.ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.False(t, hist[0].Paused)
}

func TestAdmin_ConfigBounds(t *testing.T) {
	f := newFixture(t, router.DefaultConfig())
	admin := f.admin("k-admin")

	require.NoError(t, admin.SetFeeBps(router.MaxFeeBps))
	assert.Equal(t, uint32(router.MaxFeeBps), f.engine.Config().FeeBps)
	assert.ErrorIs(t, admin.SetFeeBps(router.MaxFeeBps+1), router.ErrValidation)
	assert.Equal(t, uint32(router.MaxFeeBps), f.engine.Config().FeeBps, "rejected update leaves config unchanged")

	require.NoError(t, admin.SetLimits(Limits{MaxHops: 3, MaxRoutes: 16, MinTradeSize: big.NewInt(1), MaxSlippageBps: 1000}))
	cfg := f.engine.Config()
	assert.Equal(t, 3, cfg.MaxHops)
	assert.Equal(t, 16, cfg.MaxRoutes)
	assert.Equal(t, "1", cfg.MinTradeSize.String())

	assert.ErrorIs(t, admin.SetLimits(Limits{MaxHops: 4, MaxRoutes: 1, MinTradeSize: big.NewInt(1)}), router.ErrValidation)
	assert.ErrorIs(t, admin.SetLimits(Limits{MaxHops: 1, MaxRoutes: 1}), router.ErrValidation, "min trade size required")

	assert.ErrorIs(t, admin.SetIntermediates([]solana.PublicKey{f.x, f.x}), router.ErrValidation)

	price := decimal.RequireFromString("0.5")
	require.NoError(t, admin.SetGasOptimization(true, &price))
	cfg = f.engine.Config()
	assert.True(t, cfg.GasOptimization)
	assert.Equal(t, "0.5", cfg.GasPrice.String())

	// callers get copies
	cfg.MinTradeSize.SetInt64(42)
	assert.Equal(t, "1", f.engine.Config().MinTradeSize.String())
}

func TestAdmin_VenueLifecycle(t *testing.T) {
	v := venuetest.New()
	f := newFixture(t, router.DefaultConfig(), v.Venue("v1"))
	v.SetRate(f.a, f.b, 0, 1, 1)
	f.fund(f.b, v.Address, liquidity)
	f.fund(f.a, f.origin, big.NewInt(100_000))
	f.approve(f.a, big.NewInt(100_000))
	admin := f.admin("k-admin")

	_, err := f.engine.Swap(f.ctx, f.request(f.a, f.b, 10_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.stats("v1").SuccessCount)

	require.NoError(t, admin.RemoveVenue("v1"))
	assert.ErrorIs(t, admin.RemoveVenue("v1"), venue.ErrNotFound)
	f.clock.Advance(time.Second, 1)
	_, err = f.engine.Swap(f.ctx, f.request(f.a, f.b, 10_000))
	assert.ErrorIs(t, err, router.ErrRouteNotFound)

	// re-adding by id resolves the adapter from the catalog and starts fresh stats
	require.NoError(t, admin.AddVenue(venue.Venue{ID: "v1", Address: v.Address, Kind: venue.ConstantProduct, Active: true}))
	assert.ErrorIs(t, admin.AddVenue(v.Venue("v1")), venue.ErrAlreadyExists)
	assert.Equal(t, uint64(0), f.stats("v1").SuccessCount)

	assert.ErrorIs(t, admin.AddVenue(venue.Venue{ID: "unknown", Address: v.Address, Kind: venue.ConstantProduct}), venue.ErrInvalidVenue)

	require.NoError(t, admin.SetVenueActive("v1", false))
	f.clock.Advance(time.Second, 1)
	_, err = f.engine.Swap(f.ctx, f.request(f.a, f.b, 10_000))
	assert.ErrorIs(t, err, router.ErrRouteNotFound)

	require.NoError(t, admin.SetVenueActive("v1", true))
	_, err = f.engine.Swap(f.ctx, f.request(f.a, f.b, 10_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.stats("v1").SuccessCount)
}
