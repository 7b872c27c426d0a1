package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/swap-router/internal/venue"
	"github.com/aman-zulfiqar/swap-router/internal/venue/venuetest"
)

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestQuoteDirect_PicksMaximumAcrossVenuesAndTiers(t *testing.T) {
	a, b := newKey(), newKey()
	r := venue.NewRegistry()

	v1 := venuetest.New().SetFixed(a, b, 0, 200_000)
	v2 := venuetest.New().SetFixed(a, b, 0, 199_000)
	cl := venuetest.New().
		SetFixed(a, b, 500, 150_000).
		SetFixed(a, b, 3000, 210_000).
		Fail(a, b, 100, nil)

	require.NoError(t, r.Add(v1.Venue("v1")))
	require.NoError(t, r.Add(v2.Venue("v2")))
	require.NoError(t, r.Add(cl.TieredVenue("cl", 100, 500, 3000, 10000)))

	e := NewEngine(r, quietLogger())
	best := e.QuoteDirect(context.Background(), a, b, big.NewInt(100))
	require.True(t, best.Found())
	assert.Equal(t, "cl", best.VenueID)
	assert.Equal(t, uint32(3000), best.FeeTier)
	assert.Equal(t, int64(210_000), best.Amount.Int64())

	outcomes := e.QuoteAll(context.Background(), a, b, big.NewInt(100))
	assert.Len(t, outcomes, 6)
	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	assert.Equal(t, 2, failed, "failing tier and missing tier are both carried as data")
}

func TestQuoteDirect_TiesKeepFirstSeen(t *testing.T) {
	a, b := newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, b, 0, 500).Venue("first")))
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, b, 0, 500).Venue("second")))

	best := NewEngine(r, quietLogger()).QuoteDirect(context.Background(), a, b, big.NewInt(1))
	assert.Equal(t, "first", best.VenueID)
}

func TestQuoteDirect_NoVenuesIsNotAnError(t *testing.T) {
	e := NewEngine(venue.NewRegistry(), quietLogger())
	best := e.QuoteDirect(context.Background(), newKey(), newKey(), big.NewInt(100))
	assert.False(t, best.Found())
}

func TestQuoteDirect_InactiveVenueIgnored(t *testing.T) {
	a, b := newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, b, 0, 900).Venue("off")))
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, b, 0, 100).Venue("on")))
	require.NoError(t, r.SetActive("off", false))

	best := NewEngine(r, quietLogger()).QuoteDirect(context.Background(), a, b, big.NewInt(1))
	assert.Equal(t, "on", best.VenueID)
}

// Random venue×tier grids with injected failures: the fold must equal the true maximum over
// the successful outcomes.
func TestQuoteDirect_MaximalityProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tiers := []uint32{100, 500, 3000, 10000}

	for round := 0; round < 50; round++ {
		a, b := newKey(), newKey()
		r := venue.NewRegistry()
		var want int64

		for i := 0; i < 1+rng.Intn(6); i++ {
			ad := venuetest.New()
			if rng.Intn(2) == 0 {
				if rng.Intn(4) == 0 {
					ad.Fail(a, b, 0, errors.New("stale"))
				} else {
					amt := rng.Int63n(1_000_000)
					ad.SetFixed(a, b, 0, amt)
					want = max(want, amt)
				}
				require.NoError(t, r.Add(ad.Venue(fmt.Sprintf("cp%d", i))))
				continue
			}
			for _, tier := range tiers {
				switch rng.Intn(3) {
				case 0:
					ad.Fail(a, b, tier, nil)
				case 1:
					amt := rng.Int63n(1_000_000)
					ad.SetFixed(a, b, tier, amt)
					want = max(want, amt)
				}
			}
			require.NoError(t, r.Add(ad.TieredVenue(fmt.Sprintf("cl%d", i), tiers...)))
		}

		best := NewEngine(r, quietLogger()).QuoteDirect(context.Background(), a, b, big.NewInt(1))
		if want == 0 {
			assert.False(t, best.Found(), "round %d", round)
			continue
		}
		require.True(t, best.Found(), "round %d", round)
		assert.Equal(t, want, best.Amount.Int64(), "round %d", round)
	}
}

func TestQuoteExactOutput_MinimalInput(t *testing.T) {
	a, b := newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().SetRate(a, b, 0, 2, 1).Venue("double")))
	require.NoError(t, r.Add(venuetest.New().SetRate(a, b, 0, 3, 1).Venue("triple")))
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, b, 0, 1).Venue("fixed")))

	best := NewEngine(r, quietLogger()).QuoteExactOutput(context.Background(), a, b, big.NewInt(300))
	require.True(t, best.Found())
	assert.Equal(t, "triple", best.VenueID)
	assert.Equal(t, int64(100), best.Amount.Int64())
}

func TestQuoteDirect_CancelledContext(t *testing.T) {
	a, b := newKey(), newKey()
	r := venue.NewRegistry()
	require.NoError(t, r.Add(venuetest.New().SetFixed(a, b, 0, 10).Venue("v")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := NewEngine(r, quietLogger()).QuoteAll(ctx, a, b, big.NewInt(1))
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
}
