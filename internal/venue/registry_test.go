package venue

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/swap-router/internal/ledger"
)

type nopAdapter struct{}

func (nopAdapter) Quote(context.Context, QuoteCall) (*big.Int, error) { return new(big.Int), nil }
func (nopAdapter) QuoteExactOutput(context.Context, QuoteCall) (*big.Int, error) {
	return nil, ErrNoPool
}
func (nopAdapter) Swap(context.Context, ledger.Tx, SwapCall) (*big.Int, error) {
	return nil, ErrNoPool
}

func cp(id string) Venue {
	return Venue{
		ID:      id,
		Address: solana.NewWallet().PublicKey(),
		Kind:    ConstantProduct,
		Active:  true,
		Adapter: nopAdapter{},
	}
}

func TestRegistry_AddRejectsDuplicatesAndInvalid(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(cp("orca")))
	assert.ErrorIs(t, r.Add(cp("orca")), ErrAlreadyExists)

	noAddr := cp("x")
	noAddr.Address = solana.PublicKey{}
	assert.ErrorIs(t, r.Add(noAddr), ErrInvalidVenue)

	tiered := cp("tiered")
	tiered.FeeTiers = []uint32{5}
	assert.ErrorIs(t, r.Add(tiered), ErrInvalidVenue, "constant product cannot carry tiers")

	cl := cp("cl")
	cl.Kind = ConcentratedLiquidity
	assert.ErrorIs(t, r.Add(cl), ErrInvalidVenue, "concentrated liquidity needs tiers")
	cl.FeeTiers = []uint32{5, 30, 100}
	require.NoError(t, r.Add(cl))

	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Remove("nope"), ErrNotFound)
	assert.ErrorIs(t, r.SetActive("nope", true), ErrNotFound)
	assert.ErrorIs(t, r.RecordTrade("nope", big.NewInt(1)), ErrNotFound)
}

func TestRegistry_SetActiveKeepsStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(cp("raydium")))
	require.NoError(t, r.RecordTrade("raydium", big.NewInt(500)))

	require.NoError(t, r.SetActive("raydium", false))
	assert.Empty(t, r.Active())

	require.NoError(t, r.SetActive("raydium", true))
	require.Len(t, r.Active(), 1)

	v, err := r.Get("raydium")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Stats.SuccessCount)
	assert.Equal(t, int64(500), v.Stats.Volume.Int64())
}

func TestRegistry_ActiveSnapshotIsStable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(cp("a")))
	require.NoError(t, r.Add(cp("b")))

	before := r.Active()
	require.NoError(t, r.Remove("a"))

	assert.Len(t, before, 2, "published snapshot is not mutated by later edits")
	assert.Len(t, r.Active(), 1)
}

func TestRegistry_RandomAddRemoveKeepsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := NewRegistry()
	present := make(map[string]bool)

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("v%d", rng.Intn(64))
		if rng.Intn(2) == 0 {
			err := r.Add(cp(id))
			if present[id] {
				assert.ErrorIs(t, err, ErrAlreadyExists)
			} else {
				require.NoError(t, err)
				present[id] = true
			}
		} else {
			err := r.Remove(id)
			if present[id] {
				require.NoError(t, err)
				delete(present, id)
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}
		require.NoError(t, r.checkInvariant(), "step %d", i)
	}

	var want, got []string
	for id := range present {
		want = append(want, id)
	}
	for _, v := range r.List() {
		got = append(got, v.ID)
	}
	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func TestRegistry_ConcurrentReadsDuringEdits(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 8; i++ {
		require.NoError(t, r.Add(cp(fmt.Sprintf("seed%d", i))))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			id := fmt.Sprintf("tmp%d", i%16)
			_ = r.Add(cp(id))
			_ = r.Remove(id)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			for _, v := range r.Active() {
				assert.NotEmpty(t, v.ID)
			}
			_ = r.RecordTrade("seed0", big.NewInt(1))
		}
	}()
	wg.Wait()

	require.NoError(t, r.checkInvariant())
	v, err := r.Get("seed0")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), v.Stats.SuccessCount)
}
