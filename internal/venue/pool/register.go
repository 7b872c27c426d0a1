package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// PoolConfig is a pool entry in the venues JSON file. Reserves are decimal strings.
type PoolConfig struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	MintA    string `json:"mint_a"`
	MintB    string `json:"mint_b"`
	Tier     uint32 `json:"tier,omitempty"`
	FeePPM   uint32 `json:"fee_ppm,omitempty"`
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
}

// VenueConfig is a venue entry in the venues JSON file.
type VenueConfig struct {
	ID       string       `json:"id"`
	Kind     string       `json:"kind"`
	Address  string       `json:"address"`
	Active   *bool        `json:"active,omitempty"`
	FeeTiers []uint32     `json:"fee_tiers,omitempty"`
	Pools    []PoolConfig `json:"pools"`
}

// Config is the venues JSON document.
type Config struct {
	Venues []VenueConfig `json:"venues"`
	// ResetOnlyAssets lists mints whose allowance must pass through zero before changing.
	ResetOnlyAssets []string `json:"reset_only_assets,omitempty"`
}

// LoadConfig reads and parses a venues file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &cfg, nil
}

// Store is what Build needs from a ledger: committed reads and out-of-transaction seeding.
type Store interface {
	ledger.Reader
	ledger.Seeder
}

// Build turns cfg into registrable venues backed by store. Pool reserves are minted only when
// the pool account is still empty, so rebuilding against a persistent ledger is idempotent.
func Build(ctx context.Context, cfg *Config, store Store) ([]venue.Venue, error) {
	for _, s := range cfg.ResetOnlyAssets {
		asset, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("reset_only_assets %q: %w", s, err)
		}
		if err := store.RequireApproveReset(ctx, asset); err != nil {
			return nil, err
		}
	}

	venues := make([]venue.Venue, 0, len(cfg.Venues))
	for i, vc := range cfg.Venues {
		v, err := buildVenue(ctx, vc, store)
		if err != nil {
			return nil, fmt.Errorf("venue %d (%s): %w", i, vc.ID, err)
		}
		venues = append(venues, v)
	}
	return venues, nil
}

func buildVenue(ctx context.Context, vc VenueConfig, store Store) (venue.Venue, error) {
	kind, err := venue.ParseKind(vc.Kind)
	if err != nil {
		return venue.Venue{}, err
	}
	address, err := solana.PublicKeyFromBase58(vc.Address)
	if err != nil {
		return venue.Venue{}, fmt.Errorf("address: %w", err)
	}

	tiers := make(map[uint32]bool, len(vc.FeeTiers))
	for _, t := range vc.FeeTiers {
		tiers[t] = true
	}

	pools := make([]Pool, 0, len(vc.Pools))
	for _, pc := range vc.Pools {
		p, err := parsePoolConfig(pc, kind)
		if err != nil {
			return venue.Venue{}, fmt.Errorf("pool %s: %w", pc.Name, err)
		}
		if kind == venue.ConcentratedLiquidity && !tiers[p.Tier] {
			return venue.Venue{}, fmt.Errorf("pool %s: tier %d not listed in fee_tiers", pc.Name, p.Tier)
		}
		if err := seed(ctx, store, p.MintA, p.Address, pc.ReserveA); err != nil {
			return venue.Venue{}, fmt.Errorf("pool %s: %w", pc.Name, err)
		}
		if err := seed(ctx, store, p.MintB, p.Address, pc.ReserveB); err != nil {
			return venue.Venue{}, fmt.Errorf("pool %s: %w", pc.Name, err)
		}
		pools = append(pools, p)
	}

	adapter, err := NewAdapter(address, store, pools)
	if err != nil {
		return venue.Venue{}, err
	}

	active := true
	if vc.Active != nil {
		active = *vc.Active
	}
	return venue.Venue{
		ID:       vc.ID,
		Address:  address,
		Kind:     kind,
		Active:   active,
		FeeTiers: vc.FeeTiers,
		Adapter:  adapter,
	}, nil
}

// parsePoolConfig converts a config struct to a Pool with validation
func parsePoolConfig(pc PoolConfig, kind venue.Kind) (Pool, error) {
	var p Pool
	var err error
	p.Name = pc.Name
	if p.Address, err = solana.PublicKeyFromBase58(pc.Address); err != nil {
		return Pool{}, fmt.Errorf("address: %w", err)
	}
	if p.MintA, err = solana.PublicKeyFromBase58(pc.MintA); err != nil {
		return Pool{}, fmt.Errorf("mint_a: %w", err)
	}
	if p.MintB, err = solana.PublicKeyFromBase58(pc.MintB); err != nil {
		return Pool{}, fmt.Errorf("mint_b: %w", err)
	}

	switch kind {
	case venue.ConstantProduct:
		if pc.Tier != 0 {
			return Pool{}, fmt.Errorf("constant product pools have no tier")
		}
		p.FeePPM = pc.FeePPM
	case venue.ConcentratedLiquidity:
		p.Tier = pc.Tier
		p.FeePPM = pc.FeePPM
		if p.FeePPM == 0 {
			p.FeePPM = pc.Tier
		}
	}
	if p.FeePPM >= FeeDenominator {
		return Pool{}, fmt.Errorf("fee_ppm must be < %d", FeeDenominator)
	}
	return p, nil
}

func seed(ctx context.Context, store Store, asset, owner solana.PublicKey, amount string) error {
	if amount == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() < 0 {
		return fmt.Errorf("bad reserve %q", amount)
	}
	current, err := store.Balance(ctx, asset, owner)
	if err != nil {
		return err
	}
	if current.Sign() > 0 || n.Sign() == 0 {
		return nil
	}
	return store.Mint(ctx, asset, owner, n)
}
