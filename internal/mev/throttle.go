// Package mev throttles repeat trades from one origin inside the same ordering unit (block).
// It is a coarse deterrent against same-block sandwich patterns, not a complete defense.
package mev

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var ErrThrottled = errors.New("origin throttled in current ordering unit")

// ThrottleError carries the units that caused a rejection.
type ThrottleError struct {
	Origin   solana.PublicKey
	Unit     uint64
	LastUnit uint64
	MinGap   uint64
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("origin %s traded at unit %d, unit %d is within gap %d", e.Origin, e.LastUnit, e.Unit, e.MinGap)
}

func (e *ThrottleError) Unwrap() error { return ErrThrottled }

// Params are the admin-settable throttle knobs. With MinUnitGap 1 only the same unit is rejected.
type Params struct {
	Enabled    bool   `json:"enabled"`
	MinUnitGap uint64 `json:"min_unit_gap"`
}

func DefaultParams() Params {
	return Params{Enabled: true, MinUnitGap: 1}
}

func (p Params) Validate() error {
	if p.Enabled && p.MinUnitGap == 0 {
		return fmt.Errorf("min_unit_gap must be >= 1 when enabled")
	}
	return nil
}

// Store persists the last committed unit per origin.
type Store interface {
	Last(ctx context.Context, origin solana.PublicKey) (unit uint64, ok bool, err error)
	Record(ctx context.Context, origin solana.PublicKey, unit uint64) error
}

type Throttle struct {
	store Store

	mu     sync.RWMutex
	params Params
}

func NewThrottle(store Store, params Params) (*Throttle, error) {
	if store == nil {
		return nil, fmt.Errorf("mev store is nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Throttle{store: store, params: params}, nil
}

func (t *Throttle) Params() Params {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.params
}

func (t *Throttle) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.params = p
	return nil
}

// Check rejects origin when its last committed unit is closer than MinUnitGap to unit.
// It must run before any funds move.
func (t *Throttle) Check(ctx context.Context, origin solana.PublicKey, unit uint64) error {
	p := t.Params()
	if !p.Enabled {
		return nil
	}
	last, ok, err := t.store.Last(ctx, origin)
	if err != nil {
		return fmt.Errorf("read throttle state: %w", err)
	}
	if !ok {
		return nil
	}
	dist := unit - last
	if last > unit {
		dist = last - unit
	}
	if dist < p.MinUnitGap {
		return &ThrottleError{Origin: origin, Unit: unit, LastUnit: last, MinGap: p.MinUnitGap}
	}
	return nil
}

// Commit records a successful trade. Call only after the trade can no longer revert.
func (t *Throttle) Commit(ctx context.Context, origin solana.PublicKey, unit uint64) error {
	if err := t.store.Record(ctx, origin, unit); err != nil {
		return fmt.Errorf("record throttle state: %w", err)
	}
	return nil
}

// MemoryStore keeps throttle state in process.
type MemoryStore struct {
	mu   sync.RWMutex
	last map[solana.PublicKey]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[solana.PublicKey]uint64)}
}

func (s *MemoryStore) Last(_ context.Context, origin solana.PublicKey) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.last[origin]
	return u, ok, nil
}

func (s *MemoryStore) Record(_ context.Context, origin solana.PublicKey, unit uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[origin] = unit
	return nil
}
