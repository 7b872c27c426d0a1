package venue

import (
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
)

type counters struct {
	mu      sync.Mutex
	success uint64
	volume  *big.Int
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{SuccessCount: c.success, Volume: new(big.Int).Set(c.volume)}
}

// entry is immutable once published; SetActive replaces it. The counters pointer survives
// replacement so toggling never resets stats.
type entry struct {
	venue    Venue
	counters *counters
}

type snapshot struct {
	active []Venue
}

// Registry is the authoritative venue set.
//
// Structural edits take mu. Readers of Active use the last published snapshot and never block.
// order and index form an arena: index[id] is the position of id in order, and removal swaps
// the last id into the freed slot.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	index   map[string]int

	snap atomic.Pointer[snapshot]
}

func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		index:   make(map[string]int),
	}
	r.snap.Store(&snapshot{})
	return r
}

// Add registers v. Stats passed in are ignored; new venues start from zero.
func (r *Registry) Add(v Venue) error {
	if err := v.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[v.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, v.ID)
	}
	v.FeeTiers = append([]uint32(nil), v.FeeTiers...)
	v.Stats = Stats{}
	r.entries[v.ID] = &entry{venue: v, counters: &counters{volume: new(big.Int)}}
	r.index[v.ID] = len(r.order)
	r.order = append(r.order, v.ID)
	r.publishLocked()
	return nil
}

// Remove deletes id in O(1). The surviving ids keep their membership but not their order.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	last := len(r.order) - 1
	if pos != last {
		moved := r.order[last]
		r.order[pos] = moved
		r.index[moved] = pos
	}
	r.order[last] = ""
	r.order = r.order[:last]
	delete(r.index, id)
	delete(r.entries, id)
	r.publishLocked()
	return nil
}

// SetActive toggles availability. Metadata and counters are kept.
func (r *Registry) SetActive(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.venue.Active == active {
		return nil
	}
	v := e.venue
	v.Active = active
	r.entries[id] = &entry{venue: v, counters: e.counters}
	r.publishLocked()
	return nil
}

// RecordTrade adds one success and volumeDelta to id's counters.
func (r *Registry) RecordTrade(id string, volumeDelta *big.Int) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.counters.mu.Lock()
	defer e.counters.mu.Unlock()
	e.counters.success++
	if volumeDelta != nil && volumeDelta.Sign() > 0 {
		e.counters.volume.Add(e.counters.volume, volumeDelta)
	}
	return nil
}

// Get returns id with current stats.
func (r *Registry) Get(id string) (Venue, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return Venue{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	v := e.venue
	v.Stats = e.counters.snapshot()
	return v, nil
}

// List returns every venue, active or not, in registry order.
func (r *Registry) List() []Venue {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	r.mu.Unlock()

	out := make([]Venue, 0, len(entries))
	for _, e := range entries {
		v := e.venue
		v.Stats = e.counters.snapshot()
		out = append(out, v)
	}
	return out
}

// Active returns the active venues as of the last structural edit, without stats.
// The slice is shared and must not be modified.
func (r *Registry) Active() []Venue {
	return r.snap.Load().active
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Registry) publishLocked() {
	active := make([]Venue, 0, len(r.order))
	for _, id := range r.order {
		if e := r.entries[id]; e.venue.Active {
			active = append(active, e.venue)
		}
	}
	r.snap.Store(&snapshot{active: active})
}

// checkInvariant verifies the arena bookkeeping.
func (r *Registry) checkInvariant() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.order) != len(r.entries) || len(r.index) != len(r.entries) {
		return fmt.Errorf("size mismatch: order=%d index=%d entries=%d", len(r.order), len(r.index), len(r.entries))
	}
	for pos, id := range r.order {
		if _, ok := r.entries[id]; !ok {
			return fmt.Errorf("order[%d]=%s has no entry", pos, id)
		}
		if got, ok := r.index[id]; !ok || got != pos {
			return fmt.Errorf("index[%s]=%d, want %d", id, got, pos)
		}
	}
	return nil
}
