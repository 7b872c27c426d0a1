// Package flags holds the engine's pause switch, in process or shared through Redis.
package flags

import (
	"context"
	"sync"
	"time"
)

// PauseSwitch is the circuit breaker consulted before every execution.
type PauseSwitch interface {
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool, by string) error
	State(ctx context.Context) (State, error)
	// History returns the most recent changes first.
	History(ctx context.Context, limit int64) ([]State, error)
}

// MemorySwitch is a process-local PauseSwitch.
type MemorySwitch struct {
	mu      sync.RWMutex
	state   State
	history []State
}

func (m *MemorySwitch) Paused(context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Paused, nil
}

func (m *MemorySwitch) SetPaused(_ context.Context, paused bool, by string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{Paused: paused, UpdatedBy: by, UpdatedAt: time.Now().UTC()}
	m.history = append([]State{m.state}, m.history...)
	if len(m.history) > HistoryLimit {
		m.history = m.history[:HistoryLimit]
	}
	return nil
}

func (m *MemorySwitch) State(context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

func (m *MemorySwitch) History(_ context.Context, limit int64) ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := int64(len(m.history))
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]State, n)
	copy(out, m.history)
	return out, nil
}
