package swapengine

import (
	"sync"
	"time"
)

// Clock supplies block time and the ordering unit used by the MEV throttle.
type Clock interface {
	Now() time.Time
	Block(t time.Time) uint64
}

// SlotClock derives the block height from wall time and a fixed slot duration.
type SlotClock struct {
	genesis time.Time
	slot    time.Duration
	now     func() time.Time
}

func NewSlotClock(genesis time.Time, slot time.Duration) *SlotClock {
	if slot <= 0 {
		slot = 400 * time.Millisecond
	}
	return &SlotClock{genesis: genesis, slot: slot, now: time.Now}
}

func (c *SlotClock) Now() time.Time { return c.now() }

func (c *SlotClock) Block(t time.Time) uint64 {
	elapsed := t.Sub(c.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.slot)
}

// ManualClock is set explicitly. Used by tests and the CLI dry runs.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Time
	block uint64
}

func NewManualClock(now time.Time, block uint64) *ManualClock {
	return &ManualClock{now: now, block: block}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Block(time.Time) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

func (c *ManualClock) Set(now time.Time, block uint64) {
	c.mu.Lock()
	c.now, c.block = now, block
	c.mu.Unlock()
}

// Advance moves time forward by d and the block height by blocks.
func (c *ManualClock) Advance(d time.Duration, blocks uint64) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.block += blocks
	c.mu.Unlock()
}
