package chain

import (
	"sync"
	"time"
)

// Clock exposes the chain's notion of time to state transitions. Engines never
// read the wall clock directly so that tests can drive accrual windows.
type Clock interface {
	Now() uint64
	Height() uint64
}

// SimClock is a manually advanced clock. Time only moves through Sleep and
// Mine, matching a development chain where blocks are produced on demand.
type SimClock struct {
	mu        sync.RWMutex
	timestamp uint64
	height    uint64
}

// NewSimClock starts a clock at the given unix timestamp. A zero start uses
// the current wall clock second.
func NewSimClock(start uint64) *SimClock {
	if start == 0 {
		start = uint64(time.Now().Unix())
	}
	return &SimClock{timestamp: start, height: 1}
}

func (c *SimClock) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timestamp
}

func (c *SimClock) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// Sleep advances the timestamp without producing blocks.
func (c *SimClock) Sleep(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp += seconds
}

// Mine produces the given number of blocks, each one second apart.
func (c *SimClock) Mine(blocks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += blocks
	c.timestamp += blocks
}

// Set pins the clock to an explicit instant.
func (c *SimClock) Set(timestamp, height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp = timestamp
	c.height = height
}

// FixedClock always reports the same instant.
type FixedClock struct {
	Timestamp uint64
	Block     uint64
}

func (c FixedClock) Now() uint64    { return c.Timestamp }
func (c FixedClock) Height() uint64 { return c.Block }
