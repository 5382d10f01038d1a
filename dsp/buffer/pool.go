package buffer

import (
	"fmt"
	"sync"

	"github.com/cwbudde/algo-spatial/dsp/core"
)

// ErrExhausted is returned by Acquire when every buffer is borrowed.
var ErrExhausted = fmt.Errorf("%w: buffer pool exhausted", core.ErrResourceExhausted)

// PoolConfig describes the buffers a Pool preallocates.
type PoolConfig struct {
	// Capacity is the number of buffers.
	Capacity int
	// Channels and Frames give the largest shape a buffer can take and the
	// shape every acquired buffer starts with.
	Channels int
	Frames   int
	// Alignment in bytes; 0 selects core.DefaultAlignment.
	Alignment int
	Layout    Layout
}

// PoolStats is a point-in-time view of pool usage.
type PoolStats struct {
	Capacity    int
	InUse       int
	HighWater   int
	Acquires    uint64
	Releases    uint64
	Exhaustions uint64
}

// Pool is a bounded set of preallocated Buffers.
//
// Releasing the same buffer twice without an intervening Acquire is a
// caller bug and leaves the pool in an undefined state.
type Pool struct {
	mu   sync.Mutex
	free []*Buffer
	cfg  PoolConfig

	highWater   int
	acquires    uint64
	releases    uint64
	exhaustions uint64
}

// NewPool allocates cfg.Capacity buffers up front.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Alignment == 0 {
		cfg.Alignment = core.DefaultAlignment
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("%w: pool capacity %d must be positive", core.ErrConfiguration, cfg.Capacity)
	}

	p := &Pool{
		free: make([]*Buffer, 0, cfg.Capacity),
		cfg:  cfg,
	}
	for range cfg.Capacity {
		b, err := New(cfg.Channels, cfg.Frames, cfg.Layout, cfg.Alignment)
		if err != nil {
			return nil, err
		}
		b.pool = p
		p.free = append(p.free, b)
	}

	return p, nil
}

// Acquire borrows a zeroed buffer shaped cfg.Channels x cfg.Frames. It
// never blocks on availability and never allocates; it returns
// ErrExhausted when the pool is empty.
func (p *Pool) Acquire() (*Buffer, error) {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.exhaustions++
		p.mu.Unlock()
		return nil, ErrExhausted
	}
	b := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.acquires++
	if inUse := p.cfg.Capacity - len(p.free); inUse > p.highWater {
		p.highWater = inUse
	}
	p.mu.Unlock()

	// The buffer is exclusively ours now.
	b.channels = p.cfg.Channels
	b.frames = p.cfg.Frames
	b.stride = b.strideFor(b.frames)
	b.Zero()

	return b, nil
}

// Release returns b to the pool. Nil buffers and buffers owned by another
// pool are ignored.
func (p *Pool) Release(b *Buffer) {
	if b == nil || b.pool != p {
		return
	}

	p.mu.Lock()
	if len(p.free) < p.cfg.Capacity {
		p.free = append(p.free, b)
		p.releases++
	}
	p.mu.Unlock()
}

// Owns reports whether b was allocated by p.
func (p *Pool) Owns(b *Buffer) bool {
	return b != nil && b.pool == p
}

// Config returns the pool configuration.
func (p *Pool) Config() PoolConfig { return p.cfg }

// Capacity returns the total number of buffers.
func (p *Pool) Capacity() int { return p.cfg.Capacity }

// InUse returns the number of borrowed buffers.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Capacity - len(p.free)
}

// Utilization returns InUse/Capacity in [0, 1].
func (p *Pool) Utilization() float64 {
	return float64(p.InUse()) / float64(p.cfg.Capacity)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Capacity:    p.cfg.Capacity,
		InUse:       p.cfg.Capacity - len(p.free),
		HighWater:   p.highWater,
		Acquires:    p.acquires,
		Releases:    p.releases,
		Exhaustions: p.exhaustions,
	}
}
