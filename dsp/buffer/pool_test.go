package buffer

import (
	"errors"
	"sync"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/core"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	p, err := NewPool(PoolConfig{Capacity: capacity, Channels: 2, Frames: 128})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPoolAcquireReturnsZeroed(t *testing.T) {
	p := newTestPool(t, 2)

	b, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	b.Channel(0)[0] = 42
	b.Channel(1)[5] = 43
	p.Release(b)

	b2, err := p.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < 2; c++ {
		for i, v := range b2.Channel(c) {
			if v != 0 {
				t.Fatalf("reused Channel(%d)[%d] = %v, want 0", c, i, v)
			}
		}
	}
	if !b2.Aligned() {
		t.Fatal("pooled buffer not aligned")
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := newTestPool(t, 4)

	held := make([]*Buffer, 0, 4)
	for range 4 {
		b, err := p.Acquire()
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		held = append(held, b)
	}

	if _, err := p.Acquire(); !errors.Is(err, ErrExhausted) || !errors.Is(err, core.ErrResourceExhausted) {
		t.Fatalf("fifth Acquire err = %v, want ErrExhausted", err)
	}
	if p.Utilization() != 1 {
		t.Fatalf("Utilization = %v, want 1", p.Utilization())
	}

	p.Release(held[0])
	if _, err := p.Acquire(); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}

	st := p.Stats()
	if st.Exhaustions != 1 || st.Acquires != 5 || st.Releases != 1 || st.HighWater != 4 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPoolReleaseForeignAndNil(t *testing.T) {
	p := newTestPool(t, 1)
	other := newTestPool(t, 1)

	b, _ := other.Acquire()
	p.Release(nil)
	p.Release(b)

	if p.InUse() != 0 {
		t.Fatalf("InUse = %d, want 0", p.InUse())
	}
	if p.Owns(b) || !other.Owns(b) {
		t.Fatal("ownership reported incorrectly")
	}
}

func TestPoolReshapeResetOnAcquire(t *testing.T) {
	p := newTestPool(t, 1)

	b, _ := p.Acquire()
	if err := b.Reshape(1, 64); err != nil {
		t.Fatal(err)
	}
	p.Release(b)

	b, _ = p.Acquire()
	if b.Channels() != 2 || b.Frames() != 128 {
		t.Fatalf("shape = %dx%d, want 2x128", b.Channels(), b.Frames())
	}
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	p := newTestPool(t, 4)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				b, err := p.Acquire()
				if err != nil {
					continue
				}
				b.Channel(0)[0] = 1
				p.Release(b)
			}
		}()
	}
	wg.Wait()

	if p.InUse() != 0 {
		t.Fatalf("InUse = %d after all releases", p.InUse())
	}
}

func TestPoolAcquireDoesNotAllocate(t *testing.T) {
	p := newTestPool(t, 2)

	allocs := testing.AllocsPerRun(1000, func() {
		b, err := p.Acquire()
		if err != nil {
			t.Fatal(err)
		}
		p.Release(b)
	})
	if allocs != 0 {
		t.Fatalf("allocs per acquire/release = %v, want 0", allocs)
	}
}

func TestNewPoolRejectsZeroCapacity(t *testing.T) {
	if _, err := NewPool(PoolConfig{Channels: 1, Frames: 64}); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
