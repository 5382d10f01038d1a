package vector

import (
	"sync"

	"github.com/cwbudde/algo-vecmath/cpu"

	"github.com/cwbudde/algo-spatial/dsp/vector/internal/registry"
)

var (
	backend     *registry.OpEntry
	backendOnce sync.Once
)

func active() *registry.OpEntry {
	backendOnce.Do(func() {
		backend = registry.Global.Lookup(cpu.DetectFeatures())
		if backend == nil {
			panic("vector: no backend registered")
		}
	})

	return backend
}

// Backend returns the name of the backend selected for this CPU.
func Backend() string {
	return active().Name
}

// body returns the number of leading samples handled by the chunked
// backend, or 0 if the slices are not all aligned.
func body(e *registry.OpEntry, n int, slices ...[]float64) int {
	if n < e.Lanes || !allAligned(slices...) {
		return 0
	}

	return n - n%e.Lanes
}
