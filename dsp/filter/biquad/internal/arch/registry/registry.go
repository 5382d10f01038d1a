// Package registry holds the biquad block kernels available on this build.
//
// Kernels register from init(); sections resolve one kernel at
// construction time and keep it for their lifetime.
package registry

import (
	"slices"
	"sync"

	"github.com/cwbudde/algo-vecmath/cpu"
)

// Coefficients are biquad transfer coefficients (a0 normalized to 1).
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// ProcessBlockFn runs one section over buf in place and returns the final
// delay-line state. Kernels must not allocate.
type ProcessBlockFn func(c Coefficients, d0, d1 float64, buf []float64) (newD0, newD1 float64)

// OpEntry is one registered kernel.
type OpEntry struct {
	Name         string
	SIMDLevel    cpu.SIMDLevel
	Priority     int
	ProcessBlock ProcessBlockFn
}

// OpRegistry is a priority-ordered kernel table.
type OpRegistry struct {
	mu      sync.RWMutex
	entries []OpEntry
}

// Global is the table used by the biquad package.
var Global = &OpRegistry{}

// Register inserts entry keeping the table ordered by descending priority.
// Entries of equal priority keep registration order.
func (r *OpRegistry) Register(entry OpEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, _ := slices.BinarySearchFunc(r.entries, entry.Priority, func(e OpEntry, p int) int {
		if e.Priority >= p {
			return -1
		}
		return 1
	})
	r.entries = slices.Insert(r.entries, i, entry)
}

// Lookup returns the highest-priority kernel the CPU supports, or nil.
func (r *OpRegistry) Lookup(features cpu.Features) *OpEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := slices.IndexFunc(r.entries, func(e OpEntry) bool {
		return cpu.Supports(features, e.SIMDLevel)
	})
	if i < 0 {
		return nil
	}

	entry := r.entries[i]
	return &entry
}

// Names lists the registered kernels in lookup order.
func (r *OpRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}
