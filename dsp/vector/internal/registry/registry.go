// Package registry holds the backend table for the vector kernel.
//
// Backends register themselves from init() functions. The vector package
// selects the highest-priority entry whose SIMD level is supported by the
// detected CPU features.
package registry

import (
	"sync"

	"github.com/cwbudde/algo-vecmath/cpu"
)

// OpEntry describes one backend. Every block function processes full
// slices whose length is a multiple of Lanes; remainders are handled by the
// caller.
type OpEntry struct {
	// Name identifies the backend ("generic", "accel").
	Name string

	// SIMDLevel is the instruction set the backend requires.
	SIMDLevel cpu.SIMDLevel

	// Priority orders compatible backends, higher first.
	Priority int

	// Lanes is the chunk width in samples.
	Lanes int

	// Scale computes dst[i] = src[i] * factor.
	Scale func(dst, src []float64, factor float64)

	// Add computes dst[i] = a[i] + b[i].
	Add func(dst, a, b []float64)

	// Multiply computes dst[i] = a[i] * b[i].
	Multiply func(dst, a, b []float64)

	// AddScaled computes dst[i] += src[i] * factor.
	AddScaled func(dst, src []float64, factor float64)

	// Clip computes dst[i] = min(max(src[i], lo), hi).
	Clip func(dst, src []float64, lo, hi float64)
}

// OpRegistry stores backend entries.
type OpRegistry struct {
	mu      sync.RWMutex
	entries []OpEntry
	sorted  bool
}

// Global is the registry used by the vector package.
var Global = &OpRegistry{}

// Register adds a backend. All registrations should complete before the
// first Lookup.
func (r *OpRegistry) Register(entry OpEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	r.sorted = false
}

// Lookup returns the highest-priority entry supported by features, or nil.
func (r *OpRegistry) Lookup(features cpu.Features) *OpEntry {
	r.mu.Lock()
	if !r.sorted {
		r.sortByPriority()
		r.sorted = true
	}
	r.mu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.entries {
		entry := &r.entries[i]
		if cpu.Supports(features, entry.SIMDLevel) {
			return entry
		}
	}

	return nil
}

// sortByPriority sorts entries by descending priority. r.mu must be held.
func (r *OpRegistry) sortByPriority() {
	for i := 1; i < len(r.entries); i++ {
		key := r.entries[i]
		j := i - 1
		for j >= 0 && r.entries[j].Priority < key.Priority {
			r.entries[j+1] = r.entries[j]
			j--
		}
		r.entries[j+1] = key
	}
}

// ListEntries returns a copy of the registered entries.
func (r *OpRegistry) ListEntries() []OpEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]OpEntry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Reset clears all entries. Tests only.
func (r *OpRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
	r.sorted = false
}
