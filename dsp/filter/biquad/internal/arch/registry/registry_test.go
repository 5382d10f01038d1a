package registry

import (
	"slices"
	"testing"

	"github.com/cwbudde/algo-vecmath/cpu"
)

func TestRegistryLookup(t *testing.T) {
	reg := &OpRegistry{}
	reg.Register(OpEntry{Name: "generic", SIMDLevel: cpu.SIMDNone, Priority: 0})
	reg.Register(OpEntry{Name: "unrolled", SIMDLevel: cpu.SIMDAVX2, Priority: 20})

	tests := []struct {
		name     string
		features cpu.Features
		want     string
	}{
		{name: "avx2", features: cpu.Features{HasSSE2: true, HasAVX2: true}, want: "unrolled"},
		{name: "sse2 only", features: cpu.Features{HasSSE2: true}, want: "generic"},
		{name: "forced generic", features: cpu.Features{HasAVX2: true, ForceGeneric: true}, want: "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := reg.Lookup(tt.features)
			if entry == nil || entry.Name != tt.want {
				t.Fatalf("Lookup = %#v, want %s", entry, tt.want)
			}
		})
	}
}

func TestRegistryOrder(t *testing.T) {
	reg := &OpRegistry{}
	reg.Register(OpEntry{Name: "low", Priority: 0})
	reg.Register(OpEntry{Name: "high", Priority: 20})
	reg.Register(OpEntry{Name: "mid", Priority: 10})
	reg.Register(OpEntry{Name: "mid2", Priority: 10})

	got := reg.Names()
	want := []string{"high", "mid", "mid2", "low"}
	if !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	if (&OpRegistry{}).Lookup(cpu.Features{}) != nil {
		t.Fatal("empty registry returned an entry")
	}
}
