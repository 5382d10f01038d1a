// Package generic provides the pure Go vector backend.
package generic

import (
	"github.com/cwbudde/algo-vecmath/cpu"

	"github.com/cwbudde/algo-spatial/dsp/vector/internal/registry"
)

// Lanes is the unroll width of the generic kernels.
const Lanes = 4

func init() {
	registry.Global.Register(registry.OpEntry{
		Name:      "generic",
		SIMDLevel: cpu.SIMDNone,
		Priority:  0,
		Lanes:     Lanes,
		Scale:     Scale,
		Add:       Add,
		Multiply:  Multiply,
		AddScaled: AddScaled,
		Clip:      Clip,
	})
}

// Scale computes dst[i] = src[i] * factor in chunks of four.
func Scale(dst, src []float64, factor float64) {
	src = src[:len(dst)]
	for i := 0; i+Lanes <= len(dst); i += Lanes {
		d := dst[i : i+Lanes : i+Lanes]
		s := src[i : i+Lanes : i+Lanes]
		d[0] = s[0] * factor
		d[1] = s[1] * factor
		d[2] = s[2] * factor
		d[3] = s[3] * factor
	}
}

// Add computes dst[i] = a[i] + b[i] in chunks of four.
func Add(dst, a, b []float64) {
	a = a[:len(dst)]
	b = b[:len(dst)]
	for i := 0; i+Lanes <= len(dst); i += Lanes {
		d := dst[i : i+Lanes : i+Lanes]
		x := a[i : i+Lanes : i+Lanes]
		y := b[i : i+Lanes : i+Lanes]
		d[0] = x[0] + y[0]
		d[1] = x[1] + y[1]
		d[2] = x[2] + y[2]
		d[3] = x[3] + y[3]
	}
}

// Multiply computes dst[i] = a[i] * b[i] in chunks of four.
func Multiply(dst, a, b []float64) {
	a = a[:len(dst)]
	b = b[:len(dst)]
	for i := 0; i+Lanes <= len(dst); i += Lanes {
		d := dst[i : i+Lanes : i+Lanes]
		x := a[i : i+Lanes : i+Lanes]
		y := b[i : i+Lanes : i+Lanes]
		d[0] = x[0] * y[0]
		d[1] = x[1] * y[1]
		d[2] = x[2] * y[2]
		d[3] = x[3] * y[3]
	}
}

// AddScaled computes dst[i] += src[i] * factor in chunks of four.
func AddScaled(dst, src []float64, factor float64) {
	src = src[:len(dst)]
	for i := 0; i+Lanes <= len(dst); i += Lanes {
		d := dst[i : i+Lanes : i+Lanes]
		s := src[i : i+Lanes : i+Lanes]
		d[0] += s[0] * factor
		d[1] += s[1] * factor
		d[2] += s[2] * factor
		d[3] += s[3] * factor
	}
}

// Clip limits src to [lo, hi] in chunks of four.
func Clip(dst, src []float64, lo, hi float64) {
	src = src[:len(dst)]
	for i := 0; i+Lanes <= len(dst); i += Lanes {
		d := dst[i : i+Lanes : i+Lanes]
		s := src[i : i+Lanes : i+Lanes]
		d[0] = min(max(s[0], lo), hi)
		d[1] = min(max(s[1], lo), hi)
		d[2] = min(max(s[2], lo), hi)
		d[3] = min(max(s[3], lo), hi)
	}
}
