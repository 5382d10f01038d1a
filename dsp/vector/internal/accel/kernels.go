//go:build (amd64 || arm64) && !purego

// Package accel provides the wide vector backend. Element-wise products
// and sums go through algo-vecmath's SIMD block routines; the remaining
// kernels are eight-way unrolled loops.
package accel

import (
	vecmath "github.com/cwbudde/algo-vecmath"
)

// Lanes is the chunk width of the accelerated kernels.
const Lanes = 8

// Scale computes dst[i] = src[i] * factor.
func Scale(dst, src []float64, factor float64) {
	vecmath.ScaleBlock(dst, src[:len(dst)], factor)
}

// Add computes dst[i] = a[i] + b[i].
func Add(dst, a, b []float64) {
	vecmath.AddBlock(dst, a[:len(dst)], b[:len(dst)])
}

// Multiply computes dst[i] = a[i] * b[i].
func Multiply(dst, a, b []float64) {
	vecmath.MulBlock(dst, a[:len(dst)], b[:len(dst)])
}

// AddScaled computes dst[i] += src[i] * factor.
func AddScaled(dst, src []float64, factor float64) {
	src = src[:len(dst)]
	for i := 0; i+Lanes <= len(dst); i += Lanes {
		d := dst[i : i+Lanes : i+Lanes]
		s := src[i : i+Lanes : i+Lanes]
		d[0] += s[0] * factor
		d[1] += s[1] * factor
		d[2] += s[2] * factor
		d[3] += s[3] * factor
		d[4] += s[4] * factor
		d[5] += s[5] * factor
		d[6] += s[6] * factor
		d[7] += s[7] * factor
	}
}

// Clip limits src to [lo, hi].
func Clip(dst, src []float64, lo, hi float64) {
	src = src[:len(dst)]
	for i := 0; i+Lanes <= len(dst); i += Lanes {
		d := dst[i : i+Lanes : i+Lanes]
		s := src[i : i+Lanes : i+Lanes]
		d[0] = min(max(s[0], lo), hi)
		d[1] = min(max(s[1], lo), hi)
		d[2] = min(max(s[2], lo), hi)
		d[3] = min(max(s[3], lo), hi)
		d[4] = min(max(s[4], lo), hi)
		d[5] = min(max(s[5], lo), hi)
		d[6] = min(max(s[6], lo), hi)
		d[7] = min(max(s[7], lo), hi)
	}
}
