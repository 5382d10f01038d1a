// Package unrolled provides a four-way unrolled biquad kernel for wide
// out-of-order cores.
package unrolled

import "github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/registry"

// ProcessBlock runs DF-II-T over buf, four samples per iteration.
func ProcessBlock(c registry.Coefficients, d0, d1 float64, buf []float64) (newD0, newD1 float64) {
	b0, b1, b2 := c.B0, c.B1, c.B2
	a1, a2 := c.A1, c.A2

	i := 0
	n := len(buf)
	for ; i+3 < n; i += 4 {
		x := buf[i : i+4 : i+4]

		y0 := b0*x[0] + d0
		s0 := b1*x[0] - a1*y0 + d1
		s1 := b2*x[0] - a2*y0

		y1 := b0*x[1] + s0
		s0 = b1*x[1] - a1*y1 + s1
		s1 = b2*x[1] - a2*y1

		y2 := b0*x[2] + s0
		s0 = b1*x[2] - a1*y2 + s1
		s1 = b2*x[2] - a2*y2

		y3 := b0*x[3] + s0
		d0 = b1*x[3] - a1*y3 + s1
		d1 = b2*x[3] - a2*y3

		x[0], x[1], x[2], x[3] = y0, y1, y2, y3
	}

	for ; i < n; i++ {
		v := buf[i]
		y := b0*v + d0
		d0 = b1*v - a1*y + d1
		d1 = b2*v - a2*y
		buf[i] = y
	}

	return d0, d1
}
