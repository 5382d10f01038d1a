package vector

import "math"

func mustCover(op string, n int, srcs ...[]float64) {
	for _, s := range srcs {
		if len(s) < n {
			panic("vector: " + op + ": source shorter than destination")
		}
	}
}

// Scale computes dst[i] = src[i] * factor.
func Scale(dst, src []float64, factor float64) {
	n := len(dst)
	mustCover("Scale", n, src)

	e := active()
	k := body(e, n, dst, src)
	if k > 0 {
		e.Scale(dst[:k], src[:k], factor)
	}
	for i := k; i < n; i++ {
		dst[i] = src[i] * factor
	}
}

// Clip computes dst[i] = src[i] limited to [lo, hi].
func Clip(dst, src []float64, lo, hi float64) {
	n := len(dst)
	mustCover("Clip", n, src)
	if lo > hi {
		lo, hi = hi, lo
	}

	e := active()
	k := body(e, n, dst, src)
	if k > 0 {
		e.Clip(dst[:k], src[:k], lo, hi)
	}
	for i := k; i < n; i++ {
		dst[i] = min(max(src[i], lo), hi)
	}
}

// Add computes dst[i] = a[i] + b[i].
func Add(dst, a, b []float64) {
	n := len(dst)
	mustCover("Add", n, a, b)

	e := active()
	k := body(e, n, dst, a, b)
	if k > 0 {
		e.Add(dst[:k], a[:k], b[:k])
	}
	for i := k; i < n; i++ {
		dst[i] = a[i] + b[i]
	}
}

// Multiply computes dst[i] = a[i] * b[i].
func Multiply(dst, a, b []float64) {
	n := len(dst)
	mustCover("Multiply", n, a, b)

	e := active()
	k := body(e, n, dst, a, b)
	if k > 0 {
		e.Multiply(dst[:k], a[:k], b[:k])
	}
	for i := k; i < n; i++ {
		dst[i] = a[i] * b[i]
	}
}

// AddScaled computes dst[i] += src[i] * factor.
func AddScaled(dst, src []float64, factor float64) {
	n := len(dst)
	mustCover("AddScaled", n, src)

	e := active()
	k := body(e, n, dst, src)
	if k > 0 {
		e.AddScaled(dst[:k], src[:k], factor)
	}
	for i := k; i < n; i++ {
		dst[i] += src[i] * factor
	}
}

// FlushDenormals sets every sample with |x| < threshold to zero and returns
// the number of samples flushed. Exact zeros are not counted.
func FlushDenormals(dst []float64, threshold float64) int {
	flushed := 0
	for i, v := range dst {
		if v != 0 && v > -threshold && v < threshold {
			dst[i] = 0
			flushed++
		}
	}
	return flushed
}

// Ramp computes dst[i] = src[i] * g where g moves linearly from start
// towards end, reaching end on the last sample.
func Ramp(dst, src []float64, start, end float64) {
	n := len(dst)
	mustCover("Ramp", n, src)
	if start == end {
		Scale(dst, src, end)
		return
	}

	step := (end - start) / float64(n)
	g := start
	for i := 0; i < n; i++ {
		g += step
		dst[i] = src[i] * g
	}
	if n > 0 {
		dst[n-1] = src[n-1] * end
	}
}

// Energy returns the sum of squares of x.
func Energy(x []float64) float64 {
	var e0, e1, e2, e3 float64
	i := 0
	for ; i+4 <= len(x); i += 4 {
		e0 += x[i] * x[i]
		e1 += x[i+1] * x[i+1]
		e2 += x[i+2] * x[i+2]
		e3 += x[i+3] * x[i+3]
	}
	for ; i < len(x); i++ {
		e0 += x[i] * x[i]
	}
	return e0 + e1 + e2 + e3
}

// Dot returns the inner product of a and b. b must be at least as long as
// a.
func Dot(a, b []float64) float64 {
	mustCover("Dot", len(a), b)

	var s0, s1, s2, s3 float64
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

// RMS returns the root mean square of x, or 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(Energy(x) / float64(len(x)))
}

// MaxAbs returns the largest absolute value in x.
func MaxAbs(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}
