package core

// EnsureLen returns a slice with the requested length, reusing buf capacity if possible.
func EnsureLen(buf []float64, n int) []float64 {
	if n <= 0 {
		return buf[:0]
	}
	if cap(buf) >= n {
		return buf[:n]
	}
	return make([]float64, n)
}

// Zero sets all values in buf to 0.
func Zero(buf []float64) {
	clear(buf)
}

// ShiftIn drops the first len(src) samples of hist, moves the remainder to
// the front and appends src. When src is longer than hist only its tail is
// kept. It maintains convolution and delay histories in place.
func ShiftIn(hist, src []float64) {
	n := len(hist)
	if n == 0 {
		return
	}
	if len(src) >= n {
		copy(hist, src[len(src)-n:])
		return
	}
	copy(hist, hist[len(src):])
	copy(hist[n-len(src):], src)
}
