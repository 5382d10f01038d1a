package vector

import "unsafe"

// Alignment is the minimum byte alignment the chunked backends require.
const Alignment = 16

const sampleSize = int(unsafe.Sizeof(float64(0)))

// IsAligned reports whether the first element of s sits on an address that
// is a multiple of alignment bytes. Empty slices are aligned.
func IsAligned(s []float64, alignment int) bool {
	if len(s) == 0 || alignment <= sampleSize {
		return true
	}

	return uintptr(unsafe.Pointer(unsafe.SliceData(s)))%uintptr(alignment) == 0
}

// MakeAligned returns a zeroed slice of length n whose first element is
// aligned to alignment bytes. alignment must be a power of two; values below
// the natural float64 alignment are raised to it.
//
// The returned slice keeps the whole over-allocated backing array alive.
func MakeAligned(n, alignment int) []float64 {
	if alignment < sampleSize {
		alignment = sampleSize
	}
	if alignment&(alignment-1) != 0 {
		panic("vector: alignment must be a power of two")
	}

	pad := alignment/sampleSize - 1
	raw := make([]float64, n+pad)
	off := 0
	for off < pad && !IsAligned(raw[off:off+1], alignment) {
		off++
	}

	return raw[off : off+n : off+n]
}

func allAligned(slices ...[]float64) bool {
	for _, s := range slices {
		if !IsAligned(s, Alignment) {
			return false
		}
	}
	return true
}
