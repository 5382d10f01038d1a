package conv

import (
	"errors"

	"github.com/cwbudde/algo-spatial/dsp/vector"
)

// Errors returned by convolution functions.
var (
	ErrEmptyInput     = errors.New("conv: empty input")
	ErrEmptyKernel    = errors.New("conv: empty kernel")
	ErrLengthMismatch = errors.New("conv: buffer length mismatch")
	ErrKernelTooLong  = errors.New("conv: kernel longer than configured maximum")
	ErrBlockTooLong   = errors.New("conv: block longer than configured maximum")
)

// DirectThreshold is the longest kernel convolved in the time domain.
const DirectThreshold = 64

// Direct returns the full linear convolution of a and b, of length
// len(a)+len(b)-1.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	result := make([]float64, len(a)+len(b)-1)
	DirectTo(result, a, b)
	return result, nil
}

// DirectTo writes the full convolution of a and b into dst, which must
// have length len(a)+len(b)-1.
func DirectTo(dst, a, b []float64) {
	clear(dst)

	m := len(b)
	for i, x := range a {
		if x == 0 {
			continue
		}
		vector.AddScaled(dst[i:i+m], b, x)
	}
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
