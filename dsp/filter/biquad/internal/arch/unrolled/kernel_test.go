package unrolled

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/generic"
	"github.com/cwbudde/algo-spatial/dsp/filter/biquad/internal/arch/registry"
)

func TestMatchesGeneric(t *testing.T) {
	c := registry.Coefficients{B0: 0.2, B1: 0.3, B2: 0.1, A1: -0.6, A2: 0.2}

	for _, n := range []int{1, 3, 4, 5, 17, 256} {
		a := make([]float64, n)
		b := make([]float64, n)
		for i := range a {
			a[i] = math.Sin(0.3*float64(i)) + 0.1
			b[i] = a[i]
		}

		ad0, ad1 := ProcessBlock(c, 0.05, -0.02, a)
		bd0, bd1 := generic.ProcessBlock(c, 0.05, -0.02, b)

		for i := range a {
			if math.Abs(a[i]-b[i]) > 1e-12 {
				t.Fatalf("n=%d sample %d: %v vs %v", n, i, a[i], b[i])
			}
		}
		if math.Abs(ad0-bd0) > 1e-12 || math.Abs(ad1-bd1) > 1e-12 {
			t.Fatalf("n=%d state mismatch", n)
		}
	}
}
