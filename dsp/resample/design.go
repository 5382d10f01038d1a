package resample

import (
	"math"

	"github.com/cwbudde/algo-spatial/dsp/window"
)

// design returns the polyphase branches of a Kaiser-windowed sinc lowpass
// at the lower of the two Nyquist frequencies. Each branch has unit DC
// gain up to ripple.
func design(up, down int, p profile) [][]float64 {
	n := p.taps * up
	fc := p.cutoff * 0.5 / float64(max(up, down)) // cycles per upsampled sample

	h := window.Generate(window.TypeKaiser, n, window.WithAlpha(p.beta))
	centre := float64(n-1) / 2

	var sum float64

	for i := range h {
		t := float64(i) - centre
		h[i] *= 2 * fc * sinc(2*fc*t)
		sum += h[i]
	}

	scale := float64(up) / sum

	phases := make([][]float64, up)
	for ph := range phases {
		branch := make([]float64, p.taps)
		for k := range branch {
			branch[k] = h[ph+k*up] * scale
		}

		phases[ph] = branch
	}

	return phases
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}

	return math.Sin(math.Pi*x) / (math.Pi * x)
}
