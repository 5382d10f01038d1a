// Package window generates the analysis and fade windows used by impulse
// response synthesis and distortion measurement.
package window

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeBlackmanHarris4Term
	TypeTukey
	TypeKaiser
)

var (
	hannCoeffs            = []float64{0.5, -0.5}
	blackmanHarris4Coeffs = []float64{0.35875, -0.48829, 0.14128, -0.01168}
)

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha    float64
	periodic bool
}

// WithAlpha sets the Tukey taper fraction in [0, 1] or the Kaiser beta.
// Default 0.5.
func WithAlpha(v float64) Option {
	return func(cfg *config) { cfg.alpha = v }
}

// WithPeriodic generates the DFT-even (periodic) variant.
func WithPeriodic() Option {
	return func(cfg *config) { cfg.periodic = true }
}

// Generate returns length coefficients of the selected window.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	cfg := config{alpha: 0.5}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)
	for i := range out {
		out[i] = evalWindow(t, samplePosition(i, length, cfg.periodic), cfg)
	}

	return out
}

// Apply multiplies buf in place by the selected window.
func Apply(t Type, buf []float64, opts ...Option) {
	if len(buf) == 0 {
		return
	}

	vecmath.MulBlockInPlace(buf, Generate(t, len(buf), opts...))
}

// FadeOut applies a half-Hann fade over the last n samples of buf.
func FadeOut(buf []float64, n int) {
	n = min(n, len(buf))
	if n <= 0 {
		return
	}

	start := len(buf) - n
	for i := range n {
		x := float64(i+1) / float64(n)
		buf[start+i] *= 0.5 * (1 + math.Cos(math.Pi*x))
	}
}

// CoherentGain returns the mean of the coefficients.
func CoherentGain(coeffs []float64) float64 {
	if len(coeffs) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range coeffs {
		sum += v
	}
	return sum / float64(len(coeffs))
}

func evalWindow(t Type, x float64, cfg config) float64 {
	switch t {
	case TypeHann:
		return cosineFromCoeffs(x, hannCoeffs)
	case TypeBlackmanHarris4Term:
		return cosineFromCoeffs(x, blackmanHarris4Coeffs)
	case TypeTukey:
		return tukeyAt(x, cfg.alpha)
	case TypeKaiser:
		return kaiserAt(x, cfg.alpha)
	default:
		return 1
	}
}

func cosineFromCoeffs(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}

	return sum
}

func samplePosition(n, size int, periodic bool) float64 {
	if size <= 1 {
		return 0
	}

	den := float64(size - 1)
	if periodic {
		den = float64(size)
	}

	return float64(n) / den
}

func tukeyAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}

	if alpha >= 1 {
		return cosineFromCoeffs(x, hannCoeffs)
	}

	a := alpha / 2
	switch {
	case x < a:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
	case x <= 1-a:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
	}
}

func kaiserAt(x, beta float64) float64 {
	if beta <= 0 {
		return 1
	}

	t := 2*x - 1

	return besselI0(beta*math.Sqrt(max(0, 1-t*t))) / besselI0(beta)
}

// besselI0 evaluates the modified Bessel function of order zero by its
// power series.
func besselI0(x float64) float64 {
	sum, term := 1.0, 1.0
	q := x * x / 4

	for k := 1; k < 64 && term > 1e-17*sum; k++ {
		term *= q / float64(k*k)
		sum += term
	}

	return sum
}
