package design

import (
	"math"

	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
)

const defaultQ = 1 / math.Sqrt2

// Peak designs an RBJ peaking biquad with gain in dB. A gain of exactly
// 0 dB returns biquad.Identity. Invalid frequencies return the zero
// Coefficients.
func Peak(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	if gainDB == 0 {
		if _, ok := normalizedW0(freq, sampleRate); ok {
			return biquad.Identity
		}
		return biquad.Coefficients{}
	}

	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	q = normalizedQ(q)
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a := math.Pow(10, gainDB/40)

	return normalizeBiquad(
		1+alpha*a, -2*cw, 1-alpha*a,
		1+alpha/a, -2*cw, 1-alpha/a,
	)
}

// LowShelf designs an RBJ low-shelf biquad with gain in dB.
func LowShelf(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	return shelf(freq, gainDB, q, sampleRate, -1)
}

// HighShelf designs an RBJ high-shelf biquad with gain in dB.
func HighShelf(freq, gainDB, q, sampleRate float64) biquad.Coefficients {
	return shelf(freq, gainDB, q, sampleRate, 1)
}

// shelf implements both cookbook shelves; sign is -1 for low, +1 for high.
func shelf(freq, gainDB, q, sampleRate, sign float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}
	if gainDB == 0 {
		return biquad.Identity
	}

	q = normalizedQ(q)
	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a := math.Pow(10, gainDB/40)
	beta := 2 * math.Sqrt(a) * alpha

	// sign flips the (a-1)*cos terms between the two cookbook forms.
	scw := sign * cw

	b0 := a * ((a + 1) + (a-1)*scw + beta)
	b1 := -2 * sign * a * ((a - 1) + (a+1)*scw)
	b2 := a * ((a + 1) + (a-1)*scw - beta)
	a0 := (a + 1) - (a-1)*scw + beta
	a1 := 2 * sign * ((a - 1) - (a+1)*scw)
	a2 := (a + 1) - (a-1)*scw - beta

	return normalizeBiquad(b0, b1, b2, a0, a1, a2)
}

func normalizedW0(freq, sampleRate float64) (float64, bool) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return 0, false
	}

	if freq <= 0 || freq >= sampleRate/2 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}

	return 2 * math.Pi * freq / sampleRate, true
}

func normalizedQ(q float64) float64 {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return defaultQ
	}

	return q
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) biquad.Coefficients {
	if a0 == 0 || math.IsNaN(a0) || math.IsInf(a0, 0) {
		return biquad.Coefficients{}
	}

	return biquad.Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
