package thd

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/dsp/core"
)

var (
	// ErrShortSignal is returned when fewer than two periods are available.
	ErrShortSignal = fmt.Errorf("%w: thd: signal shorter than two periods", core.ErrInvalidInput)
	// ErrFrequency is returned for a probe frequency outside (0, fs/2).
	ErrFrequency = fmt.Errorf("%w: thd: probe frequency out of range", core.ErrInvalidArgument)
	// ErrNoSignal is returned when the fitted fundamental has zero energy.
	ErrNoSignal = errors.New("thd: no fundamental in signal")
)

// Fit is the outcome of a sine fit at a known frequency.
type Fit struct {
	Frequency float64
	Amplitude float64
	Phase     float64 // radians, relative to sin
	Offset    float64 // DC
	// THDN is the residual RMS divided by the fitted fundamental RMS.
	THDN float64
}

// Percent returns THD+N in percent.
func (f Fit) Percent() float64 { return f.THDN * 100 }

// DB returns THD+N in dB relative to the fundamental.
func (f Fit) DB() float64 { return ratioToDB(f.THDN) }

// SineFit fits a*sin(wt) + b*cos(wt) + c to signal at the known frequency
// by linear least squares and reports the residual as THD+N. Everything that
// is not the fundamental or DC counts as distortion plus noise, so the
// signal should be captured after any transient has settled.
func SineFit(signal []float64, frequency, sampleRate float64) (Fit, error) {
	if sampleRate <= 0 || !(frequency > 0) || frequency >= sampleRate/2 {
		return Fit{}, ErrFrequency
	}

	if float64(len(signal)) < 2*sampleRate/frequency {
		return Fit{}, ErrShortSignal
	}

	w := 2 * math.Pi * frequency / sampleRate

	// Normal equations for the basis (sin, cos, 1).
	var sss, scc, ssc, ss, sc, n float64

	var sxs, sxc, sx float64

	for i, x := range signal {
		s, c := math.Sincos(w * float64(i))
		sss += s * s
		scc += c * c
		ssc += s * c
		ss += s
		sc += c
		n++
		sxs += x * s
		sxc += x * c
		sx += x
	}

	m := [3][4]float64{
		{sss, ssc, ss, sxs},
		{ssc, scc, sc, sxc},
		{ss, sc, n, sx},
	}

	coef, ok := solve3(m)
	if !ok {
		return Fit{}, ErrShortSignal
	}

	a, b, dc := coef[0], coef[1], coef[2]

	var resid, fund float64

	for i, x := range signal {
		s, c := math.Sincos(w * float64(i))
		f := a*s + b*c
		r := x - f - dc
		resid += r * r
		fund += f * f
	}

	if fund <= 0 {
		return Fit{}, ErrNoSignal
	}

	return Fit{
		Frequency: frequency,
		Amplitude: math.Hypot(a, b),
		Phase:     math.Atan2(b, a),
		Offset:    dc,
		THDN:      math.Sqrt(resid / fund),
	}, nil
}

// solve3 performs Gaussian elimination with partial pivoting on an
// augmented 3x3 system.
func solve3(m [3][4]float64) ([3]float64, bool) {
	var out [3]float64

	for col := range 3 {
		pivot := col
		for r := col + 1; r < 3; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}

		if math.Abs(m[pivot][col]) < 1e-300 {
			return out, false
		}

		m[col], m[pivot] = m[pivot], m[col]

		for r := col + 1; r < 3; r++ {
			f := m[r][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[r][k] -= f * m[col][k]
			}
		}
	}

	for r := 2; r >= 0; r-- {
		v := m[r][3]
		for k := r + 1; k < 3; k++ {
			v -= m[r][k] * out[k]
		}

		out[r] = v / m[r][r]
	}

	return out, true
}
