package ir

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/dsp/core"
)

var (
	// ErrEmpty is returned for a zero-length or all-zero response.
	ErrEmpty = fmt.Errorf("ir: %w: empty impulse response", core.ErrInvalidInput)
	// ErrSampleRate is returned by NewAnalyzer for unusable rates.
	ErrSampleRate = fmt.Errorf("ir: %w: sample rate", core.ErrInvalidArgument)
	// ErrBoundary is returned for a non-positive early/late boundary.
	ErrBoundary = fmt.Errorf("ir: %w: time boundary must be positive", core.ErrInvalidArgument)
	// ErrNoDecay is returned when the response never falls 25 dB.
	ErrNoDecay = fmt.Errorf("ir: %w: insufficient decay", core.ErrInvalidInput)
)

// decayFloorDB is the value stored where the remaining energy is zero.
const decayFloorDB = -200.0

// Metrics holds the parameters of one impulse response. Times are in
// seconds; a zero decay time means the curve never reached its end level.
type Metrics struct {
	RT60       float64
	EDT        float64
	T20        float64
	T30        float64
	C50        float64 // dB
	C80        float64 // dB
	D50        float64 // 0..1
	D80        float64 // 0..1
	CenterTime float64
	PeakIndex  int
}

// Analyzer evaluates responses sampled at a fixed rate.
type Analyzer struct {
	sampleRate float64
}

// NewAnalyzer returns an analyzer for sampleRate.
func NewAnalyzer(sampleRate float64) (*Analyzer, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w %g", ErrSampleRate, sampleRate)
	}

	return &Analyzer{sampleRate: sampleRate}, nil
}

// SampleRate returns the analysis rate in Hz.
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// Analyze computes every metric from the peak of ir onwards.
func (a *Analyzer) Analyze(ir []float64) (Metrics, error) {
	peak := peakIndex(ir)
	if peak < 0 {
		return Metrics{}, ErrEmpty
	}

	tail := ir[peak:]
	curve := Schroeder(tail)

	m := Metrics{
		PeakIndex:  peak,
		EDT:        a.fit(curve, 0, -10),
		T20:        a.fit(curve, -5, -25),
		T30:        a.fit(curve, -5, -35),
		CenterTime: a.centerTime(tail),
	}

	m.RT60 = m.T30
	if m.RT60 == 0 {
		m.RT60 = m.T20
	}

	m.C50, m.D50 = a.split(tail, 0.050)
	m.C80, m.D80 = a.split(tail, 0.080)

	return m, nil
}

// RT60 returns T30, or T20 when the response is too short for T30.
func (a *Analyzer) RT60(ir []float64) (float64, error) {
	peak := peakIndex(ir)
	if peak < 0 {
		return 0, ErrEmpty
	}

	curve := Schroeder(ir[peak:])
	if rt := a.fit(curve, -5, -35); rt > 0 {
		return rt, nil
	}

	if rt := a.fit(curve, -5, -25); rt > 0 {
		return rt, nil
	}

	return 0, ErrNoDecay
}

// Clarity returns the early-to-late energy ratio in dB with the boundary at
// seconds after the first sample of ir.
func (a *Analyzer) Clarity(ir []float64, seconds float64) (float64, error) {
	if err := checkBoundary(ir, seconds); err != nil {
		return 0, err
	}

	c, _ := a.split(ir, seconds)

	return c, nil
}

// Definition returns the fraction of the energy arriving before seconds.
func (a *Analyzer) Definition(ir []float64, seconds float64) (float64, error) {
	if err := checkBoundary(ir, seconds); err != nil {
		return 0, err
	}

	_, d := a.split(ir, seconds)

	return d, nil
}

// CenterTime returns the energy centroid of ir in seconds.
func (a *Analyzer) CenterTime(ir []float64) (float64, error) {
	if len(ir) == 0 {
		return 0, ErrEmpty
	}

	return a.centerTime(ir), nil
}

// Onset returns the first sample within threshold (a linear ratio, e.g.
// 0.1 for -20 dB) of the absolute peak.
func Onset(ir []float64, threshold float64) (int, error) {
	peak := peakIndex(ir)
	if peak < 0 {
		return 0, ErrEmpty
	}

	level := math.Abs(ir[peak]) * threshold
	for i, v := range ir[:peak] {
		if math.Abs(v) >= level {
			return i, nil
		}
	}

	return peak, nil
}

// Schroeder returns the backward-integrated energy of ir in dB relative to
// the total. The curve starts at 0 dB and never increases.
func Schroeder(ir []float64) []float64 {
	curve := make([]float64, len(ir))

	var acc float64
	for i := len(ir) - 1; i >= 0; i-- {
		acc += ir[i] * ir[i]
		curve[i] = acc
	}

	if len(curve) == 0 || curve[0] <= 0 {
		return curve
	}

	total := curve[0]
	for i, e := range curve {
		if e <= 0 {
			curve[i] = decayFloorDB
			continue
		}

		curve[i] = 10 * math.Log10(e/total)
	}

	return curve
}

// fit regresses the curve between the first crossings of hiDB and loDB and
// extrapolates the slope to a 60 dB decay.
func (a *Analyzer) fit(curve []float64, hiDB, loDB float64) float64 {
	start, end := -1, -1

	for i, v := range curve {
		if start < 0 && v <= hiDB {
			start = i
		}

		if start >= 0 && v <= loDB {
			end = i
			break
		}
	}

	if start < 0 || end <= start {
		return 0
	}

	var sx, sy, sxx, sxy float64

	n := float64(end - start + 1)
	for i := start; i <= end; i++ {
		x := float64(i - start)
		sx += x
		sy += curve[i]
		sxx += x * x
		sxy += x * curve[i]
	}

	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}

	slope := (n*sxy - sx*sy) / den * a.sampleRate // dB per second
	if slope >= 0 {
		return 0
	}

	return -60 / slope
}

// split returns clarity in dB and definition for a boundary in seconds.
func (a *Analyzer) split(ir []float64, seconds float64) (clarity, definition float64) {
	boundary := int(math.Round(seconds * a.sampleRate))

	var early, late float64

	for i, v := range ir {
		if i < boundary {
			early += v * v
		} else {
			late += v * v
		}
	}

	total := early + late
	if total <= 0 {
		return math.Inf(-1), 0
	}

	switch {
	case late == 0:
		clarity = math.Inf(1)
	case early == 0:
		clarity = math.Inf(-1)
	default:
		clarity = 10 * math.Log10(early/late)
	}

	return clarity, early / total
}

func (a *Analyzer) centerTime(ir []float64) float64 {
	var num, den float64

	for i, v := range ir {
		e := v * v
		num += float64(i) * e
		den += e
	}

	if den == 0 {
		return 0
	}

	return num / den / a.sampleRate
}

func checkBoundary(ir []float64, seconds float64) error {
	if len(ir) == 0 {
		return ErrEmpty
	}

	if !(seconds > 0) {
		return ErrBoundary
	}

	return nil
}

// peakIndex returns the index of the largest magnitude, or -1 when ir holds
// no energy.
func peakIndex(ir []float64) int {
	idx, best := -1, 0.0

	for i, v := range ir {
		if av := math.Abs(v); av > best {
			idx, best = i, av
		}
	}

	return idx
}
