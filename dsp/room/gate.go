package room

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
	"github.com/cwbudde/algo-spatial/dsp/signal"
	"github.com/cwbudde/algo-spatial/dsp/vector"
	"github.com/cwbudde/algo-spatial/measure/thd"
)

// Probe parameters of the quality gate.
const (
	ProbeFrequency = 1000.0
	ProbeAmplitude = 0.5
	ProbeSettle    = 1.0  // seconds discarded before analysis
	ProbeAnalysis  = 0.25 // seconds analyzed
)

// ProposeCorrection derives gains from src and accepts them only when the
// candidate filter keeps THD+N at or below the threshold. It returns the
// worst THD+N in percent over all probes. On rejection the previous target
// stays in place and the error wraps ErrQualityThresholdExceeded.
func (f *CorrectionFilter) ProposeCorrection(src CorrectionSource) (float64, error) {
	gains, err := src.CorrectionGains(f.Centres(), f.cfg.maxBoost)
	if err != nil {
		return 0, err
	}

	for i, g := range gains {
		if !core.IsFinite(g) {
			return 0, fmt.Errorf("%w: band %d gain %g", ErrInvalidArgument, i, g)
		}

		gains[i] = core.Clamp(g, -MaxCutDB, f.cfg.maxBoost)
	}

	worst, err := f.Probe(gains)
	if err != nil {
		return 0, err
	}

	if worst > f.cfg.threshold {
		return worst, fmt.Errorf("%w: THD+N %.6f%% above %.6f%%", ErrQualityThresholdExceeded, worst, f.cfg.threshold)
	}

	f.mu.Lock()
	copy(f.target, gains)
	f.version++
	f.thdn = worst
	f.mu.Unlock()

	return worst, nil
}

// Probe runs the gate measurement for gains without changing the filter and
// returns the worst THD+N in percent. A sine at ProbeFrequency and one at
// the band with the largest gain pass through a fresh cascade followed by
// the output clip stage.
func (f *CorrectionFilter) Probe(gains []float64) (float64, error) {
	if len(gains) != len(f.centres) {
		return 0, fmt.Errorf("%w: %d gains for %d bands", ErrInvalidArgument, len(gains), len(f.centres))
	}

	coeffs := make([]biquad.Coefficients, len(gains))
	for i, g := range gains {
		coeffs[i] = bandCoefficients(f.centres[i], g, f.q, f.sampleRate)
	}

	settle := int(ProbeSettle * f.sampleRate)
	total := settle + int(ProbeAnalysis*f.sampleRate)
	x := make([]float64, total)

	gen := signal.NewGenerator(core.WithSampleRate(f.sampleRate))

	var worst float64

	for _, freq := range probeFrequencies(f.centres, gains, f.sampleRate) {
		if err := gen.Fill(x, signal.Tone{Frequency: freq, Amplitude: ProbeAmplitude}); err != nil {
			return 0, fmt.Errorf("room: %w", err)
		}

		chain := biquad.NewChain(coeffs)
		bypassIdentity(chain, coeffs)
		chain.ProcessBlock(x)
		vector.Clip(x, x, -1, 1)

		fit, err := thd.SineFit(x[settle:], freq, f.sampleRate)
		if err != nil {
			return 0, fmt.Errorf("room: probe at %g Hz: %w", freq, err)
		}

		worst = math.Max(worst, fit.Percent())
	}

	return worst, nil
}

// probeFrequencies returns ProbeFrequency plus the centre of the largest
// boost, if any.
func probeFrequencies(centres, gains []float64, sampleRate float64) []float64 {
	out := []float64{ProbeFrequency}

	peak := 0
	for i, g := range gains {
		if g > gains[peak] {
			peak = i
		}
	}

	if fc := centres[peak]; gains[peak] > 0 && fc != ProbeFrequency && fc < sampleRate/2 {
		out = append(out, fc)
	}

	return out
}
