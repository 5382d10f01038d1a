package room

import (
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/algo-spatial/dsp/core"
)

// CorrectionSource yields correction gains in dB for a set of band centres.
// Boosts must not exceed maxBoostDB and cuts must not exceed MaxCutDB.
type CorrectionSource interface {
	CorrectionGains(centres []float64, maxBoostDB float64) ([]float64, error)
}

// Measurement is a measured magnitude response. The correction flattens it
// around its mean level.
type Measurement struct {
	Frequencies []float64 `yaml:"frequencies"`
	MagnitudeDB []float64 `yaml:"magnitude_db"`
}

// CorrectionGains interpolates the measurement onto centres and inverts it.
func (m Measurement) CorrectionGains(centres []float64, maxBoostDB float64) ([]float64, error) {
	level, err := resample(m.Frequencies, m.MagnitudeDB, centres)
	if err != nil {
		return nil, fmt.Errorf("measurement: %w", err)
	}

	return flatten(level, maxBoostDB), nil
}

// Curve is a correction curve computed elsewhere. Its gains are applied as
// given, subject only to the boost and cut limits.
type Curve struct {
	Frequencies []float64 `yaml:"frequencies"`
	GainDB      []float64 `yaml:"gain_db"`
}

// CorrectionGains interpolates the curve onto centres and clamps it.
func (c Curve) CorrectionGains(centres []float64, maxBoostDB float64) ([]float64, error) {
	gains, err := resample(c.Frequencies, c.GainDB, centres)
	if err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}

	for i, g := range gains {
		gains[i] = core.Clamp(g, -MaxCutDB, maxBoostDB)
	}

	return gains, nil
}

// flatten returns the gains that bring level to its mean.
func flatten(level []float64, maxBoostDB float64) []float64 {
	var mean float64
	for _, v := range level {
		mean += v
	}

	mean /= float64(len(level))

	out := make([]float64, len(level))
	for i, v := range level {
		out[i] = core.Clamp(mean-v, -MaxCutDB, maxBoostDB)
	}

	return out
}

// resample interpolates (freqs, values) linearly over log frequency at each
// of at. Points outside the data take the nearest end value.
func resample(freqs, values, at []float64) ([]float64, error) {
	if len(freqs) == 0 || len(freqs) != len(values) {
		return nil, fmt.Errorf("%w: %d frequencies for %d values", ErrInvalidArgument, len(freqs), len(values))
	}

	for i, f := range freqs {
		if !(f > 0) || math.IsInf(f, 0) || !core.IsFinite(values[i]) {
			return nil, fmt.Errorf("%w: point %d (%g Hz, %g)", ErrInvalidArgument, i, f, values[i])
		}

		if i > 0 && f <= freqs[i-1] {
			return nil, fmt.Errorf("%w: frequencies not strictly increasing at %d", ErrInvalidArgument, i)
		}
	}

	out := make([]float64, len(at))

	for k, f := range at {
		j := sort.SearchFloat64s(freqs, f)

		switch {
		case j == 0:
			out[k] = values[0]
		case j == len(freqs):
			out[k] = values[len(values)-1]
		default:
			t := math.Log(f/freqs[j-1]) / math.Log(freqs[j]/freqs[j-1])
			out[k] = values[j-1] + t*(values[j]-values[j-1])
		}
	}

	return out, nil
}
