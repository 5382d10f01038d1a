package spatial

import (
	"math"

	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
	"github.com/cwbudde/algo-spatial/dsp/filter/design"
)

// Air absorption model: a high-shelf cut whose depth grows linearly with
// distance beyond the reference distance.
const (
	AirShelfFrequency = 8000.0
	AirDBPerMetre     = -0.05
	AirMaxCutDB       = -24.0
	ReferenceDistance = 1.0 // m, also the attenuation floor
)

// AirAbsorptionDB returns the shelf gain in dB for a source at dist metres.
func AirAbsorptionDB(dist float64) float64 {
	if !(dist > ReferenceDistance) {
		return 0
	}

	return math.Max(AirDBPerMetre*(dist-ReferenceDistance), AirMaxCutDB)
}

// DistanceGain returns the inverse-distance amplitude factor, 1 at and
// inside the reference distance.
func DistanceGain(dist float64) float64 {
	return ReferenceDistance / math.Max(dist, ReferenceDistance)
}

func airShelf(dist, sampleRate float64) biquad.Coefficients {
	db := AirAbsorptionDB(dist)
	if db == 0 {
		return biquad.Identity
	}

	return design.HighShelf(math.Min(AirShelfFrequency, 0.45*sampleRate), db, 1/math.Sqrt2, sampleRate)
}
