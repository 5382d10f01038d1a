package design

import (
	"math"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
)

// Parameter ranges for user-facing filter bands.
const (
	MinFrequency = 20.0
	MaxFrequency = 20000.0
	// MaxFrequencyRatio caps the centre frequency relative to the sample
	// rate to keep the bilinear warp well-behaved.
	MaxFrequencyRatio = 0.45

	MinGainDB = -120.0
	MaxGainDB = 12.0

	MinQ = 0.1
	MaxQ = 24.0

	// ThirdOctaveQ is the Q of a one-third-octave band.
	ThirdOctaveQ = 4.318
)

// Band is a peaking filter band description.
type Band struct {
	Frequency float64 `yaml:"frequency"`
	GainDB    float64 `yaml:"gain_db"`
	Q         float64 `yaml:"q"`
}

// Clamped returns b with every parameter limited to its valid range for
// the given sample rate. NaN parameters fall back to the range minimum for
// frequency and Q and to 0 dB for gain.
func (b Band) Clamped(sampleRate float64) Band {
	hi := math.Min(MaxFrequency, MaxFrequencyRatio*sampleRate)

	f := b.Frequency
	if math.IsNaN(f) {
		f = MinFrequency
	}
	g := b.GainDB
	if math.IsNaN(g) {
		g = 0
	}
	q := b.Q
	if math.IsNaN(q) {
		q = MinQ
	}

	return Band{
		Frequency: core.Clamp(f, MinFrequency, hi),
		GainDB:    core.Clamp(g, MinGainDB, MaxGainDB),
		Q:         core.Clamp(q, MinQ, MaxQ),
	}
}

// Coefficients clamps b and designs its peaking section.
func (b Band) Coefficients(sampleRate float64) biquad.Coefficients {
	c := b.Clamped(sampleRate)
	return Peak(c.Frequency, c.GainDB, c.Q, sampleRate)
}

// ISOThirdOctave holds the 28 preferred one-third-octave centre
// frequencies from 31.5 Hz to 16 kHz.
var ISOThirdOctave = [...]float64{
	31.5, 40, 50, 63, 80, 100, 125, 160, 200, 250,
	315, 400, 500, 630, 800, 1000, 1250, 1600, 2000, 2500,
	3150, 4000, 5000, 6300, 8000, 10000, 12500, 16000,
}

// BandCenters returns n centre frequencies. For n equal to
// len(ISOThirdOctave) the preferred ISO frequencies are returned; other
// counts are spaced logarithmically over the same span.
func BandCenters(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == len(ISOThirdOctave) {
		return append([]float64(nil), ISOThirdOctave[:]...)
	}

	lo := math.Log(ISOThirdOctave[0])
	hi := math.Log(ISOThirdOctave[len(ISOThirdOctave)-1])
	out := make([]float64, n)
	if n == 1 {
		out[0] = 1000
		return out
	}
	for i := range out {
		out[i] = math.Exp(lo + (hi-lo)*float64(i)/float64(n-1))
	}
	return out
}

// BandQ returns the Q giving adjacent bands of an n-band log layout
// roughly touching -3 dB skirts. It returns ThirdOctaveQ for the ISO layout.
func BandQ(n int) float64 {
	if n == len(ISOThirdOctave) || n <= 1 {
		return ThirdOctaveQ
	}

	octaves := math.Log2(ISOThirdOctave[len(ISOThirdOctave)-1]/ISOThirdOctave[0]) / float64(n-1)
	r := math.Pow(2, octaves)
	q := math.Sqrt(r) / (r - 1)
	return core.Clamp(q, MinQ, MaxQ)
}
