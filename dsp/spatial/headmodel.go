package spatial

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/filter/biquad"
	"github.com/cwbudde/algo-spatial/dsp/window"
)

// Spherical head model defaults.
const (
	DefaultHeadRadius = 0.0875 // m
	DefaultIRLength   = 128

	// Brown-Duda shadow parameters: minimum high-frequency gain and the
	// incidence angle where it is reached.
	shadowAlphaMin = 0.1
	shadowThetaMin = 150.0 // degrees
)

// SphericalHeadModel synthesizes HRTFs for a rigid sphere with ears on the
// interaural axis. Each ear gets a first-order head-shadow filter after
// Brown and Duda, a Woodworth onset delay and a near-field level correction
// from the ear-to-source distance. The response tail is faded out.
type SphericalHeadModel struct {
	Radius     float64
	SampleRate float64
	Length     int
}

// NewSphericalHeadModel returns a model with the default head radius and
// response length.
func NewSphericalHeadModel(sampleRate float64) *SphericalHeadModel {
	return &SphericalHeadModel{
		Radius:     DefaultHeadRadius,
		SampleRate: sampleRate,
		Length:     DefaultIRLength,
	}
}

// DefaultGrid returns the grid used for synthesized databases: 15 degree
// azimuth steps, elevations every 30 degrees and four distance shells.
func DefaultGrid(sampleRate float64) Grid {
	return Grid{
		SampleRate:  sampleRate,
		AzimuthStep: 15,
		Elevations:  []float64{-90, -60, -30, 0, 30, 60, 90},
		Distances:   []float64{0.5, 1, 2, 5},
		Length:      DefaultIRLength,
	}
}

// Database synthesizes every point of g.
func (m *SphericalHeadModel) Database(g Grid) (*Database, error) {
	if g.SampleRate != m.SampleRate {
		return nil, fmt.Errorf("%w: grid rate %g, model rate %g", ErrDatabase, g.SampleRate, m.SampleRate)
	}

	db, err := NewDatabase(g)
	if err != nil {
		return nil, err
	}

	model := *m
	model.Length = g.Length

	for i := range db.Len() {
		az, el, d := db.Point(i)
		model.Generate(az, el, d, db.Set(i))
	}

	return db, nil
}

// Generate writes the response pair for a source at (az, el, dist) into
// dst, resizing it to m.Length taps.
func (m *SphericalHeadModel) Generate(az, el, dist float64, dst *CoefficientSet) {
	n := m.Length
	if n <= 0 {
		n = DefaultIRLength
	}

	a := m.Radius
	if a <= 0 {
		a = DefaultHeadRadius
	}

	dst.reset(n)

	// Keep the source outside the head.
	dist = max(dist, 1.1*a)
	dir := FromSpherical(az, el, 1)

	dst.DelayLeft = m.ear(dst.Left, dir, dist, a, -1)
	dst.DelayRight = m.ear(dst.Right, dir, dist, a, 1)
}

// ear fills ir for the ear on side (+1 right, -1 left) and returns its
// onset delay in samples.
func (m *SphericalHeadModel) ear(ir []float64, dir Vec3, dist, a, side float64) float64 {
	axis := Vec3{X: side}
	theta := math.Acos(core.Clamp(dir.Dot(axis), -1, 1))

	s := biquad.NewSection(shadowFilter(theta*180/math.Pi, a, m.SampleRate))

	ir[0] = s.ProcessSample(1)
	for i := 1; i < len(ir); i++ {
		ir[i] = s.ProcessSample(0)
	}

	window.FadeOut(ir, len(ir)/4)

	// Level relative to the head centre: closer ear is louder.
	src := dir.Scale(dist)
	gain := dist / src.Sub(axis.Scale(a)).Norm()

	for i := range ir {
		ir[i] *= gain
	}

	return woodworthDelay(theta, a) * m.SampleRate
}

// shadowFilter returns the bilinear transform of
// H(s) = (alpha*s + beta) / (s + beta), beta = 2c/a, for incidence angle
// theta in degrees. DC gain is 1; the high-frequency gain is alpha.
func shadowFilter(theta, a, sampleRate float64) biquad.Coefficients {
	alpha := (1 + shadowAlphaMin/2) + (1-shadowAlphaMin/2)*math.Cos(theta/shadowThetaMin*math.Pi)
	beta := 2 * core.SpeedOfSound / a
	k := 2 * sampleRate

	return biquad.Coefficients{
		B0: (beta + alpha*k) / (beta + k),
		B1: (beta - alpha*k) / (beta + k),
		A1: (beta - k) / (beta + k),
	}
}

// woodworthDelay returns the arrival delay in seconds at an ear whose axis
// makes angle theta (radians) with the source direction. The result is
// offset by a/c so the ear facing the source has zero delay.
func woodworthDelay(theta, a float64) float64 {
	t := a / core.SpeedOfSound
	if theta < math.Pi/2 {
		return t - t*math.Cos(theta)
	}

	return t + t*(theta-math.Pi/2)
}
