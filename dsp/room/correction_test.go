package room

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/buffer"
	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/filter/design"
	"github.com/cwbudde/algo-spatial/internal/testutil"
)

const testRate = 48000.0

func newFilter(t testing.TB, channels int, opts ...CorrectionOption) *CorrectionFilter {
	t.Helper()

	f, err := NewCorrectionFilter(testRate, channels, design.BandCenters(28), opts...)
	if err != nil {
		t.Fatal(err)
	}

	return f
}

func constantCurve(db float64) Curve {
	return Curve{Frequencies: []float64{1000}, GainDB: []float64{db}}
}

func TestNewCorrectionFilterRejects(t *testing.T) {
	centres := design.BandCenters(10)

	tests := []struct {
		name     string
		rate     float64
		channels int
		centres  []float64
		opts     []CorrectionOption
	}{
		{"rate", 1000, 2, centres, nil},
		{"channels", testRate, 0, centres, nil},
		{"no bands", testRate, 2, nil, nil},
		{"centre above nyquist", testRate, 2, []float64{30000}, nil},
		{"negative boost", testRate, 2, centres, []CorrectionOption{WithMaxBoostDB(-1)}},
		{"boost too large", testRate, 2, centres, []CorrectionOption{WithMaxBoostDB(13)}},
		{"transition", testRate, 2, centres, []CorrectionOption{WithTransitionBuffers(0)}},
		{"threshold", testRate, 2, centres, []CorrectionOption{WithTHDNThreshold(0)}},
		{"threshold above one", testRate, 2, centres, []CorrectionOption{WithTHDNThreshold(1.5)}},
	}

	for _, tt := range tests {
		if _, err := NewCorrectionFilter(tt.rate, tt.channels, tt.centres, tt.opts...); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("%s: err = %v", tt.name, err)
		}
	}
}

func TestFlatFilterIsIdentity(t *testing.T) {
	f := newFilter(t, 1)
	x := testutil.DeterministicNoise(1, 0.5, 1024)
	want := slices.Clone(x)

	f.Advance()

	if err := f.ProcessChannel(0, x); err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(x, want) {
		t.Error("flat correction changed the signal")
	}
}

func TestTransitionReachesTarget(t *testing.T) {
	f := newFilter(t, 2)

	thdn, err := f.ProposeCorrection(constantCurve(-6))
	if err != nil {
		t.Fatal(err)
	}

	if thdn != f.LastTHDN() || thdn > DefaultTHDNThreshold {
		t.Errorf("THD+N %g, LastTHDN %g", thdn, f.LastTHDN())
	}

	if g := f.Gains(); g[0] != 0 {
		t.Fatalf("gains moved before Advance: %v", g)
	}

	for step := 1; step <= DefaultTransitionBuffers; step++ {
		f.Advance()

		want := -6 * float64(step) / DefaultTransitionBuffers
		for i, g := range f.Gains() {
			if math.Abs(g-want) > 1e-12 {
				t.Fatalf("step %d band %d: gain %g, want %g", step, i, g, want)
			}
		}

		if f.Transitioning() != (step < DefaultTransitionBuffers) {
			t.Fatalf("step %d: Transitioning = %v", step, f.Transitioning())
		}
	}

	if !slices.Equal(f.Gains(), f.Target()) {
		t.Error("final gains differ from target")
	}

	f.Advance()

	if f.Gains()[0] != -6 {
		t.Error("Advance past the end moved the gains")
	}
}

func TestRetargetMidTransition(t *testing.T) {
	f := newFilter(t, 1, WithTransitionBuffers(4))

	if _, err := f.ProposeCorrection(constantCurve(-8)); err != nil {
		t.Fatal(err)
	}

	f.Advance()
	f.Advance() // halfway: -4 dB

	if _, err := f.ProposeCorrection(constantCurve(0)); err != nil {
		t.Fatal(err)
	}

	f.Advance()

	if g := f.Gains()[3]; math.Abs(g+3) > 1e-12 {
		t.Errorf("gain after retarget = %g, want -3", g)
	}
}

func TestClippingCorrectionRejected(t *testing.T) {
	f := newFilter(t, 1, WithMaxBoostDB(MaxBoostLimitDB))

	if _, err := f.ProposeCorrection(constantCurve(-3)); err != nil {
		t.Fatal(err)
	}

	thdn, err := f.ProposeCorrection(constantCurve(12))
	if !errors.Is(err, ErrQualityThresholdExceeded) || !errors.Is(err, core.ErrQualityThresholdExceeded) {
		t.Fatalf("err = %v, want ErrQualityThresholdExceeded", err)
	}

	if thdn <= DefaultTHDNThreshold {
		t.Errorf("rejected THD+N %g below threshold", thdn)
	}

	for _, g := range f.Target() {
		if g != -3 {
			t.Fatalf("target changed after rejection: %v", f.Target())
		}
	}

	if f.LastTHDN() > DefaultTHDNThreshold {
		t.Errorf("LastTHDN = %g, should keep the accepted value", f.LastTHDN())
	}
}

func TestBoostClampedToLimit(t *testing.T) {
	f := newFilter(t, 1, WithMaxBoostDB(2))

	curve := Curve{Frequencies: []float64{100, 10000}, GainDB: []float64{-40, 30}}
	if _, err := f.ProposeCorrection(curve); err != nil {
		t.Fatal(err)
	}

	target := f.Target()
	if target[0] != -MaxCutDB || target[len(target)-1] != 2 {
		t.Errorf("target ends %g .. %g, want -24 .. 2", target[0], target[len(target)-1])
	}
}

func TestModelCorrectionAccepted(t *testing.T) {
	g := shoebox()
	g.Surfaces = Uniform(MinReflection)
	m := newModel(t, g)
	f := newFilter(t, 2)

	thdn, err := f.ProposeCorrection(m.Target(testRate))
	if err != nil {
		t.Fatal(err)
	}

	if thdn < 0 || thdn > DefaultTHDNThreshold {
		t.Errorf("THD+N = %g%%", thdn)
	}
}

func TestCorrectionSourceErrors(t *testing.T) {
	f := newFilter(t, 1)

	bad := []CorrectionSource{
		Curve{},
		Curve{Frequencies: []float64{100, 50}, GainDB: []float64{0, 0}},
		Measurement{Frequencies: []float64{100}, MagnitudeDB: []float64{math.NaN()}},
		Measurement{Frequencies: []float64{100, 200}, MagnitudeDB: []float64{1}},
	}

	for i, src := range bad {
		if _, err := f.ProposeCorrection(src); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("source %d: err = %v", i, err)
		}
	}

	if _, err := f.Probe([]float64{1, 2}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Probe with short gains: err = %v", err)
	}
}

func TestMeasurementFlattens(t *testing.T) {
	m := Measurement{
		Frequencies: []float64{100, 1000, 10000},
		MagnitudeDB: []float64{0, 4, 0},
	}

	gains, err := m.CorrectionGains([]float64{100, 1000, 10000, 20000}, 6)
	if err != nil {
		t.Fatal(err)
	}

	// Mean level is 1 dB.
	want := []float64{1, -3, 1, 1}
	testutil.RequireSliceNearlyEqual(t, gains, want, 1e-12)
}

func TestFlattenClamps(t *testing.T) {
	got := flatten([]float64{0, 40, 80}, 6)
	want := []float64{6, 0, -MaxCutDB}

	testutil.RequireSliceNearlyEqual(t, got, want, 0)
}

func TestResampleLogFrequency(t *testing.T) {
	got, err := resample([]float64{100, 400}, []float64{0, 6}, []float64{50, 100, 200, 400, 800})
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got, []float64{0, 0, 3, 6, 6}, 1e-12)
}

func TestPerChannelState(t *testing.T) {
	f := newFilter(t, 2)
	if _, err := f.ProposeCorrection(constantCurve(-6)); err != nil {
		t.Fatal(err)
	}

	buf, err := buffer.New(2, 256, buffer.LayoutPlanar, 32)
	if err != nil {
		t.Fatal(err)
	}

	copy(buf.Channel(0), testutil.DeterministicSine(1000, testRate, 0.5, 256))

	for range DefaultTransitionBuffers {
		if err := f.Process(buf); err != nil {
			t.Fatal(err)
		}
	}

	for i, v := range buf.Channel(1) {
		if v != 0 {
			t.Fatalf("silent channel picked up %g at %d", v, i)
		}
	}

	testutil.RequireFinite(t, buf.Channel(0))

	if err := f.ProcessChannel(2, buf.Channel(0)); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("ProcessChannel(2) err = %v", err)
	}

	mono, _ := buffer.New(1, 256, buffer.LayoutPlanar, 32)
	if err := f.Process(mono); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Process(mono) err = %v", err)
	}
}

func TestProbeFrequencies(t *testing.T) {
	centres := []float64{250, 1000, 4000}

	tests := []struct {
		gains []float64
		want  []float64
	}{
		{[]float64{0, 0, 0}, []float64{1000}},
		{[]float64{-3, -1, -2}, []float64{1000}},
		{[]float64{1, 5, 2}, []float64{1000}},
		{[]float64{1, 2, 5}, []float64{1000, 4000}},
	}

	for _, tt := range tests {
		if got := probeFrequencies(centres, tt.gains, testRate); !slices.Equal(got, tt.want) {
			t.Errorf("probeFrequencies(%v) = %v, want %v", tt.gains, got, tt.want)
		}
	}
}

func TestAdvanceAndProcessDoNotAllocate(t *testing.T) {
	f := newFilter(t, 1)
	if _, err := f.ProposeCorrection(constantCurve(-2)); err != nil {
		t.Fatal(err)
	}

	x := testutil.DeterministicNoise(3, 0.25, 512)

	allocs := testing.AllocsPerRun(50, func() {
		f.Advance()
		_ = f.ProcessChannel(0, x)
	})

	if allocs != 0 {
		t.Errorf("allocs = %g, want 0", allocs)
	}
}

func BenchmarkCorrectionProcess(b *testing.B) {
	f := newFilter(b, 1)
	if _, err := f.ProposeCorrection(constantCurve(-2)); err != nil {
		b.Fatal(err)
	}

	x := testutil.DeterministicNoise(3, 0.25, 512)

	for b.Loop() {
		f.Advance()
		_ = f.ProcessChannel(0, x)
	}
}
