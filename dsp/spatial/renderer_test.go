package spatial

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/core"
	"github.com/cwbudde/algo-spatial/dsp/vector"
	"github.com/cwbudde/algo-spatial/internal/testutil"
)

const block = 512

var testDB *Database

func headDatabase(t testing.TB) *Database {
	t.Helper()

	if testDB == nil {
		db, err := NewSphericalHeadModel(48000).Database(DefaultGrid(48000))
		if err != nil {
			t.Fatal(err)
		}

		testDB = db
	}

	return testDB
}

func newTestRenderer(t testing.TB, opts ...RendererOption) *Renderer {
	t.Helper()

	r, err := NewRenderer(headDatabase(t), opts...)
	if err != nil {
		t.Fatal(err)
	}

	return r
}

// render feeds n blocks of noise and returns the energy of both ears over
// the second half.
func render(t *testing.T, r *Renderer, blocks int) (left, right float64) {
	t.Helper()

	outL := make([]float64, block)
	outR := make([]float64, block)

	for b := range blocks {
		in := testutil.DeterministicNoise(int64(b+1), 0.5, block)
		if err := r.ProcessSpatialAudio(in, outL, outR); err != nil {
			t.Fatalf("block %d: %v", b, err)
		}

		if b >= blocks/2 {
			left += vector.Energy(outL)
			right += vector.Energy(outR)
		}
	}

	return left, right
}

func TestRendererLateralSourceILD(t *testing.T) {
	r := newTestRenderer(t, WithSourcePosition(Vec3{X: 2}))

	left, right := render(t, r, 8)
	if ild := 10 * math.Log10(right/left); ild < 10 {
		t.Fatalf("ILD = %.2f dB, want > 10", ild)
	}

	res := r.Resolved()
	if math.Abs(res.Azimuth-90) > 1e-9 || math.Abs(res.Distance-2) > 1e-12 {
		t.Fatalf("resolved %+v", res)
	}
}

func TestRendererHeadRotationMovesSource(t *testing.T) {
	tr := NewHeadTracker()
	r := newTestRenderer(t, WithHeadTracker(tr))

	left, right := render(t, r, 4)
	if d := 10 * math.Log10(right/left); math.Abs(d) > 0.01 {
		t.Fatalf("front source imbalance %.3f dB", d)
	}

	tr.Publish(Orientation{Rotation: FromYawPitchRoll(90*deg, 0, 0)})

	left, right = render(t, r, 8)
	if d := 10 * math.Log10(left/right); d < 10 {
		t.Fatalf("after turning right the source should be left: %.2f dB", d)
	}

	if az := r.Resolved().Azimuth; math.Abs(az+90) > 1e-9 {
		t.Fatalf("resolved azimuth %g, want -90", az)
	}
}

func TestRendererDistanceAttenuation(t *testing.T) {
	near := newTestRenderer(t, WithSourcePosition(Vec3{Y: 1}), WithAirAbsorption(false))
	far := newTestRenderer(t, WithSourcePosition(Vec3{Y: 4}), WithAirAbsorption(false))

	ln, _ := render(t, near, 6)
	lf, _ := render(t, far, 6)

	// 1/r from 1 m to 4 m is -12 dB; the shells differ slightly in
	// near-field level.
	if d := 10 * math.Log10(lf/ln); math.Abs(d+12.04) > 0.5 {
		t.Fatalf("level change %.2f dB, want about -12", d)
	}

	off := newTestRenderer(t, WithSourcePosition(Vec3{Y: 4}), WithAirAbsorption(false), WithDistanceAttenuation(false))
	lo, _ := render(t, off, 6)

	if d := 10 * math.Log10(lo/ln); math.Abs(d) > 0.5 {
		t.Fatalf("attenuation off: level change %.2f dB", d)
	}
}

func TestAirAbsorption(t *testing.T) {
	tests := []struct {
		dist, want float64
	}{
		{0.5, 0},
		{1, 0},
		{11, -0.5},
		{1000, -24},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		if got := AirAbsorptionDB(tt.dist); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("AirAbsorptionDB(%g) = %g, want %g", tt.dist, got, tt.want)
		}
	}

	if g := DistanceGain(0.2); g != 1 {
		t.Fatalf("DistanceGain inside reference = %g", g)
	}

	c := airShelf(101, 48000)
	if db := c.MagnitudeDB(20000, 48000); db > -4 {
		t.Fatalf("shelf at 20 kHz = %.2f dB, want about -5", db)
	}

	if db := c.MagnitudeDB(500, 48000); math.Abs(db) > 0.2 {
		t.Fatalf("shelf at 500 Hz = %.2f dB, want about 0", db)
	}
}

func TestRendererPremiumMatchesHighOnGrid(t *testing.T) {
	pos := FromSpherical(30, 0, 2)
	high := newTestRenderer(t, WithSourcePosition(pos))
	prem := newTestRenderer(t, WithSourcePosition(pos), WithQuality(QualityPremium))

	hL, hR := make([]float64, block), make([]float64, block)
	pL, pR := make([]float64, block), make([]float64, block)

	for b := range 4 {
		in := testutil.DeterministicNoise(int64(b+20), 0.5, block)
		_ = high.ProcessSpatialAudio(in, hL, hR)
		_ = prem.ProcessSpatialAudio(in, pL, pR)

		testutil.RequireSliceNearlyEqual(t, pL, hL, 1e-12)
		testutil.RequireSliceNearlyEqual(t, pR, hR, 1e-12)
	}
}

func TestRendererMovingSourceIsSmooth(t *testing.T) {
	for _, q := range []Quality{QualityHigh, QualityPremium} {
		r := newTestRenderer(t, WithQuality(q))
		outL, outR := make([]float64, 256), make([]float64, 256)

		prev := 0.0
		for b := range 48 {
			_ = r.SetSourcePosition(FromSpherical(float64(b)*7.5, 0, 2))

			in := make([]float64, 256)
			for i := range in {
				in[i] = math.Sin(2 * math.Pi * 500 * float64(b*256+i) / 48000)
			}

			if err := r.ProcessSpatialAudio(in, outL, outR); err != nil {
				t.Fatal(err)
			}

			for i, v := range outL {
				if b > 0 && math.Abs(v-prev) > 0.2 {
					t.Fatalf("%v: jump %.3f at block %d sample %d", q, v-prev, b, i)
				}

				prev = v
			}
		}
	}
}

func TestRendererInputErrors(t *testing.T) {
	r := newTestRenderer(t)
	out := make([]float64, 16)

	tests := []struct {
		name       string
		in, l, rgt []float64
	}{
		{"empty", nil, nil, nil},
		{"left length", make([]float64, 16), make([]float64, 8), out},
		{"right length", make([]float64, 16), out, make([]float64, 17)},
		{"too long", make([]float64, block+1), make([]float64, block+1), make([]float64, block+1)},
	}

	for _, tt := range tests {
		if err := r.ProcessSpatialAudio(tt.in, tt.l, tt.rgt); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("%s: err = %v", tt.name, err)
		}
	}
}

func TestRendererBusy(t *testing.T) {
	r := newTestRenderer(t)
	r.state.Store(stateRendering)

	buf := make([]float64, 64)
	if err := r.ProcessSpatialAudio(buf, buf, buf); !errors.Is(err, core.ErrBusy) {
		t.Fatalf("ProcessSpatialAudio: %v", err)
	}

	if err := r.Reset(); !errors.Is(err, core.ErrBusy) {
		t.Fatalf("Reset: %v", err)
	}

	r.state.Store(stateIdle)

	if err := r.Reset(); err != nil {
		t.Fatalf("Reset when idle: %v", err)
	}
}

func TestRendererNonFiniteKeepsCommittedState(t *testing.T) {
	r := newTestRenderer(t, WithSourcePosition(Vec3{X: -2}))
	outL, outR := make([]float64, block), make([]float64, block)

	if err := r.ProcessSpatialAudio(testutil.Ones(block), outL, outR); err != nil {
		t.Fatal(err)
	}

	before := r.Resolved()

	_ = r.SetSourcePosition(Vec3{Y: 3})

	in := testutil.Ones(block)
	in[100] = math.Inf(1)

	if err := r.ProcessSpatialAudio(in, outL, outR); !errors.Is(err, core.ErrProcessing) {
		t.Fatalf("err = %v, want ErrProcessing", err)
	}

	if r.Resolved() != before {
		t.Fatalf("resolved changed to %+v", r.Resolved())
	}

	if vector.MaxAbs(outL) != 0 || vector.MaxAbs(outR) != 0 {
		t.Fatal("outputs not cleared")
	}

	// The next clean buffer renders normally.
	if err := r.ProcessSpatialAudio(testutil.Ones(block), outL, outR); err != nil {
		t.Fatal(err)
	}

	testutil.RequireFinite(t, outL)
}

func TestRendererSetters(t *testing.T) {
	r := newTestRenderer(t)

	if err := r.SetSourcePosition(Vec3{X: math.NaN()}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("NaN source: %v", err)
	}

	if err := r.SetListenerPosition(Vec3{Z: math.Inf(-1)}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("Inf listener: %v", err)
	}

	if err := r.SetQuality(Quality(5)); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("bad quality: %v", err)
	}

	_ = r.SetQuality(QualityStandard)
	_ = r.SetListenerPosition(Vec3{X: 1, Y: 1})
	_ = r.SetSourcePosition(Vec3{X: 1, Y: 3})

	if r.Quality() != QualityStandard || r.ListenerPosition() != (Vec3{X: 1, Y: 1}) || r.SourcePosition() != (Vec3{X: 1, Y: 3}) {
		t.Fatal("setters not visible")
	}

	outL, outR := make([]float64, 64), make([]float64, 64)
	_ = r.ProcessSpatialAudio(make([]float64, 64), outL, outR)

	if res := r.Resolved(); math.Abs(res.Azimuth) > 1e-9 || math.Abs(res.Distance-2) > 1e-12 {
		t.Fatalf("listener offset not applied: %+v", res)
	}
}

func TestNewRendererRejects(t *testing.T) {
	db := headDatabase(t)

	if _, err := NewRenderer(nil); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("nil db: %v", err)
	}

	for _, opt := range []RendererOption{
		WithMaxBlock(0),
		WithMaxBlock(core.MaxBufferFrames + 1),
		WithQuality(Quality(-1)),
		WithSourcePosition(Vec3{Y: math.NaN()}),
	} {
		if _, err := NewRenderer(db, opt); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("err = %v", err)
		}
	}
}

func TestRendererDirectPathDoesNotAllocate(t *testing.T) {
	g := DefaultGrid(48000)
	g.Length = 48

	db, err := NewSphericalHeadModel(48000).Database(g)
	if err != nil {
		t.Fatal(err)
	}

	r, err := NewRenderer(db, WithMaxBlock(256), WithSourcePosition(FromSpherical(40, 10, 1.5)))
	if err != nil {
		t.Fatal(err)
	}

	in := testutil.DeterministicNoise(3, 0.5, 256)
	outL, outR := make([]float64, 256), make([]float64, 256)

	allocs := testing.AllocsPerRun(50, func() {
		_ = r.ProcessSpatialAudio(in, outL, outR)
	})

	if allocs != 0 {
		t.Fatalf("ProcessSpatialAudio allocates %.1f per run", allocs)
	}
}

func BenchmarkRendererHigh(b *testing.B) {
	r := newTestRenderer(b, WithSourcePosition(FromSpherical(37, 12, 1.7)))
	in := testutil.DeterministicNoise(1, 0.5, block)
	outL, outR := make([]float64, block), make([]float64, block)

	b.ReportAllocs()

	for b.Loop() {
		_ = r.ProcessSpatialAudio(in, outL, outR)
	}
}
