package ir

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-spatial/dsp/core"
)

// decay returns exp(-ln(1000) t / rt60), which falls 60 dB in rt60 seconds.
func decay(sampleRate, rt60, seconds float64) []float64 {
	out := make([]float64, int(sampleRate*seconds))
	k := math.Log(1000) / rt60

	for i := range out {
		out[i] = math.Exp(-k * float64(i) / sampleRate)
	}

	return out
}

func mustAnalyzer(t testing.TB, sampleRate float64) *Analyzer {
	t.Helper()

	a, err := NewAnalyzer(sampleRate)
	if err != nil {
		t.Fatal(err)
	}

	return a
}

func TestNewAnalyzerRejects(t *testing.T) {
	for _, sr := range []float64{0, -48000, math.NaN(), math.Inf(1)} {
		if _, err := NewAnalyzer(sr); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("NewAnalyzer(%g) err = %v", sr, err)
		}
	}
}

func TestAnalyzeExponentialDecay(t *testing.T) {
	const sr = 48000.0

	for _, rt := range []float64{0.3, 0.8, 1.5} {
		m, err := mustAnalyzer(t, sr).Analyze(decay(sr, rt, 3*rt))
		if err != nil {
			t.Fatal(err)
		}

		for name, got := range map[string]float64{"RT60": m.RT60, "EDT": m.EDT, "T20": m.T20, "T30": m.T30} {
			if math.Abs(got-rt) > 0.02*rt {
				t.Errorf("rt %g: %s = %.4f", rt, name, got)
			}
		}

		// Energy decays as exp(-2kt), so its centroid sits at 1/(2k).
		wantCentre := rt / (2 * math.Log(1000))
		if math.Abs(m.CenterTime-wantCentre) > 1e-3 {
			t.Errorf("rt %g: CenterTime = %.5f, want %.5f", rt, m.CenterTime, wantCentre)
		}

		if m.D50 <= 0 || m.D50 >= m.D80 || m.D80 >= 1 {
			t.Errorf("rt %g: D50 %.3f D80 %.3f not ordered in (0, 1)", rt, m.D50, m.D80)
		}
	}
}

func TestAnalyzeSingleReflection(t *testing.T) {
	const sr = 10000.0

	h := make([]float64, 2000)
	h[0] = 1
	h[1000] = 0.5 // 100 ms, after both boundaries

	m, err := mustAnalyzer(t, sr).Analyze(h)
	if err != nil {
		t.Fatal(err)
	}

	wantC := 10 * math.Log10(1/0.25)
	if math.Abs(m.C50-wantC) > 1e-12 || math.Abs(m.C80-wantC) > 1e-12 {
		t.Errorf("C50 %.4f C80 %.4f, want %.4f", m.C50, m.C80, wantC)
	}

	if math.Abs(m.D50-0.8) > 1e-12 {
		t.Errorf("D50 = %g, want 0.8", m.D50)
	}

	if want := 0.25 * 0.1 / 1.25; math.Abs(m.CenterTime-want) > 1e-12 {
		t.Errorf("CenterTime = %g, want %g", m.CenterTime, want)
	}
}

func TestAnalyzeStartsAtPeak(t *testing.T) {
	const sr = 48000.0

	h := append(make([]float64, 480), decay(sr, 0.5, 1.5)...)
	h[10] = 0.01

	m, err := mustAnalyzer(t, sr).Analyze(h)
	if err != nil {
		t.Fatal(err)
	}

	if m.PeakIndex != 480 {
		t.Errorf("PeakIndex = %d, want 480", m.PeakIndex)
	}

	if math.Abs(m.RT60-0.5) > 0.01 {
		t.Errorf("RT60 = %.4f, want 0.5", m.RT60)
	}
}

func TestEmptyResponses(t *testing.T) {
	a := mustAnalyzer(t, 48000)

	for _, h := range [][]float64{nil, make([]float64, 16)} {
		if _, err := a.Analyze(h); !errors.Is(err, ErrEmpty) || !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("Analyze(len %d) err = %v", len(h), err)
		}

		if _, err := a.RT60(h); !errors.Is(err, ErrEmpty) {
			t.Errorf("RT60(len %d) err = %v", len(h), err)
		}

		if _, err := Onset(h, 0.1); !errors.Is(err, ErrEmpty) {
			t.Errorf("Onset(len %d) err = %v", len(h), err)
		}
	}

	if _, err := a.CenterTime(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("CenterTime(nil) err = %v", err)
	}
}

func TestRT60NoDecay(t *testing.T) {
	_, err := mustAnalyzer(t, 48000).RT60([]float64{1, 0.9})
	if !errors.Is(err, ErrNoDecay) {
		t.Fatalf("err = %v, want ErrNoDecay", err)
	}
}

func TestClarityDefinition(t *testing.T) {
	a := mustAnalyzer(t, 1000)
	h := []float64{1, 0, 0, 1, 0}

	c, err := a.Clarity(h, 0.002)
	if err != nil || c != 0 {
		t.Errorf("Clarity = %g, %v; want 0 dB", c, err)
	}

	d, err := a.Definition(h, 0.002)
	if err != nil || d != 0.5 {
		t.Errorf("Definition = %g, %v; want 0.5", d, err)
	}

	if c, _ := a.Clarity(h, 1); !math.IsInf(c, 1) {
		t.Errorf("Clarity past the end = %g, want +Inf", c)
	}

	for _, sec := range []float64{0, -1, math.NaN()} {
		if _, err := a.Clarity(h, sec); !errors.Is(err, ErrBoundary) {
			t.Errorf("Clarity(%g) err = %v", sec, err)
		}

		if _, err := a.Definition(h, sec); !errors.Is(err, ErrBoundary) {
			t.Errorf("Definition(%g) err = %v", sec, err)
		}
	}
}

func TestOnset(t *testing.T) {
	h := []float64{0, 0, 0.05, -0.2, 1, 0.5}

	tests := []struct {
		threshold float64
		want      int
	}{
		{0.1, 3},
		{0.01, 2},
		{0.5, 4},
	}

	for _, tt := range tests {
		got, err := Onset(h, tt.threshold)
		if err != nil || got != tt.want {
			t.Errorf("Onset(%g) = %d, %v; want %d", tt.threshold, got, err, tt.want)
		}
	}
}

func TestSchroederMonotone(t *testing.T) {
	h := decay(48000, 0.4, 0.5)
	for i := range h {
		h[i] *= math.Cos(float64(i) * 0.37)
	}

	curve := Schroeder(h)
	if curve[0] != 0 {
		t.Fatalf("curve[0] = %g, want 0", curve[0])
	}

	for i := 1; i < len(curve); i++ {
		if curve[i] > curve[i-1] {
			t.Fatalf("curve rises at %d: %g > %g", i, curve[i], curve[i-1])
		}
	}

	if got := Schroeder([]float64{1, 0}); got[1] != decayFloorDB {
		t.Errorf("silent tail = %g, want floor", got[1])
	}
}

func BenchmarkAnalyze(b *testing.B) {
	a := mustAnalyzer(b, 48000)
	h := decay(48000, 0.6, 1)

	for b.Loop() {
		if _, err := a.Analyze(h); err != nil {
			b.Fatal(err)
		}
	}
}
