package biquad

import (
	"math"
	"testing"
)

func twoSections() []Coefficients {
	return []Coefficients{
		testCoeffs,
		{B0: 0.9, B1: -0.1, B2: 0.05, A1: -0.3, A2: 0.1},
	}
}

func TestChain_ProcessBlockMatchesManualCascade(t *testing.T) {
	c := NewChain(twoSections(), WithGain(0.5))
	s0 := NewSection(twoSections()[0])
	s1 := NewSection(twoSections()[1])

	buf := make([]float64, 100)
	want := make([]float64, 100)
	for i := range buf {
		buf[i] = math.Cos(0.05 * float64(i))
		want[i] = s1.ProcessSample(s0.ProcessSample(buf[i] * 0.5))
	}

	c.ProcessBlock(buf)
	for i := range buf {
		if !almostEqual(buf[i], want[i], 1e-12) {
			t.Fatalf("i=%d: got %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestChain_BypassSkipsSection(t *testing.T) {
	c := NewChain(twoSections())
	c.SetBypass(1, true)
	if !c.Bypassed(1) {
		t.Fatal("Bypassed(1) = false")
	}

	ref := NewSection(twoSections()[0])
	for i := range 32 {
		x := float64(i%5) - 2
		if got, want := c.ProcessSample(x), ref.ProcessSample(x); !almostEqual(got, want, eps) {
			t.Fatalf("i=%d: got %v, want %v", i, got, want)
		}
	}

	// Re-enabling starts the section from zero state.
	c.Section(1).SetState([2]float64{1, 1})
	c.SetBypass(1, false)
	if c.Section(1).State() != [2]float64{} {
		t.Fatal("re-enabled section kept stale state")
	}
}

func TestChain_UpdateCoefficientsPreservesState(t *testing.T) {
	c := NewChain(twoSections())
	for range 10 {
		c.ProcessSample(1)
	}
	before := c.State()

	c.UpdateCoefficients([]Coefficients{Identity, Identity})
	after := c.State()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("section %d state changed: %v -> %v", i, before[i], after[i])
		}
	}

	c.UpdateCoefficients([]Coefficients{Identity})
	if c.NumSections() != 1 || c.Section(0).State() != [2]float64{} {
		t.Fatal("resized chain did not reset")
	}
}

func TestChain_ResponseAndImpulse(t *testing.T) {
	c := NewChain(twoSections())
	c.ProcessSample(0.3)
	state := c.State()

	ir := c.ImpulseResponse(8)
	if len(ir) != 8 || ir[0] != testCoeffs.B0*0.9 {
		t.Fatalf("ir = %v", ir)
	}
	if got := c.State(); got[0] != state[0] || got[1] != state[1] {
		t.Fatal("ImpulseResponse modified chain state")
	}

	// DC gain of a cascade equals the product of section DC gains.
	dc := 1.0
	for _, s := range twoSections() {
		dc *= (s.B0 + s.B1 + s.B2) / (1 + s.A1 + s.A2)
	}
	if got := 20 * math.Log10(math.Abs(dc)); !almostEqual(c.MagnitudeDB(0, 48000), got, 1e-9) {
		t.Fatalf("MagnitudeDB(0) = %v, want %v", c.MagnitudeDB(0, 48000), got)
	}
	if !almostEqual(testCoeffs.MagnitudeDB(1000, 48000), 20*math.Log10(cmplxAbs(testCoeffs.Response(1000, 48000))), 1e-9) {
		t.Fatal("closed-form magnitude disagrees with complex response")
	}
}

func TestCoefficients_Stable(t *testing.T) {
	if !testCoeffs.Stable() {
		t.Fatal("stable section reported unstable")
	}
	unstable := Coefficients{B0: 1, A1: -2.1, A2: 1.1}
	if unstable.Stable() {
		t.Fatal("unstable section reported stable")
	}
}

func cmplxAbs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}
