package ir_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/measure/ir"
)

func ExampleAnalyzer_Analyze() {
	const sampleRate = 48000.0

	// Exponential decay falling 60 dB in half a second.
	h := make([]float64, int(1.5*sampleRate))
	for i := range h {
		h[i] = math.Exp(-math.Log(1000) / 0.5 * float64(i) / sampleRate)
	}

	a, err := ir.NewAnalyzer(sampleRate)
	if err != nil {
		panic(err)
	}

	m, err := a.Analyze(h)
	if err != nil {
		panic(err)
	}

	fmt.Printf("RT60 %.2f s\n", m.RT60)
	fmt.Printf("EDT  %.2f s\n", m.EDT)
	fmt.Printf("C80  %.1f dB\n", m.C80)
	fmt.Printf("D50  %.3f\n", m.D50)

	// Output:
	// RT60 0.50 s
	// EDT  0.50 s
	// C80  9.1 dB
	// D50  0.749
}
