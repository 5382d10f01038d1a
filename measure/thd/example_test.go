package thd_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/measure/thd"
)

func ExampleSineFit() {
	const sampleRate = 48000.0

	signal := make([]float64, 12000)
	for i := range signal {
		ph := 2 * math.Pi * 1000 * float64(i) / sampleRate
		signal[i] = 0.5*math.Sin(ph) + 0.005*math.Sin(3*ph)
	}

	fit, err := thd.SineFit(signal, 1000, sampleRate)
	if err != nil {
		panic(err)
	}

	fmt.Printf("amplitude: %.3f\n", fit.Amplitude)
	fmt.Printf("THD+N: %.3f%%\n", fit.Percent())
	// Output:
	// amplitude: 0.500
	// THD+N: 1.000%
}
