// Package ir derives ISO 3382 room-acoustic parameters from an impulse
// response.
//
// Every decay metric is read off the Schroeder backward integral of the
// squared response, starting at the direct-sound peak:
//
//   - EDT, T20 and T30 fit the 0..-10, -5..-25 and -5..-35 dB ranges.
//   - RT60 is T30 when the response decays far enough, else T20.
//   - C50 and C80 compare early with late energy in dB.
//   - D50 and D80 give the early energy fraction.
//   - CenterTime is the energy centroid.
//
// The room model uses [Analyzer] to describe its synthesized responses:
//
//	a, err := ir.NewAnalyzer(48000)
//	m, err := a.Analyze(response)
//	fmt.Printf("RT60 %.2f s, C80 %.1f dB\n", m.RT60, m.C80)
package ir
